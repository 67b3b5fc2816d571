package website

import (
	"net/http"
	"sort"
	"time"
)

// Recent request timings, grouped by route, slowest routes first.
func Perfmon(c *RequestContext) ResponseData {
	b := c.Perf.StartBlock("PERF", "Requesting perf data")
	perfData := c.PerfCollector.GetPerfCopy()
	b.End()

	type PerfRecord struct {
		Method     string    `json:"method"`
		Path       string    `json:"path"`
		Start      time.Time `json:"start"`
		DurationMs float64   `json:"duration_ms"`
		NumBlocks  int       `json:"num_blocks"`
	}

	type RouteSummary struct {
		Route     string       `json:"route"`
		Count     int          `json:"count"`
		AverageMs float64      `json:"average_ms"`
		MaxMs     float64      `json:"max_ms"`
		Slowest   PerfRecord   `json:"slowest"`
		Recent    []PerfRecord `json:"recent"`
	}

	const recentPerRoute = 10

	b = c.Perf.StartBlock("PERF", "Processing perf data")
	byRoute := make(map[string]*RouteSummary)
	for i := len(perfData.AllRequests) - 1; i >= 0; i-- {
		item := perfData.AllRequests[i]
		record := PerfRecord{
			Method:     item.Method,
			Path:       item.Path,
			Start:      item.Start,
			DurationMs: item.DurationMs,
			NumBlocks:  item.NumBlocks,
		}

		summary, ok := byRoute[item.Route]
		if !ok {
			summary = &RouteSummary{Route: item.Route}
			byRoute[item.Route] = summary
		}
		summary.Count++
		summary.AverageMs += item.DurationMs
		if item.DurationMs >= summary.MaxMs {
			summary.MaxMs = item.DurationMs
			summary.Slowest = record
		}
		if len(summary.Recent) < recentPerRoute {
			summary.Recent = append(summary.Recent, record)
		}
	}

	routes := make([]*RouteSummary, 0, len(byRoute))
	for _, summary := range byRoute {
		summary.AverageMs /= float64(summary.Count)
		routes = append(routes, summary)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].AverageMs > routes[j].AverageMs
	})
	b.End()

	return c.JsonResponse(http.StatusOK, map[string]any{
		"total_requests": len(perfData.AllRequests),
		"routes":         routes,
	})
}
