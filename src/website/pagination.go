package website

import (
	"strconv"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/utils"
)

// Reads ?page= and ?limit=. Garbage falls back to the defaults rather than
// failing the request.
func getPage(c *RequestContext) blogdata.Page {
	query := c.Req.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	return blogdata.NewPage(page, limit)
}

type pagedJson[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func newPagedJson[T, U any](paged blogdata.Paged[T], convert func(T) U) pagedJson[U] {
	items := make([]U, 0, len(paged.Items))
	for _, item := range paged.Items {
		items = append(items, convert(item))
	}
	return pagedJson[U]{
		Items:      items,
		Total:      paged.Total,
		Page:       paged.Page.Page,
		Limit:      paged.Page.Limit,
		TotalPages: utils.NumPages(int(paged.Total), paged.Page.Limit),
	}
}

// Like newPagedJson, for items that were already converted in bulk.
func pagedJsonOf[T, U any](paged blogdata.Paged[T], items []U) pagedJson[U] {
	if items == nil {
		items = []U{}
	}
	return pagedJson[U]{
		Items:      items,
		Total:      paged.Total,
		Page:       paged.Page.Page,
		Limit:      paged.Page.Limit,
		TotalPages: utils.NumPages(int(paged.Total), paged.Page.Limit),
	}
}
