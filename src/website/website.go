package website

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/events"
	"github.com/arsyadal/fastblog/src/jobs"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/arsyadal/fastblog/src/ratelimit"
	"github.com/spf13/cobra"
)

var WebsiteCommand = &cobra.Command{
	Use:   "fastblog",
	Short: "Run the fastblog API server",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Str("env", string(config.Config.Env)).Msg("Hello, fastblog!")

		var wg sync.WaitGroup

		conn := db.NewConnPool()
		perfCollector, perfCollectorJob := perf.RunPerfCollector()
		bus := events.NewBus()

		var limiter RateLimiter
		if l, err := ratelimit.NewFromConfig(config.Config.RateLimit); err != nil {
			logging.Error().Err(err).Msg("rate limiting disabled")
		} else if l != nil {
			limiter = l
		}

		// Start background jobs
		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			perfCollectorJob,
			events.RunKafkaSink(bus, config.Config.Kafka),
			blogdata.PeriodicallyReconcileCounters(conn, config.Config.ReconcileSchedule),
		}

		// Live connections hang off this rather than their requests.
		serverCtx, stopServerCtx := context.WithCancel(context.Background())

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr: config.Config.Addr,
			Handler: NewWebsiteRoutes(Deps{
				Conn:          conn,
				Bus:           bus,
				PerfCollector: perfCollector,
				Limiter:       limiter,
				ServerCtx:     serverCtx,
			}),
		}
		server.RegisterOnShutdown(stopServerCtx)
		go func() {
			logging.Info().Str("addr", config.Config.Addr).Msg("Serving the API")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// Wait for SIGINT in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		go func() {
			<-signals // First SIGINT (start shutdown)
			logging.Info().Msg("Shutting down fastblog")

			const timeout = 10 * time.Second

			go func() {
				logging.Info().Msg("Shutting down background jobs...")
				unfinished := backgroundJobs.CancelAndWait(timeout)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed fastblog")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
		conn.Close()
	},
}
