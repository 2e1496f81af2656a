package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/marvin/internal/logging"
	"github.com/danielolaszy/marvin/internal/metrics"
	"github.com/danielolaszy/marvin/internal/scheduler"
)

// daemonCmd repeats the run on the configured cron schedule.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the configured actions on a schedule",
	Long: `Run the configured actions every time schedule.cron comes due, in the
configured time zone, until interrupted. A run that is still going when the
next one is due makes the next one skip. A failed run is logged and the
schedule continues.

When schedule.metrics_addr is set, Prometheus metrics are served at /metrics.

Example:
  marvin daemon -c config.yaml --run-now`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runNow, err := cmd.Flags().GetBool("run-now")
		if err != nil {
			return err
		}

		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		if cfg.Schedule.Cron == "" {
			return fmt.Errorf("schedule.cron is required for daemon mode")
		}

		ctx := cmd.Context()
		client, err := connectTracker(ctx, cfg.Tracker)
		if err != nil {
			return err
		}

		recorder := metrics.NewRecorder()
		job := func(ctx context.Context) error {
			_, err := executeRun(ctx, cfg, client, cfg.Actions, runOptions{recorder: recorder})
			return err
		}

		sched, err := scheduler.New(cfg.Schedule.Cron, job,
			scheduler.WithLogger(logging.GetLogger()),
			scheduler.WithLocation(cfg.Location()))
		if err != nil {
			return err
		}

		var server *http.Server
		if cfg.Schedule.MetricsAddr != "" {
			server = serveMetrics(cfg.Schedule.MetricsAddr, recorder.Handler())
		}

		if runNow {
			sched.RunNow(ctx)
		}
		sched.Start(ctx)

		<-ctx.Done()
		logging.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Warn("metrics server shutdown failed", "error", err)
			}
		}
		return sched.Stop(shutdownCtx)
	},
}

func serveMetrics(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", "error", err)
		}
	}()

	return server
}

func init() {
	daemonCmd.Flags().Bool("run-now", false, "run once immediately before waiting for the schedule")
}
