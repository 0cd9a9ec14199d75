package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/internal/metrics"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/internal/scheduler"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/internal/server"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/reconciler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Reconcile on a recurring schedule",
	Long: `Run reconciliation on the configured cron schedule and serve /healthz, /metrics
and /api/v1 run endpoints until interrupted.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	scheduleCmd.Flags().String("spec", "", "Cron spec or @every interval (default from config)")
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if spec, _ := cmd.Flags().GetString("spec"); spec != "" {
		cfg.Schedule.Spec = spec
	}

	schedule, err := scheduler.Parse(cfg.Schedule.Spec)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	m := metrics.New()

	journal, err := initJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}
	apiServer := server.NewServer(m.Handler(), journal, logger)

	r, err := initReconciler(cfg, logger, false, journal, reconciler.WithObservers(m, apiServer))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "listen", cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "Azure Budget Guardian listening on %s\n", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	run := func(ctx context.Context, pastDue bool) error {
		_, err := r.Run(ctx, pastDue)
		return err
	}
	sched := scheduler.New(schedule, run, logger, scheduler.WithRunOnStartup(cfg.Schedule.RunOnStartup))

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		logger.Info("scheduler started", "spec", cfg.Schedule.Spec, "run_on_startup", cfg.Schedule.RunOnStartup)
		_ = sched.Start(ctx)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		stop()
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	<-schedDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	logger.Info("scheduler stopped")
	return nil
}
