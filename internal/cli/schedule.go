package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bene2386/Conta-Azul/internal/scheduler"
	"github.com/bene2386/Conta-Azul/internal/server"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run extractions on EXTRACT_SCHEDULE until interrupted",
		Long: `Run the extraction on the cron expression in EXTRACT_SCHEDULE and database
maintenance plus run history cleanup on MAINTENANCE_SCHEDULE until SIGINT or
SIGTERM.

Expressions take five fields, six with leading seconds, or descriptors such
as @daily and "@every 6h". An activation that fires while the previous run of
the same job is still going is skipped.`,
		Args: cobra.NoArgs,
		RunE: runScheduleCmd,
	}
	cmd.Flags().Bool("run-now", false, "run one extraction immediately before waiting for the schedule")
	cmd.Flags().String("listen", "", "serve /health and the read-only status API on this address")
	return cmd
}

func runScheduleCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := a.cfg.RequireCredentials(); err != nil {
		return err
	}
	if a.cfg.Schedule == "" {
		return errors.New("EXTRACT_SCHEDULE is required for the schedule command")
	}
	if err := scheduler.ValidateSchedule(a.cfg.Schedule); err != nil {
		return fmt.Errorf("EXTRACT_SCHEDULE: %w", err)
	}
	if a.cfg.MaintenanceSchedule != "" {
		if err := scheduler.ValidateSchedule(a.cfg.MaintenanceSchedule); err != nil {
			return fmt.Errorf("MAINTENANCE_SCHEDULE: %w", err)
		}
	}
	runNow, _ := cmd.Flags().GetBool("run-now")
	listen, _ := cmd.Flags().GetString("listen")

	ctx := cmd.Context()
	container, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	sched := container.Scheduler
	if err := sched.AddJob(a.cfg.Schedule, container.ExtractionJob); err != nil {
		return err
	}
	if a.cfg.MaintenanceSchedule != "" {
		if err := sched.AddJob(a.cfg.MaintenanceSchedule, container.MaintenanceJob); err != nil {
			return err
		}
		if err := sched.AddJob(a.cfg.MaintenanceSchedule, container.RunCleanupJob); err != nil {
			return err
		}
	}

	// Stays nil, and never ready, without --listen
	var serveErr chan error
	if listen != "" {
		srv := server.New(server.Config{
			Addr:   listen,
			Log:    a.log,
			Status: server.NewStatusHandlers(container.RunRepo, container.ReceivablesRepo, container.ReceivablesRepo, a.log),
			Health: container.DB,
		})
		serveErr = make(chan error, 1)
		go func() {
			serveErr <- srv.Start()
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if runNow {
		// A failed immediate run does not stop the schedule
		if err := sched.RunNow(ctx, container.ExtractionJob); err != nil {
			a.log.Error().Err(err).Msg("Immediate extraction failed")
		}
	}

	sched.Start(ctx)
	defer sched.Stop()

	a.log.Info().
		Str("schedule", a.cfg.Schedule).
		Time("next_run", sched.Next()).
		Msg("Waiting for scheduled runs")
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
		Silent("Scheduled"), Primary(a.cfg.Schedule), Silent("(Ctrl+C to stop)"))

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Shutdown signal received")
		return nil
	case err := <-serveErr:
		if err == nil {
			err = errors.New("stopped unexpectedly")
		}
		return fmt.Errorf("status server on %s: %w", listen, err)
	}
}
