package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ninjaos/autopilot/internal/agents"
	"github.com/ninjaos/autopilot/internal/approval"
	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/crmsync"
	"github.com/ninjaos/autopilot/internal/notify"
	"github.com/ninjaos/autopilot/internal/observer"
	"github.com/ninjaos/autopilot/internal/relay"
	"github.com/ninjaos/autopilot/internal/scheduler"
	"github.com/ninjaos/autopilot/internal/store"
)

// actionStaleAfter is the startup sweep cutoff for abandoned proposals.
const actionStaleAfter = 72 * time.Hour

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the automation daemon (agents, scheduler, sync worker)",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(cfg.Paths.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.New(st)
	mgr := approval.NewManager(st, actionStaleAfter)
	if notifier := notify.NewSlackNotifier(cfg.Notify); notifier != nil {
		mgr.OnPropose(notifier.ActionProposed)
		slog.Info("Slack reviewer notifications enabled", "channel", cfg.Notify.SlackChannel)
	}

	gate := observer.NewGate(st)
	agents.NewLeadIntake(st, b, mgr).Register(b)
	agents.NewWorkflowCoach(st, gate).Register(b)
	agents.NewNurture(st, mgr).Register(b)

	eventRelay := relay.NewKafkaRelay(cfg.Relay)
	eventRelay.Attach(b)
	defer func() { _ = eventRelay.Close() }()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(st, cfg.Scheduler.StartupDelay,
			filepath.Join(cfg.Paths.DataDir, "scheduler.lock"))
		checker := scheduler.NewRelationshipChecker(st, b,
			cfg.Scheduler.OverdueDays, cfg.Scheduler.AnniversaryWindow)
		maint := scheduler.NewMaintenance(st, cfg.Retention)
		sched.Register("relationship_check", cfg.Scheduler.RelationshipEvery, checker.Run)
		sched.Register("retention_prune", cfg.Scheduler.MaintenanceEvery, maint.PruneRun)
		sched.Register("signal_sweep", cfg.Scheduler.SignalSweepEvery, maint.SweepRun)
		g.Go(func() error { return sched.Run(gctx) })
	}

	if cfg.Sync.Enabled {
		worker := crmsync.NewWorker(st, cfg.Sync)
		g.Go(func() error { return worker.Run(gctx) })
	}

	slog.Info("Autopilot daemon started",
		"db", cfg.Paths.DBPath,
		"scheduler", cfg.Scheduler.Enabled, "sync", cfg.Sync.Enabled)

	<-gctx.Done()
	stop()
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	slog.Info("Autopilot daemon stopped")
	return nil
}
