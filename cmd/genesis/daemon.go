package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/genesis-minds/genesis/internal/config"
	"github.com/genesis-minds/genesis/internal/controlplane"
	"github.com/genesis-minds/genesis/internal/decision"
	"github.com/genesis-minds/genesis/internal/executor"
	"github.com/genesis-minds/genesis/internal/life"
	"github.com/genesis-minds/genesis/internal/llm"
	"github.com/genesis-minds/genesis/internal/logging"
	"github.com/genesis-minds/genesis/internal/mind"
	"github.com/genesis-minds/genesis/internal/models"
	"github.com/genesis-minds/genesis/internal/notify"
	"github.com/genesis-minds/genesis/internal/store"
	"github.com/genesis-minds/genesis/internal/telemetry"
)

var configPath string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Genesis daemon",
	Long:  `Starts the Genesis daemon: the task executor, the life scheduler and the HTTP control plane.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigFile, "Path to YAML config file")
}

// defaultActions is the built-in permission registry for autonomous actions.
// Anything not listed here is rejected outright.
func defaultActions() []models.ActionSpec {
	return []models.ActionSpec{
		{Name: "send_email", Description: "Send an email on the user's behalf", BaseRisk: 0.5, Permission: models.PermissionConfirmation},
		{Name: "post_update", Description: "Post a public status update", BaseRisk: 0.6, Permission: models.PermissionConfirmation},
		{Name: "reply_message", Description: "Reply to an incoming message", BaseRisk: 0.3, Permission: models.PermissionAllowed},
		{Name: "organize_files", Description: "Reorganize files in the workspace", BaseRisk: 0.2, Permission: models.PermissionAllowed},
		{Name: "research_topic", Description: "Research a topic and summarize findings", BaseRisk: 0.1, Permission: models.PermissionAllowed},
		{Name: "schedule_reminder", Description: "Schedule a reminder for later", BaseRisk: 0.1, Permission: models.PermissionAllowed},
		{Name: "delete_data", Description: "Permanently delete stored data", BaseRisk: 0.9, Permission: models.PermissionForbidden},
		{Name: "modify_system", Description: "Change system-level configuration", BaseRisk: 0.9, Permission: models.PermissionForbidden},
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging)

	log := slog.With("component", "daemon")
	log.Info("starting genesis daemon", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".genesis", "genesis.db")
	}
	s, err := store.New(dbPath)
	if err != nil {
		return err
	}
	if removed, err := s.PurgeCompletedBefore(time.Now().UTC().AddDate(0, 0, -30)); err != nil {
		log.Warn("retention purge failed", "error", err)
	} else if removed > 0 {
		log.Info("purged old completed tasks", "count", removed)
	}

	thinker := llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	budget := llm.NewBudget(cfg.LLM.DailyBudget)

	webhook := notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	deliver := notify.NewFallback(webhook, s)

	handler := mind.NewLLMHandler(thinker, budget, "genesis")

	exec, err := executor.New(s, handler, deliver, executor.Config{
		MaxRetries:       cfg.Executor.MaxRetries,
		BackoffCap:       cfg.Executor.BackoffCap,
		CompletedHistory: cfg.Executor.CompletedHistory,
	})
	if err != nil {
		s.Close()
		return err
	}
	if recovered := exec.ListRecovered(); len(recovered) > 0 {
		log.Info("recovered unfinished tasks from previous run", "count", len(recovered))
	}

	sched := life.New(thinker, budget, life.Config{
		EventIdleSleep:  cfg.Life.EventIdleSleep,
		RoutineInterval: cfg.Life.RoutineInterval,
		GoalInterval:    cfg.Life.GoalInterval,
	})

	scorer := decision.NewHeuristicScorer(thinker, defaultActions())

	service, err := controlplane.NewService(s, exec, sched, scorer)
	if err != nil {
		s.Close()
		return err
	}

	hub := controlplane.NewHub()
	exec.SetTransitionHook(func(t *models.Task) {
		hub.Broadcast(ctx, controlplane.WSEventTaskStatus, controlplane.TaskStatusEvent{
			TaskID:   t.ID,
			Status:   string(t.Status),
			Progress: t.Progress,
			Error:    t.Error,
		})
	})
	sched.SetStateChangeHook(func(from, to models.LifeState) {
		hub.Broadcast(ctx, controlplane.WSEventLifeState, controlplane.LifeStateEvent{
			From: string(from),
			To:   string(to),
		})
	})

	server := controlplane.NewServer(cfg.Server.Addr, service, hub)

	sched.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}

	sched.Stop()
	exec.Stop()
	service.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", "error", err)
	}
	if err := s.Close(); err != nil {
		log.Error("store close error", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}
