package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/api"
	"github.com/good-yellow-bee/logalert/internal/history"
	"github.com/good-yellow-bee/logalert/internal/notifier"
	"github.com/good-yellow-bee/logalert/internal/source"
	"github.com/good-yellow-bee/logalert/pkg/config"
)

// shutdownGrace bounds how long in-flight work gets on shutdown.
const shutdownGrace = 10 * time.Second

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "logalertd",
	Short: "logalertd - log stream alerting daemon",
	Long: `logalertd follows a live log stream (journald or files), matches
lines against ordered regex rules, detects missing heartbeat messages,
and delivers deduplicated alerts to Slack or the process log.`,
	RunE: runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logalertd %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and rules, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return err
		}
		rules, err := cfg.RuleSet()
		if err != nil {
			return err
		}
		fmt.Printf("config ok: %d alert rules, %d heartbeat rules\n",
			len(rules.Alerts), len(rules.Heartbeats))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rules, err := cfg.RuleSet()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	log.Printf("loaded %d alert rules, %d heartbeat rules", len(rules.Alerts), len(rules.Heartbeats))

	// Engine
	engine := alerting.NewEngine(rules, &alerting.EngineOptions{
		CheckInterval: cfg.CheckInterval(),
		Cooldown:      cfg.CooldownDuration(),
	})
	log.Printf("heartbeat check interval %s, suppression cooldown %s",
		cfg.CheckInterval(), cfg.CooldownDuration())

	// Log source
	src, err := buildSource(cfg)
	if err != nil {
		return fmt.Errorf("create log source: %w", err)
	}

	// Notification channels
	dispatcher := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		PerSecond: cfg.RateLimit.PerSecond,
		Burst:     cfg.RateLimit.Burst,
		Enabled:   !cfg.RateLimit.Disabled,
	})
	if cfg.SlackWebhookURL != "" {
		slack, err := notifier.NewSlackNotifier(notifier.SlackConfig{WebhookURL: cfg.SlackWebhookURL})
		if err != nil {
			return fmt.Errorf("create slack notifier: %w", err)
		}
		dispatcher.Register(slack)
		log.Printf("slack notifier enabled")
	} else {
		log.Printf("no slack webhook configured, alerts go to the process log")
	}
	dispatcher.Register(notifier.NewConsoleNotifier())
	defer dispatcher.Close()

	// Alert history
	var hist *history.Store
	if cfg.HistoryPath != "" {
		hist, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open alert history: %w", err)
		}
		defer hist.Close()
		log.Printf("alert history at %s", cfg.HistoryPath)
	}

	var recorder notifier.Recorder
	if hist != nil {
		recorder = hist
	}
	sender := notifier.NewSender(dispatcher, recorder)

	// Signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting logalertd %s", config.Version)

	g, gCtx := errgroup.WithContext(ctx)

	// Line producer
	if err := src.Start(gCtx); err != nil {
		return fmt.Errorf("start log source: %w", err)
	}
	defer src.Stop()

	// Pipeline: single writer for all engine state. Closing the engine
	// after Run returns lets the sender drain and exit.
	g.Go(func() error {
		engine.Run(gCtx, src.Lines())
		engine.Close()
		return nil
	})

	// Delivery, decoupled from ingestion.
	g.Go(func() error {
		sender.Run(context.Background(), engine.Events())
		return nil
	})

	// Status server
	if cfg.StatusAddr != "" {
		statusSrv := api.NewServer(cfg.StatusAddr, engine, sender, hist, verbose)
		g.Go(func() error {
			return statusSrv.Start()
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer shutdownCancel()
			return statusSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}

	stats := engine.Stats()
	log.Printf("stopped: %d lines processed, %d events emitted, %d suppressed",
		stats.LinesProcessed, stats.EventsEmitted, stats.EventsSuppressed)
	return nil
}

// buildSource creates the configured log source.
func buildSource(cfg *Config) (source.Source, error) {
	switch cfg.Source.Type {
	case "journal":
		return source.NewJournalSource(&source.JournalOptions{
			Unit:           cfg.Source.Unit,
			RestartBackoff: 2 * time.Second,
		}), nil
	case "file":
		opts := source.DefaultFileOptions()
		opts.FromStart = cfg.Source.FromStart
		return source.NewFileSource(cfg.Source.Paths, opts)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}
