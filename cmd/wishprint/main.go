package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/orrn/wishprint/internal/api"
	"github.com/orrn/wishprint/internal/api/middleware"
	"github.com/orrn/wishprint/internal/config"
	"github.com/orrn/wishprint/internal/core"
	"github.com/orrn/wishprint/internal/db"
	"github.com/orrn/wishprint/internal/logging"
	"github.com/orrn/wishprint/internal/shopify"
	"github.com/orrn/wishprint/internal/webhook"
)

func main() {
	configPath := flag.String("config", "wishprint.yaml", "path to the YAML config file")
	dotenvPath := flag.String("env", ".env", "path to a .env file (ignored when missing)")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for a dashboard password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(hash))
		return
	}

	cfg, err := config.Load(*configPath, *dotenvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("wishprint stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	journal, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	artifacts, err := core.NewArtifactStore(cfg.Labels.Dir)
	if err != nil {
		return err
	}

	var hooks core.WebhookSender
	var sender *webhook.Sender
	if len(cfg.Webhooks.URLs) > 0 {
		sender = webhook.NewSender(cfg.Webhooks, logger.Named("webhook"))
		sender.Start()
		defer sender.Stop()
		hooks = sender
	}

	layout := core.DefaultLabelLayout()
	tracker := core.NewStatusTracker()
	queue := core.NewJobQueue(artifacts, tracker, journal, logger.Named("queue"))
	source := shopify.NewClient(cfg.Shopify, logger.Named("shopify"))
	aggregator := core.NewOrderAggregator(source, queue, cfg.Shopify.ProductIDs, cfg.Shopify.MaxPages, logger.Named("aggregator"))
	renderer := core.NewLabelRenderer(artifacts, cfg.Labels.ScratchDir, cfg.Labels.KeyPrefix, logger.Named("renderer"))
	spooler := core.NewSpoolerPrinter(core.SpoolerConfig{
		Command:       cfg.Printer.Command,
		StatusCommand: cfg.Printer.StatusCommand,
		Destination:   cfg.Printer.Destination,
		MediaWidth:    layout.Width,
		MediaHeight:   layout.Height,
	}, logger.Named("spooler"))
	dispatcher := core.NewPrintDispatcher(spooler, core.PrintOptions{
		PaperSize:   cfg.Printer.PaperSize,
		Orientation: cfg.Printer.Orientation,
		Scale:       cfg.Printer.Scale,
		Silent:      cfg.Printer.Silent,
	}, cfg.Printer.Timeout, tracker, journal, hooks, logger.Named("dispatcher"))
	processor := core.NewProcessor(queue, renderer, dispatcher, tracker, journal, hooks, logger.Named("processor"))

	scheduler := core.NewScheduler(core.SchedulerConfig{
		PollInterval:  cfg.Scheduler.PollInterval,
		DrainInterval: cfg.Scheduler.DrainInterval,
		PollTimeout:   cfg.Scheduler.PollTimeout,
		DrainTimeout:  cfg.Scheduler.DrainTimeout,
	}, aggregator, processor, logger.Named("scheduler"))

	var auth *middleware.AuthMiddleware
	if cfg.Auth.Enabled() {
		auth, err = middleware.NewAuthMiddleware(cfg.Auth.PasswordHash, cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
	}

	router := api.NewRouter(api.Deps{
		Tracker:  tracker,
		Queue:    queue,
		Events:   journal,
		Counters: journal,
		Printer:  spooler,
		Auth:     auth,
	}, logger.Named("api"))
	server := api.NewServer(cfg.Server, router, logger.Named("api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("wishprint starting",
		zap.String("store", cfg.Shopify.Store),
		zap.Strings("products", cfg.Shopify.ProductIDs),
		zap.String("labels", artifacts.Dir()),
		zap.String("printer", cfg.Printer.Destination))

	serverErr := server.Start()
	scheduler.Start(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = fmt.Errorf("status api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status api shutdown", zap.Error(err))
	}
	scheduler.Stop()

	logger.Info("wishprint stopped")
	return runErr
}
