package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"moodline/internal/api"
	"moodline/internal/classifier"
	"moodline/internal/config"
	"moodline/internal/logging"
	"moodline/internal/notifier"
	"moodline/internal/queue"
	"moodline/internal/redis"
	"moodline/internal/storage"
	"moodline/internal/worker"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigFile, "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	var (
		mirrors []storage.AuditLog
		records api.RecordSource
	)

	if cfg.Audit.DatabaseURL != "" {
		pg, err := storage.NewPostgres(cfg.Audit.DatabaseURL)
		if err != nil {
			return err
		}
		mirrors = append(mirrors, pg)
		records = pg
		logger.Info("audit mirror enabled", "store", "postgres")
	}

	if len(cfg.Queue.Brokers) > 0 {
		kafka, err := queue.NewKafka(cfg.Queue.Brokers, cfg.Queue.Topic)
		if err != nil {
			return err
		}
		mirrors = append(mirrors, kafka)
		logger.Info("audit mirror enabled", "store", "kafka", "topic", cfg.Queue.Topic)
	}

	audit := storage.NewMulti(storage.NewCSV(cfg.Audit.Path), mirrors,
		storage.WithOnMirrorError(func(err error) {
			logger.Warn("audit mirror append failed", "error", err)
		}),
	)
	defer audit.Close()

	msgs, err := worker.NewMessages(cfg.Messages)
	if err != nil {
		return err
	}

	cl := classifier.NewHuggingFace(cfg.Classifier.Endpoint, cfg.Classifier.APIToken, cfg.Classifier.Labels,
		classifier.WithTimeout(cfg.Classifier.Timeout),
		classifier.WithHypothesisTemplate(cfg.Classifier.HypothesisTemplate),
	)
	nt := notifier.NewLine(cfg.Line.ChannelAccessToken, cfg.Line.BaseURL)

	broker := api.NewSSEBroker()
	opts := []worker.Option{
		worker.WithLogger(logger),
		worker.WithMaxInFlight(cfg.Dispatcher.MaxInFlight),
		worker.WithDeliveryTimeout(cfg.Dispatcher.DeliveryTimeout),
		worker.WithBroadcaster(broker),
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, worker.WithClaimer(rdb, cfg.Dispatcher.DedupTTL))
		logger.Info("redelivery guard enabled", "addr", cfg.Redis.Addr)
	}

	dispatcher := worker.NewDispatcher(cl, audit, nt, msgs, opts...)

	serverOpts := []api.Option{api.WithBroker(broker)}
	if records != nil {
		serverOpts = append(serverOpts, api.WithRecords(records))
	}
	server := api.NewServer(dispatcher, cfg.Line.ChannelSecret, logger, serverOpts...)

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errc:
		return err
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("in-flight events abandoned", "error", err)
	}
	return nil
}
