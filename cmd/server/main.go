package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"keycards/impl/core"
	"keycards/internal/acquire"
	"keycards/internal/campaign"
	"keycards/internal/config"
	"keycards/internal/database"
	"keycards/internal/http-server/api"
	"keycards/internal/keycard"
	"keycards/internal/report"
	"keycards/internal/signer"
	"keycards/internal/sweep"
	"keycards/lib/clock"
	"keycards/lib/sl"
)

const (
	envLocal    = "local"
	envDev      = "dev"
	envProd     = "prod"
	logFileName = "keycards.log"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	logger := setupLogger(conf.Env, *logPath)
	logger.Info("starting keycards",
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.Int("sources", len(conf.Sources)))

	db := database.NewMongoClient(conf)
	if db == nil {
		logger.Error("mongo is disabled in config; a store is required")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Error("ensure indexes", sl.Err(err))
		cancel()
		os.Exit(1)
	}
	cancel()

	signerClient := signer.NewClient(conf.Signer, logger)
	sources := make([]acquire.Source, 0, len(conf.Sources))
	for _, src := range conf.Sources {
		sources = append(sources, campaign.NewClient(src, signerClient, logger))
	}
	orchestrator := acquire.New(sources, logger)

	svc := keycard.NewService(db, orchestrator, conf.CodeLength, clock.System(), logger)

	var sink sweep.Sink
	if s := report.NewSink(conf.Sweep.ReportUrl, logger); s != nil {
		sink = s
	}
	job := sweep.NewJob(db, orchestrator, sink, conf.Sweep.Concurrency, logger)
	scheduler := sweep.NewScheduler(logger)
	if err := scheduler.Register(conf.Sweep.Schedule, job); err != nil {
		logger.Error("register sweep job", sl.Err(err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := core.New(svc, conf.AdminToken, logger)
	if err := api.New(conf, logger, handler); err != nil {
		logger.Error("api server stopped", sl.Err(err))
	}
}

func setupLogger(env, path string) *slog.Logger {
	var logger *slog.Logger
	var logFile *os.File
	var err error

	if env != envLocal {
		logPath := logFilePath(path)
		logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("error opening log file: ", err)
		}
		log.Printf("env: %s; log file: %s", env, logPath)
	}

	switch env {
	case envLocal:
		logger = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		logger = slog.New(
			slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		logger = slog.New(
			slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log.Fatal("invalid environment: ", env)
	}

	return logger
}

func logFilePath(path string) string {
	return filepath.Join(path, logFileName)
}
