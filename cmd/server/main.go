// Command server boots the compiled-script pipeline service: it compiles
// the configured script, wires a data loader/resampler/executor around it,
// starts the HTTP surface and a scheduled refresh job, and serves until an
// interrupt signal (spec.md §1, SPEC_FULL.md §A).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/epochscript/internal/audit"
	"github.com/aristath/epochscript/internal/calendar"
	"github.com/aristath/epochscript/internal/compiler"
	"github.com/aristath/epochscript/internal/config"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/events"
	"github.com/aristath/epochscript/internal/health"
	"github.com/aristath/epochscript/internal/pipeline"
	"github.com/aristath/epochscript/internal/queue"
	"github.com/aristath/epochscript/internal/registry"
	"github.com/aristath/epochscript/internal/resample"
	"github.com/aristath/epochscript/internal/scheduler"
	"github.com/aristath/epochscript/internal/server"
	"github.com/aristath/epochscript/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting epochscript")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit store")
	}
	defer auditStore.Close()

	reg := registry.Global
	program, err := compileScript(cfg, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile script")
	}
	log.Info().Int("node_count", len(program.Nodes)).Int("executors", program.ExecutorCount).Msg("compiled program")

	assets := assetsFromIds(cfg.AssetIds)
	loader := pipeline.NewS3Loader(cfg.S3Bucket, "", cfg.S3Region, assets, pipeline.DataCategoryEquity)

	timeframes := make([]domain.Timeframe, len(cfg.Timeframes))
	for i, tf := range cfg.Timeframes {
		timeframes[i] = domain.Timeframe(tf)
	}
	resampler := pipeline.NewResamplerAdapter(resample.New(timeframes, calendar.NewNYSE()))
	executor := pipeline.NewDemoExecutorAdapter(program)

	workerLimit := cfg.WorkerLimit(health.WorkerCount(0))
	db := pipeline.NewDatabase(pipeline.Config{
		Program:       program,
		Loader:        loader,
		Resampler:     resampler,
		Executor:      executor,
		BaseTimeframe: domain.Timeframe(cfg.BaseTimeframe),
		WorkerLimit:   workerLimit,
	})

	eventBus := events.NewBus()
	eventManager := events.NewManager(eventBus, log)
	progress := queue.NewProgressReporter(eventManager, uuid.NewString())

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	refreshJob := scheduler.NewPipelineRefreshJob(scheduler.PipelineRefreshConfig{
		Log:      log,
		Pipeline: db,
		Progress: progress,
		Audit:    auditStore,
	})
	if cfg.RefreshCron != "" {
		if err := sched.AddJob(cfg.RefreshCron, refreshJob); err != nil {
			log.Fatal().Err(err).Msg("failed to register pipeline refresh job")
		}
	}

	if err := db.RunPipeline(progress); err != nil {
		log.Error().Err(err).Msg("initial pipeline run failed, continuing to serve stale/empty data")
	}

	var wsManager *pipeline.WebSocketManager
	if cfg.WebsocketURL != "" {
		wsManager = pipeline.NewWebSocketManager(cfg.WebsocketURL, log)
		wsManager.HandleNewMessage(func(batch []pipeline.BarUpdate) {
			if err := db.RefreshPipeline(pipeline.DataCategoryEquity, batch, progress); err != nil {
				log.Error().Err(err).Msg("refresh pipeline from websocket batch failed")
			}
		})
		if err := wsManager.Subscribe(assets); err != nil {
			log.Error().Err(err).Msg("initial websocket subscribe failed")
		}
		defer wsManager.Close()
	}

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		Database: db,
		Registry: reg,
		Audit:    auditStore,
		Progress: progress,
		DevMode:  cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("stopped")
}

func compileScript(cfg *config.Config, reg *registry.Registry) (*domain.CompiledProgram, error) {
	if cfg.ScriptPath == "" {
		return nil, fmt.Errorf("main: EPOCH_SCRIPT_PATH not set")
	}
	source, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("main: read script: %w", err)
	}
	return compiler.Compile(string(source), reg)
}

func assetsFromIds(ids []string) []domain.Asset {
	out := make([]domain.Asset, len(ids))
	for i, id := range ids {
		out[i] = domain.Asset{Id: id, Class: domain.AssetClassEquity}
	}
	return out
}
