// cmd/finhub-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finhub-workers/internal/audit"
	"finhub-workers/internal/common/camunda"
	"finhub-workers/internal/common/config"
	"finhub-workers/internal/common/database"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/common/observability"
	"finhub-workers/internal/common/workday"
	"finhub-workers/internal/models"
	"finhub-workers/internal/shell"
	"finhub-workers/internal/transaction"

	ei "finhub-workers/internal/workers/ai-conversation/extract-intent"
	st "finhub-workers/internal/workers/finance/submit-transaction"
)

const serviceName = "finhub-server"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting finhub server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(serviceName, nil, log)
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	readiness := map[string]shell.ReadinessCheck{}

	// --- Conversation history: Redis when configured ---
	var history models.ConversationStore = shell.NewMemoryHistory(cfg.Shell.HistoryLimit)
	if cfg.Database.Redis.Enabled() {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		history = shell.NewRedisHistory(rdb.Client, cfg.Shell.HistoryLimit, time.Duration(cfg.Shell.HistoryTTL)*time.Minute)
		readiness["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis not configured, keeping history in memory")
	}

	// --- Dispatch audit: PostgreSQL when configured ---
	var auditor transaction.Auditor = audit.NopRecorder{}
	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		recorder := audit.NewRecorder(pg.DB)
		if err := recorder.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("audit schema setup failed", zap.Error(err))
		}
		auditor = recorder
		readiness["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	} else {
		zapLog.Info("PostgreSQL not configured, dispatch audit disabled")
	}

	// --- Dispatch core ---
	transport := workday.NewClient(workday.Config{
		Scheme:     cfg.Workday.Scheme,
		APIVersion: cfg.Workday.APIVersion,
		Timeout:    config.GetDuration(cfg.Workday.Timeout),
	}, log.With(map[string]interface{}{"component": "workday"}))

	dispatcher, err := transaction.NewDispatcher(transaction.DispatcherOptions{
		Registry:  transaction.DefaultRegistry(),
		Builder:   transaction.NewBuilder(cfg.Workday.MemoMaxLength),
		Transport: transport,
		Auditor:   auditor,
		Metrics:   obs,
		Logger:    log.With(map[string]interface{}{"component": "dispatcher"}),
		Tracer:    obs.Tracer(),
	})
	if err != nil {
		zapLog.Fatal("dispatcher setup failed", zap.Error(err))
	}

	extractor := ei.NewHandler(ei.LoadConfig(cfg), log)

	// --- Optional BPMN workers ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		readiness["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		if wcfg := config.GetWorkerConfig(cfg, ei.TaskType); wcfg.Enabled {
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), ei.TaskType, wcfg, extractor, obs, log))
		}

		if wcfg := config.GetWorkerConfig(cfg, st.TaskType); wcfg.Enabled {
			handler, err := st.NewHandler(st.HandlerOptions{
				Config:     st.LoadConfig(cfg),
				Dispatcher: dispatcher,
				Logger:     log,
			})
			if err != nil {
				zapLog.Fatal("failed to create submit-transaction handler", zap.Error(err))
			}
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), st.TaskType, wcfg, handler, obs, log))
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	}

	// --- Interactive shell ---
	sessions := shell.NewSessionStore(time.Duration(cfg.Shell.SessionTTL) * time.Minute)
	server := shell.NewServer(shell.ServerOptions{
		Sessions:   sessions,
		History:    history,
		Extractor:  extractor,
		Dispatcher: dispatcher,
		Logger:     log.With(map[string]interface{}{"component": "shell"}),
		Readiness:  readiness,
	})
	go sessions.Run(ctx, time.Minute, server.DropHistory)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Shell server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("shell server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down shell server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("finhub server stopped gracefully")
}
