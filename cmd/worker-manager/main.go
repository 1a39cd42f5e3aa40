// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"brokerage-insights/internal/app"
	"brokerage-insights/internal/common/config"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/observability"
	aq "brokerage-insights/internal/workers/insights/answer-question"
)

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

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("provider", cfg.Generation.Provider),
	)

	obs := observability.New(cfg.App.Name, observability.WithSampleRatio(cfg.Monitoring.SampleRatio))
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Backing stores with retry ---
	conns, err := app.Connect(ctx, cfg, func(op func() error, name string) error {
		return retryWithBackoff(op, 15, 2*time.Second, zapLog, name)
	})
	if err != nil {
		zapLog.Fatal("backing stores unavailable", zap.Error(err))
	}
	defer conns.Close()
	zapLog.Info("Backing stores connected",
		zap.Bool("redis", conns.Redis != nil),
		zap.Bool("elasticsearch", conns.Elastic != nil),
	)
	if conns.Redis != nil {
		n, err := conns.Redis.CallerIDCount(ctx, cfg.Identity.RedisKey)
		if err != nil {
			zapLog.Warn("caller id directory unreadable", zap.Error(err))
		} else if n == 0 {
			zapLog.Warn("caller id directory is empty, using static table only", zap.String("key", cfg.Identity.RedisKey))
		}
	}

	pipeline, err := app.Assemble(cfg, conns, obs, log)
	if err != nil {
		zapLog.Fatal("pipeline assembly failed", zap.Error(err))
	}
	zapLog.Info("Pipeline ready", zap.Bool("synthesis", pipeline.CanSynthesize()))

	// --- Zeebe client and workers ---
	var zeebeClient zbc.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		handler := aq.NewHandler(aq.LoadConfig(cfg), pipeline, log)
		startWorker(zeebeClient, aq.TaskType, config.GetWorkerConfig(cfg, aq.TaskType), handler.Handle, zapLog)
	} else {
		zapLog.Info("camunda disabled, serving health and metrics only")
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := conns.Ping(pingCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
				"time":   time.Now().Format(time.RFC3339),
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status":    "ready",
			"synthesis": fmt.Sprintf("%t", pipeline.CanSynthesize()),
			"time":      time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Monitoring.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Monitoring.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
