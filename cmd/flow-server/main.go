// cmd/flow-server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"certflow/internal/api"
	"certflow/internal/common/config"
	commonhttp "certflow/internal/common/http"
	"certflow/internal/common/logger"
	"certflow/internal/common/observability"
	"certflow/internal/flow/gate"
	"certflow/internal/session"
)

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CERTFLOW_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service":  "flow-server",
		"revision": cfg.Revision,
	})

	obs := observability.New("flow-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := session.NewStore(ctx, cfg)
	if err != nil {
		zapLog.Fatal("session store init failed", zap.Error(err), zap.String("store", cfg.Session.Store))
	}
	defer closeStore()

	manager := session.NewManager(
		session.DefinitionFromConfig(cfg),
		session.Deps{
			Transport: gate.NewHTTPTransport(cfg.Submission.Endpoint, commonhttp.NewClient(0)),
			Logger:    log,
			Obs:       obs,
		},
		store,
	)

	router := api.NewRouter(api.RouterConfig{
		Logger:         log,
		Sessions:       api.NewSessionHandler(manager, log),
		MetricsHandler: promhttp.Handler(),
		Health: func(r *http.Request) error {
			return session.HealthCheck(r.Context(), store)
		},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go evictIdle(ctx, manager, time.Duration(cfg.Session.TTL)*time.Second)

	go func() {
		log.Info("flow server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", map[string]interface{}{"error": err})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn("observability shutdown failed", map[string]interface{}{"error": err})
	}
}

// evictIdle drops idle sessions from memory; the store still holds them
// until their TTL runs out.
func evictIdle(ctx context.Context, m *session.Manager, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evict(idle)
		}
	}
}
