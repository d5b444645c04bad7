package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/mkorchagin/photostock/internal/adapters/http"
	"github.com/mkorchagin/photostock/internal/bootstrap"
	"github.com/mkorchagin/photostock/internal/config"
	"github.com/mkorchagin/photostock/internal/observability/logging"
	"github.com/mkorchagin/photostock/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("photostock-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("photostock-api")
	router := httpadapter.NewRouter(app.Images, app.Exporter, httpMetrics.Handler()).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpMetrics.Middleware("photostock-api", router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_error", "error", err)
	}
}
