package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"andromeda-healthcare/internal/bootstrap"
	"andromeda-healthcare/internal/config"
	"andromeda-healthcare/internal/logger"
	httptransport "andromeda-healthcare/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Stdout)
	stop()
	os.Exit(code)
}

// run serves until ctx is cancelled and returns the process exit code.
// Resources are released before it returns.
func run(ctx context.Context, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(out, nil)).Error("load config failed", slog.Any("error", err))
		return 1
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel, out)
	slog.SetDefault(log)

	app, err := bootstrap.NewWithConfig(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("close resources failed", slog.Any("error", err))
		}
	}()

	router, err := httptransport.NewRouter(app)
	if err != nil {
		log.Error("build router failed", slog.Any("error", err))
		return 1
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadHeaderTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.App.Env),
			slog.String("database", cfg.Database.Driver),
			slog.String("error_mode", cfg.Auth.ErrorMode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", slog.Any("error", err))
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	if err := shutdown(server, time.Duration(cfg.HTTP.ShutdownTimeoutSeconds)*time.Second, log); err != nil {
		return 1
	}
	return 0
}

func shutdown(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
		return err
	}
	return nil
}
