package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"example/comment-search-api/app"
	"example/comment-search-api/app/config"
	"example/comment-search-api/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.Logs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container := app.NewContainer(cfg, log)
	deps, err := container.Init(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize dependencies")
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           app.NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if err := container.Close(); err != nil {
		log.WithError(err).Error("close dependencies")
	}
}
