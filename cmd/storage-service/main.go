package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/storage-service/handler"
	"github.com/konorlevich/cloud_cabinet/internal/storage-service/storage"
)

var (
	port        = "8080"
	storagePath = "/var/lib/cabinet"
	logLevel    = log.InfoLevel
)

func init() {
	if p := os.Getenv("STORAGE_PORT"); p != "" {
		port = p
	}
	if p := os.Getenv("STORAGE_PATH"); p != "" {
		storagePath = p
	}
	if lvl, err := log.ParseLevel(os.Getenv("STORAGE_LOG_LEVEL")); err == nil {
		logLevel = lvl
	}
}

func main() {
	logger := log.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&log.JSONFormatter{})
	l := logger.WithFields(log.Fields{
		"service":      "storage",
		"storage_port": port,
		"storage_path": storagePath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := storage.NewStorage(storagePath, l)
	if err != nil {
		l.WithError(err).Fatal("can't open storage")
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.NewHandler(s, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Fatal("listen and serve returned err")
		}
	}()

	<-ctx.Done()
	l.Info("got interruption signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.WithError(err).Error("handler shutdown returned an err")
	}
}
