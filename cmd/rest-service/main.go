package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/config"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/handler"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/metrics"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/storage"
)

func main() {
	if err := runMain(); err != nil {
		log.WithError(err).Error("rest-service failed")
		os.Exit(1)
	}
}

func runMain() error {
	var configPath string
	rootCommand := &cobra.Command{
		Use:           "rest-service",
		Short:         "Company file cabinet API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")

	rootCommand.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	rootCommand.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and load the file type registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, l, err := setup(configPath)
			if err != nil {
				return err
			}
			l.Info("schema is up to date")
			return nil
		},
	})

	var userID uint
	tokenCommand := &cobra.Command{
		Use:   "token",
		Short: "Sign a development token for an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return issueToken(cmd.Context(), configPath, userID)
		},
	}
	tokenCommand.Flags().UintVar(&userID, "user-id", 0, "id of the user the token is issued for")
	_ = tokenCommand.MarkFlagRequired("user-id")
	rootCommand.AddCommand(tokenCommand)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCommand.ExecuteContext(ctx)
}

type app struct {
	cfg  *config.Config
	repo *database.Repository
}

// setup loads the configuration, builds the logger and opens the migrated store.
func setup(configPath string) (*app, *log.Entry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("can't build logger: %w", err)
	}
	l := logger.WithFields(log.Fields{
		"service":   "rest",
		"db_driver": cfg.Database.Driver,
		"remote":    cfg.Remote.Type,
	})
	db, err := database.NewDb(cfg.Database.Driver, cfg.Database.DSN, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &app{cfg: cfg, repo: database.NewRepository(db)}, l, nil
}

func serve(ctx context.Context, configPath string) error {
	a, l, err := setup(configPath)
	if err != nil {
		return err
	}
	cfg := a.cfg

	tokens, err := auth.NewTokens(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	var (
		m            *metrics.Metrics
		remoteMetric remote.Metrics
	)
	if cfg.Metrics.Enabled {
		m = metrics.New()
		remoteMetric = m
	}
	if cfg.Remote.Type == config.RemoteMemory {
		l.Warn("remote type is memory: uploaded files are lost when the process exits")
	}
	rs, err := config.CreateRemoteStorage(ctx, cfg.Remote, remoteMetric, l.WithField("component", "remote"))
	if err != nil {
		return fmt.Errorf("can't set up remote storage: %w", err)
	}
	svc := storage.NewServer(a.repo, rs, l.WithField("component", "storage"))

	opts := handler.Options{
		RequestTimeout:    cfg.Server.RequestTimeout,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
		MaxUploadSize:     cfg.Server.MaxUploadSize,
	}
	var mux *http.ServeMux
	if m != nil {
		svc.WithQuotaMetrics(m)
		mux = handler.NewHandler(svc, tokens, m, opts, l)
		mux.Handle("GET /metrics", m.Handler())
	} else {
		mux = handler.NewHandler(svc, tokens, nil, opts, l)
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		l.WithField("port", cfg.Server.Port).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve returned err: %w", err)
	case <-ctx.Done():
		l.Info("got interruption signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("handler shutdown returned an err: %w", err)
	}
	return nil
}

func issueToken(ctx context.Context, configPath string, userID uint) error {
	a, _, err := setup(configPath)
	if err != nil {
		return err
	}
	u, err := a.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("can't load user %d: %w", userID, err)
	}
	tokens, err := auth.NewTokens(a.cfg.Auth.SigningKey, a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(auth.Principal{
		UserID:       u.ID,
		CompanyID:    u.CompanyID,
		DepartmentID: u.DepartmentID,
		PersonalID:   u.PersonalID,
		UserName:     u.Name,
		Storage:      u.Storage,
		Permission:   u.Permission,
		Admin:        u.Admin,
	})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
