// Package server initializes and runs the portal server: it opens the
// database, runs migrations, wires the services, and serves the HTTP API
// until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ateliertech/portal/internal/logging"
	"github.com/ateliertech/portal/internal/server/auth"
	"github.com/ateliertech/portal/internal/server/blob"
	"github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/httpapi"
	"github.com/ateliertech/portal/internal/server/intake"
	"github.com/ateliertech/portal/internal/server/mail"
	"github.com/ateliertech/portal/internal/server/password"
	"github.com/ateliertech/portal/internal/server/repositories/repomanager"
	"github.com/ateliertech/portal/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONStdout()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	tokens := auth.NewService(cfg.SecretKey)
	hasher := password.NewBcryptHasher()
	store := blob.NewS3Store(cfg)
	mailer := mail.NewSMTPMailer(cfg)
	stager := intake.NewStager(store, logger)
	issuer := services.NewCredentialIssuer(manager, hasher, cfg)

	applicationService := services.NewApplicationService(db, manager, stager, issuer, tokens, mailer, cfg, logger)
	authService := services.NewAuthService(db, manager, tokens, hasher, mailer, cfg, logger)

	handler := httpapi.NewHandler(applicationService, authService, db.Ping, logger)

	return &App{config: cfg, logger: logger, db: db, handler: handler}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves the HTTP API until ctx is cancelled or a termination signal
// arrives, then drains in-flight requests and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "http server starting", "addr", app.config.EndpointAddrHTTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err.Error())
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}

	return nil
}
