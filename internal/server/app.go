// Package server wires the petmarket backend together: configuration,
// logging, Postgres with migrations, Redis, object storage, mail, events,
// metrics, the services and the HTTP server, and runs it until a shutdown
// signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/config"
	"github.com/dmitrijs2005/petmarket/internal/server/events"
	"github.com/dmitrijs2005/petmarket/internal/server/mailer"
	"github.com/dmitrijs2005/petmarket/internal/server/metrics"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/pending"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petmarket/internal/server/rest"
	"github.com/dmitrijs2005/petmarket/internal/server/services"
	"github.com/dmitrijs2005/petmarket/internal/server/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []io.Closer
	server  *rest.Server
}

// JWTKinds maps the configured secrets and lifetimes onto token kinds.
func JWTKinds(c *config.Config) map[auth.Kind]auth.KindConfig {
	return map[auth.Kind]auth.KindConfig{
		auth.KindAccess:            {Secret: []byte(c.AccessTokenSecret), Validity: c.AccessTokenValidityDuration},
		auth.KindRefresh:           {Secret: []byte(c.RefreshTokenSecret), Validity: c.RefreshTokenValidityDuration},
		auth.KindEmailVerification: {Secret: []byte(c.VerificationTokenSecret), Validity: c.VerificationTokenValidityDuration},
		auth.KindPasswordReset:     {Secret: []byte(c.ResetTokenSecret), Validity: c.ResetTokenValidityDuration},
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.Logger, os.Stdout, c.IsDevelopment())
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	if err := app.init(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	rc, err := pending.NewClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, rc)

	st, err := storage.NewS3Storage(ctx, storage.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return err
	}

	var sender mailer.Sender
	if c.SMTPHost == "" {
		app.logger.Warn(ctx, "SMTP host not set, emails are logged instead of sent")
		sender = mailer.NewLogSender(app.logger.With("module", "mailer"))
	} else {
		smtp, err := mailer.NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUsername, c.SMTPPassword, c.MailFrom)
		if err != nil {
			return err
		}
		sender = smtp
	}

	var publisher events.Publisher = events.NopPublisher{}
	if c.NATSURL != "" {
		np, err := events.NewNATSPublisher(c.NATSURL, app.logger.With("module", "events"))
		if err != nil {
			return err
		}
		app.closers = append(app.closers, np)
		publisher = np
	}

	jwt, err := auth.NewManager(JWTKinds(c))
	if err != nil {
		return err
	}

	m := metrics.NewManager()
	tokens := services.NewTokenService(db, rm, jwt)

	deps := services.Deps{
		DB:      db,
		Repos:   rm,
		Tokens:  tokens,
		JWT:     jwt,
		Pending: pending.NewRedisStore(rc),
		Mailer:  sender,
		Events:  publisher,
		Metrics: m,
	}

	authDeps := deps
	authDeps.Log = app.logger.With("module", "auth_service")
	sellerDeps := deps
	sellerDeps.Log = app.logger.With("module", "seller_service")

	authService := services.NewAuthService(authDeps, c)
	sellerService := services.NewSellerService(sellerDeps, st)

	app.server = rest.NewServer(c, app.logger, authService, sellerService, tokens, m)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// close releases resources in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err)
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}
