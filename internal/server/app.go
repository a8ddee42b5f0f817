// Package server wires the whole application together: configuration,
// database and migrations, object storage, the generation backend, the
// business services and the HTTP surface, plus graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wilvurson/ai-chat/internal/logging"
	"github.com/wilvurson/ai-chat/internal/observability"
	"github.com/wilvurson/ai-chat/internal/server/auth"
	"github.com/wilvurson/ai-chat/internal/server/blob"
	"github.com/wilvurson/ai-chat/internal/server/config"
	"github.com/wilvurson/ai-chat/internal/server/httpapi"
	"github.com/wilvurson/ai-chat/internal/server/llm"
	"github.com/wilvurson/ai-chat/internal/server/repositories/repomanager"
	"github.com/wilvurson/ai-chat/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.Config{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	var generator llm.Generator
	if cfg.GeminiAPIKey == "" {
		logger.Warn(ctx, "no gemini api key configured, using mock generator")
		generator = &llm.MockGenerator{}
	} else {
		generator, err = llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("generator init error: %w", err)
		}
	}

	identity := auth.NewProvider([]byte(cfg.SecretKey), cfg.SecretKeyVersion, cfg.TokenValidityDuration)
	metrics := observability.NewMetrics("aichat")

	userService := services.NewUserService(db, repos, identity)
	characterService := services.NewCharacterService(db, repos, blobs, logger)
	conversationService := services.NewConversationService(db, repos, generator, metrics, logger, cfg.GenerationTimeout)

	api := httpapi.New(userService, characterService, conversationService, identity, db, logger, cfg.CookieSecure)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: &http.Server{
			Addr:    cfg.EndpointAddr,
			Handler: api.Router(),
		},
	}, nil
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains in-flight requests within shutdownTimeout.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if err := app.db.Close(); err != nil {
		return fmt.Errorf("db close error: %w", err)
	}

	app.logger.Info(ctx, "server stopped")
	return nil
}
