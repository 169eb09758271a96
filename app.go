package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/librosapp/libros/backend/go-services/handlers"
	"github.com/librosapp/libros/backend/go-services/internal/book/repository"
	"github.com/librosapp/libros/backend/go-services/internal/book/service"
	"github.com/librosapp/libros/backend/go-services/internal/config"
	"github.com/librosapp/libros/backend/go-services/internal/database"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App owns the HTTP server and the resources behind it.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	server   *http.Server
	svc      *service.Service
	cleanups []func()
}

// NewApp connects the record store, the optional cache and the file store and
// builds the HTTP server. Without MONGODB_URI books live in memory.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, log: log}

	repo, deps, err := app.openRecordStore(ctx)
	if err != nil {
		app.Clean()
		return nil, err
	}
	files, err := storage.Open(ctx, cfg.Uploads)
	if err != nil {
		app.Clean()
		return nil, fmt.Errorf("open file store: %w", err)
	}

	app.svc = service.New(repo, files, log.Named("books"))
	app.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newRouter(cfg, app.svc, log, deps...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return app, nil
}

func (app *App) openRecordStore(ctx context.Context) (repository.Repository, []handlers.Dependency, error) {
	cfg := app.cfg
	var repo repository.Repository
	var deps []handlers.Dependency

	if cfg.MongoDB.URI == "" {
		app.log.Warn("MONGODB_URI not set, books are kept in memory")
		repo = repository.NewMemoryRepo()
	} else {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, database.Retry{
			Attempts: cfg.MongoDB.ConnectAttempts,
			Backoff:  time.Second,
			OnFailure: func(attempt int, err error) {
				app.log.Warn("failed to connect to MongoDB",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", cfg.MongoDB.ConnectAttempts),
					zap.Error(err),
				)
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		app.cleanups = append(app.cleanups, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		})
		mrepo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
		if err := mrepo.EnsureIndexes(ctx); err != nil {
			app.log.Warn("could not ensure indexes", zap.Error(err))
		}
		app.log.Info("connected to MongoDB",
			zap.String("database", cfg.MongoDB.Database),
			zap.String("collection", cfg.MongoDB.Collection),
		)
		repo = mrepo
	}
	store := repo
	deps = append(deps, handlers.Dependency{Name: "store", Ping: store.Ping})

	if cfg.Redis.Enabled() {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			app.log.Warn("redis unavailable, book cache disabled", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
			_ = rc.Close()
		} else {
			app.cleanups = append(app.cleanups, func() { _ = rc.Close() })
			repo = repository.NewCachedRepo(repo, rc, cfg.Redis.CacheTTL, app.log.Named("cache"))
			deps = append(deps, handlers.Dependency{Name: "redis", Ping: func(ctx context.Context) error {
				return rc.Ping(ctx).Err()
			}})
			app.log.Info("book cache enabled", zap.String("addr", cfg.Redis.Addr()), zap.Duration("ttl", cfg.Redis.CacheTTL))
		}
	}
	return repo, deps, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.log.Info("api server stopped", zap.String("addr", app.server.Addr), zap.Error(err))
	return err
}

// Clean calls all registered cleanup functions in reverse order.
func (app *App) Clean() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
	app.cleanups = nil
}

// Serve starts the api web server. Its error is caught by the errgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.log.Info("api server starting", zap.String("addr", app.server.Addr))
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop waits for the group context, shuts the server down gracefully and
// waits for background cover removals. It returns nil so the errgroup only
// reports the Serve result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.log.Info("api server stopping. reason: requested to stop")
		} else {
			app.log.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.log.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.log.Warn("api server graceful shutdown timed out")
		default:
			app.log.Warn("api server graceful shutdown failed", zap.Error(err))
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Warn("api server going to force shutdown", zap.Error(app.server.Close()))
		}

		if err := app.svc.Drain(sCtx); err != nil {
			app.log.Warn("pending cover cleanups abandoned", zap.Error(err))
		}
		return nil
	}
}
