// Package app assembles the engine from configuration: database, outbound
// clients, strategies, executor, dispatcher and the admin API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"automations/internal/config"
	"automations/internal/handlers"
	"automations/internal/recurrence"
	"automations/internal/services"
	"automations/internal/store"
	"automations/pkg/ai"
	"automations/pkg/github"
	"automations/pkg/httpx"
	"automations/pkg/recap"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

const userAgent = "automations/1.0"

// App holds the wired components.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *store.Store
	Executor   *services.Executor
	Dispatcher *services.Dispatcher
	Service    *services.AutomationService
	Router     *gin.Engine
	logger     *logrus.Logger
}

// OpenDatabase connects to Postgres. All timestamps are UTC.
func OpenDatabase(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Log.Level == "debug" {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		if err := db.Use(gormtracing.NewPlugin()); err != nil {
			log.Warnf("gorm tracing plugin: %v", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}
	return db, nil
}

// New wires every component on top of db.
func New(cfg *config.Config, db *gorm.DB, log *logrus.Logger) *App {
	if log == nil {
		log = logrus.StandardLogger()
	}
	st := store.New(db)
	rec := recurrence.NewEvaluator()

	exec := services.NewExecutor(st, rec, buildStrategies(cfg, st, log), log)
	dispatcher := services.NewDispatcher(st, exec, services.DispatcherConfig{
		Interval:    cfg.Scheduler.TickInterval,
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
	}, log)
	svc := services.NewAutomationService(st, rec, exec, log)

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(
		cfg.Monitoring.Tracing.ServiceName,
		handlers.NewHealthHandler(cfg, db, log),
		handlers.NewAutomationHandler(svc),
		log,
	)

	return &App{
		Config:     cfg,
		DB:         db,
		Store:      st,
		Executor:   exec,
		Dispatcher: dispatcher,
		Service:    svc,
		Router:     router,
		logger:     log,
	}
}

// buildStrategies leaves a strategy nil when its upstream is not
// configured; the executor then reports the service as not configured and
// the automation stays active.
func buildStrategies(cfg *config.Config, st *store.Store, log *logrus.Logger) services.Strategies {
	if cfg.AI.APIKey == "" {
		log.Warn("ai.api_key not set: badge and recap automations are disabled")
		return services.Strategies{}
	}
	breaker := httpx.BreakerSettings{
		Enabled:         cfg.CircuitBreaker.Enabled,
		MaxFailures:     cfg.CircuitBreaker.MaxFailures,
		ResetTimeout:    cfg.CircuitBreaker.ResetTimeout,
		HalfOpenMaxReqs: cfg.CircuitBreaker.HalfOpenMaxReqs,
	}

	aiRetry := httpx.DefaultRetryPolicy()
	aiRetry.MaxRetries = cfg.AI.MaxRetries
	aiHTTP := httpx.New("ai", cfg.AI.Timeout, aiRetry, breaker, userAgent, httpx.WithLogger(log))
	llm := ai.NewClient(ai.Config{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AI.Timeout,
	}, aiHTTP, log)
	oracle := ai.NewOracle(llm)

	ghRetry := httpx.DefaultRetryPolicy()
	ghRetry.MaxRetries = cfg.GitHub.MaxRetries
	ghHTTP := httpx.New("github", cfg.GitHub.Timeout, ghRetry, breaker, userAgent, httpx.WithLogger(log))
	gh := github.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.Token, ghHTTP, log)

	return services.Strategies{
		GitHubRepoRecap:     services.NewGitHubRepoRecap(st, recap.NewGenerator(gh, llm, log), log),
		FirstOrgPostBadge:   services.NewFirstOrgPostBadge(st, oracle, log),
		ArticleContentBadge: services.NewArticleContentBadge(st, oracle, log, cfg.Content.IndexMinimumScore),
		WarmWelcomeBadge:    services.NewWarmWelcomeBadge(st, oracle, log, cfg.Content.WelcomeTag),
	}
}

// Serve runs the admin API (if enabled) and the dispatcher (if enabled)
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.Config.Server.Enabled {
		srv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
			Handler:           a.Router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.logger.Infof("Starting server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if a.Config.Scheduler.Enabled {
		g.Go(func() error {
			return a.Dispatcher.Start(gctx)
		})
	}

	return g.Wait()
}
