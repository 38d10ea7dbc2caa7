// Package app wires configuration, storage, the chat pipeline, ingestion
// and the HTTP surface into a runnable service and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/buildinfo"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/chat"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/genai"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ingest"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/metrics"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ratelimit"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/resolver"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/sentry"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/teams"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/webhook"
)

// Application manages the service lifecycle and its dependencies.
type Application struct {
	cfg       *config.Config
	logger    *logger.Logger
	store     storage.Store
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	composer  *chat.Composer
	ingestion *Ingestion
	scheduler *ingest.Scheduler
	webhook   *webhook.Handler
	limiters  []*ratelimit.KeyedLimiter
	server    *http.Server
	wg        sync.WaitGroup
}

// Initialize creates the application and all of its dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log = log.WithField("service", "akdeniz-chatbot-go").WithField("version", buildinfo.String())
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	// Package-level slog calls pick up user, chat and request IDs too.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.String(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Error tracking disabled")
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	log.WithField("driver", store.Driver()).Info("Storage connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	a := &Application{cfg: cfg, logger: log, store: store, metrics: m, registry: registry}
	if err := a.build(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("Initialization complete")
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log, m := a.cfg, a.logger, a.metrics

	gen, err := genai.NewGenerator(ctx, genai.ConfigFrom(cfg), m)
	if err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	classifier, err := intent.New(cfg.ClassifierPolicy, timeutil.SystemClock(), cfg.Location())
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	courses, err := config.LoadCourseMap(cfg.CourseMapPath)
	if err != nil {
		log.WithError(err).WithField("path", cfg.CourseMapPath).Warn("Course map unavailable; Teams lookups will ask for a course")
	}

	resolverOpts := resolver.Options{
		Dining:         a.store,
		Announcements:  a.store,
		Courses:        courses,
		Location:       cfg.Location(),
		StorageTimeout: cfg.StorageTimeout,
		ChannelTimeout: cfg.TeamsTimeout,
		Recorder:       m,
		Logger:         log,
	}
	if cfg.HasTeams() {
		client, err := teams.New(teams.Options{
			TenantID:     cfg.AzureTenantID,
			ClientID:     cfg.AzureClientID,
			ClientSecret: cfg.AzureClientSecret,
			CacheTTL:     cfg.TeamsCacheTTL,
			Timeout:      cfg.TeamsTimeout,
		})
		if err != nil {
			return fmt.Errorf("teams: %w", err)
		}
		resolverOpts.Channels = client
		log.Info("Teams channel lookups enabled")
	}

	composerOpts := chat.Options{
		Classifier:        classifier,
		Resolver:          resolver.New(resolverOpts),
		Generator:         gen,
		SharedSecret:      cfg.SharedSecret,
		GenerationTimeout: cfg.GenerationTimeout,
		Recorder:          m,
		Logger:            log,
		ReportError:       sentry.CaptureError,
	}
	if a.composer, err = chat.New(composerOpts); err != nil {
		return fmt.Errorf("composer: %w", err)
	}

	if a.ingestion, err = NewIngestion(ctx, cfg, a.store, gen, m, log); err != nil {
		return err
	}
	if cfg.SyncEnabled {
		a.scheduler = a.ingestion.Scheduler(cfg, log)
	}

	apiLimiter := a.newLimiter("answer")
	var lineHandler gin.HandlerFunc
	if cfg.HasLINE() {
		messenger, err := webhook.NewLineMessenger(cfg.LineChannelToken)
		if err != nil {
			return fmt.Errorf("line: %w", err)
		}
		if a.webhook, err = webhook.NewHandler(webhook.Config{
			ChannelSecret: cfg.LineChannelSecret,
			Messenger:     messenger,
			Answerer:      a.composer,
			UserLimiter:   a.newLimiter("line"),
			Recorder:      m,
			Logger:        log,
		}); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		lineHandler = a.webhook.Handle
		log.Info("LINE webhook enabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(RouterConfig{
		Answerer:        a.composer,
		Storage:         a.store,
		Webhook:         lineHandler,
		Registry:        a.registry,
		MetricsUsername: cfg.MetricsUsername,
		MetricsPassword: cfg.MetricsPassword,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		Limiter:         apiLimiter,
		Status:          a.status,
		Recorder:        m,
		Logger:          log,
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}
	return nil
}

func (a *Application) newLimiter(name string) *ratelimit.KeyedLimiter {
	l := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:              name,
		RequestsPerSecond: a.cfg.RateLimitRPS,
		Burst:             a.cfg.RateLimitBurst,
		DailyLimit:        a.cfg.RateLimitDaily,
		CleanupPeriod:     config.RateLimiterCleanupInterval,
		Recorder:          a.metrics,
	})
	a.limiters = append(a.limiters, l)
	return l
}

// status reports enabled features and the last sync for /readyz.
func (a *Application) status() gin.H {
	body := gin.H{
		"version": buildinfo.String(),
		"features": gin.H{
			"generation": a.composer.HasGenerator(),
			"teams":      a.cfg.HasTeams(),
			"line":       a.webhook != nil,
			"archive":    a.ingestion.Archive != nil,
			"sync":       a.scheduler != nil,
		},
	}
	if a.scheduler != nil {
		if last, err := a.scheduler.LastRun(); !last.IsZero() {
			lastSync := gin.H{"last_run": last.Format(time.RFC3339)}
			if err != nil {
				lastSync["last_error"] = err.Error()
			}
			body["last_sync"] = lastSync
		}
	}
	return body
}

// Run starts background jobs and the HTTP server, then blocks until SIGINT
// or SIGTERM and shuts down.
//
// Background jobs are stopped and awaited before storage is closed, so an
// in-flight ingestion pass never writes to a closed store.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()
	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		restored, err := a.ingestion.RestoreIfEmpty(ctx, a.store)
		switch {
		case err != nil:
			a.logger.WithError(err).Warn("Archive restore failed")
			sentry.CaptureError(ctx, err)
		case restored:
			a.logger.Info("Store seeded from archive")
		}

		if a.scheduler != nil {
			a.scheduler.Start(ctx)
		}
	})
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops the HTTP server, drains LINE events and closes resources.
func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.webhook != nil {
		a.logger.Info("Waiting for webhook events to complete...")
		if err := a.webhook.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
		}
	}

	for _, l := range a.limiters {
		l.Stop()
	}

	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "storage").Error("Component close error")
	}

	sentry.Flush(2 * time.Second)
	if err := a.logger.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}
