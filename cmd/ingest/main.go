// Package main runs one ingestion pass against the configured store and
// exits. It is meant for cron jobs and first-time seeding.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/app"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/buildinfo"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/genai"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/metrics"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/sentry"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
)

var (
	restoreFlag = flag.Bool("restore", true, "Seed an empty store from the R2 archive before crawling")
	timeoutFlag = flag.Duration("timeout", config.SyncRunTimeout, "Upper bound for the whole pass")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadForMode(config.IngestMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log := logger.New(cfg.LogLevel).WithField("version", buildinfo.String())
	log.Info("Starting ingestion tool")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = log.Shutdown(ctx)
	}()

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.String(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Error tracking disabled")
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to open storage")
		return 1
	}
	defer func() { _ = store.Close() }()
	log.WithField("driver", store.Driver()).Info("Storage connected")

	// Metrics are collected but not exported; the recorder keeps call sites
	// identical to the server.
	m := metrics.New(prometheus.NewRegistry())

	gen, err := genai.NewGenerator(ctx, genai.ConfigFrom(cfg), m)
	if err != nil {
		log.WithError(err).Warn("Generator unavailable; summaries skipped")
		gen = nil
	}

	ing, err := app.NewIngestion(ctx, cfg, store, gen, m, log)
	if err != nil {
		log.WithError(err).Error("Failed to build ingestion pipeline")
		return 1
	}

	if *restoreFlag {
		restored, err := ing.RestoreIfEmpty(ctx, store)
		switch {
		case err != nil:
			log.WithError(err).Warn("Archive restore failed")
		case restored:
			log.Info("Store seeded from archive")
		}
	}

	stats, err := ing.Pipeline.Run(ctx)
	if err != nil {
		log.WithError(err).Error("Ingestion pass finished with errors")
		fmt.Printf("menus=%d new_announcements=%d skipped=%d (with errors)\n",
			stats.Menus, stats.NewAnnouncements, stats.Skipped)
		return 1
	}

	fmt.Printf("menus=%d fallback_menus=%d new_announcements=%d skipped=%d duration=%s\n",
		stats.Menus, stats.FallbackMenus, stats.NewAnnouncements, stats.Skipped, stats.Duration.Round(time.Millisecond))
	return 0
}
