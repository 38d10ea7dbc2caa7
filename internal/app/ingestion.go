package app

import (
	"context"
	"fmt"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/archive"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/genai"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ingest"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/metrics"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/r2client"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/scraper"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/scraper/akdeniz"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/sentry"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
)

// Ingestion bundles the crawl pipeline with its optional archive and the
// replica coordination that goes with it.
type Ingestion struct {
	Pipeline *ingest.Pipeline

	// Archive, Lock and State are nil unless R2 is configured.
	Archive *archive.Archive
	Lock    *r2client.DistributedLock
	State   *archive.StateStore
}

// NewIngestion wires crawlers, summarizer and archive for store. gen may be
// nil; summaries are then skipped.
func NewIngestion(ctx context.Context, cfg *config.Config, store storage.Store, gen genai.Generator, m *metrics.Metrics, log *logger.Logger) (*Ingestion, error) {
	client := scraper.NewClient(scraper.Options{
		Timeout:    cfg.ScraperTimeout,
		MaxRetries: cfg.ScraperMaxRetries,
		Recorder:   m,
	})
	source := akdeniz.NewScraper(client, cfg.CSEAnnouncementsURL, cfg.DiningMenuURL)

	ing := &Ingestion{}
	opts := ingest.Options{
		Source:      source,
		Store:       store,
		Recorder:    m,
		Logger:      log,
		Location:    cfg.Location(),
		ReportError: sentry.CaptureError,
	}
	if cfg.SummarizeAnnouncements && gen != nil {
		opts.Summarizer = genai.NewSummarizer(gen)
	}

	if cfg.HasArchive() {
		objects, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, fmt.Errorf("r2: %w", err)
		}
		if ing.Archive, err = archive.New(objects, store, archive.Config{
			Key:      cfg.R2ArchiveKey,
			Location: cfg.Location(),
		}, log); err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		if ing.State, err = archive.NewStateStore(objects, cfg.R2StateKey, config.ArchiveTimeout); err != nil {
			return nil, fmt.Errorf("sync state: %w", err)
		}
		ing.Lock = r2client.NewDistributedLock(objects, cfg.R2LockKey, config.SyncRunTimeout+config.ArchiveTimeout)
		opts.Archiver = ing.Archive
		log.WithField("bucket", cfg.R2BucketName).Info("R2 archive enabled")
	}

	pipeline, err := ingest.New(opts)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	ing.Pipeline = pipeline
	return ing, nil
}

// Scheduler runs the pipeline every interval, coordinating with other
// replicas through the R2 lock and sync state when they exist.
func (i *Ingestion) Scheduler(cfg *config.Config, log *logger.Logger) *ingest.Scheduler {
	opts := ingest.SchedulerOptions{
		Interval: cfg.SyncInterval,
		Logger:   log,
	}
	if i.Lock != nil {
		opts.Lock = i.Lock
	}
	if i.State != nil {
		opts.State = i.State
	}
	return ingest.NewScheduler(i.Pipeline, opts)
}

// RestoreIfEmpty seeds an empty store from the latest archive. It is a no-op
// without an archive.
func (i *Ingestion) RestoreIfEmpty(ctx context.Context, store storage.Store) (bool, error) {
	if i.Archive == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, config.ArchiveTimeout)
	defer cancel()
	return i.Archive.RestoreIfEmpty(ctx, store)
}
