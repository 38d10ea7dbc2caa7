// Package ingest crawls the department announcement list and the weekly
// dining menu and stores the results for the chat pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/scraper/akdeniz"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// Ingestion sources, used as metric labels.
const (
	SourceDining        = "dining"
	SourceAnnouncements = "announcements"
)

// contentWorkers bounds concurrent announcement detail fetches.
const contentWorkers = 4

// Source is the crawling surface of the university sites.
type Source interface {
	FetchWeek(ctx context.Context, from time.Time, days int) []akdeniz.Menu
	FetchAnnouncements(ctx context.Context) ([]akdeniz.Announcement, error)
	FetchAnnouncementContent(ctx context.Context, pageURL string) (string, error)
}

// Store is where crawled records land.
type Store interface {
	storage.DiningRepository
	storage.AnnouncementRepository
}

// Summarizer produces a one-sentence summary; it never fails.
type Summarizer interface {
	Summarize(ctx context.Context, content string) string
}

// Recorder receives ingestion metrics.
type Recorder interface {
	RecordIngest(source, status string, records int)
	RecordIngestDuration(duration float64)
}

// Archiver exports the stored records after a pass.
type Archiver interface {
	Export(ctx context.Context) error
}

// Options configures a Pipeline. Source and Store are required.
type Options struct {
	Source     Source
	Store      Store
	Summarizer Summarizer // nil disables summaries
	Archiver   Archiver   // nil disables the post-pass export
	Recorder   Recorder
	Logger     *logger.Logger
	Clock      timeutil.Clock
	Location   *time.Location
	// ReportError forwards source failures to error tracking.
	ReportError func(ctx context.Context, err error)
}

// Stats summarizes one pass. Fields are safe to read after Run returns.
type Stats struct {
	Menus            int
	FallbackMenus    int
	NewAnnouncements int
	Skipped          int
	Duration         time.Duration
}

// Pipeline runs ingestion passes.
type Pipeline struct {
	source     Source
	store      Store
	summarizer Summarizer
	archiver   Archiver
	recorder   Recorder
	log        *logger.Logger
	clock      timeutil.Clock
	loc        *time.Location
	report     func(ctx context.Context, err error)
}

// New validates opts and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("ingest: source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("ingest: store is required")
	}
	p := &Pipeline{
		source:     opts.Source,
		store:      opts.Store,
		summarizer: opts.Summarizer,
		archiver:   opts.Archiver,
		recorder:   opts.Recorder,
		log:        opts.Logger,
		clock:      opts.Clock,
		loc:        opts.Location,
		report:     opts.ReportError,
	}
	if p.log == nil {
		p.log = logger.NewWithWriter("error", io.Discard)
	}
	p.log = p.log.WithModule("ingest")
	if p.clock == nil {
		p.clock = timeutil.SystemClock()
	}
	if p.loc == nil {
		p.loc = config.FixedLocation(3)
	}
	return p, nil
}

// Run performs one pass: the dining week and the announcement list are
// crawled concurrently, then the archive is exported. A failing source does
// not stop the other; both errors are joined into the result.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	p.log.InfoContext(ctx, "Starting ingestion pass")

	var diningErr, announcementsErr error
	var g errgroup.Group
	g.Go(func() error {
		diningErr = p.syncDining(ctx, stats)
		p.finishSource(ctx, SourceDining, stats.Menus, diningErr)
		return nil
	})
	g.Go(func() error {
		announcementsErr = p.syncAnnouncements(ctx, stats)
		p.finishSource(ctx, SourceAnnouncements, stats.NewAnnouncements, announcementsErr)
		return nil
	})
	_ = g.Wait()

	if p.archiver != nil && ctx.Err() == nil {
		archiveCtx, cancel := context.WithTimeout(ctx, config.ArchiveTimeout)
		if err := p.archiver.Export(archiveCtx); err != nil {
			p.log.WithError(err).WarnContext(ctx, "Archive export failed")
			p.reportError(ctx, apperrors.NewCollaboratorError("archive", "export", err))
		}
		cancel()
	}

	stats.Duration = time.Since(start)
	if p.recorder != nil {
		p.recorder.RecordIngestDuration(stats.Duration.Seconds())
	}
	p.log.WithFields(map[string]any{
		"menus":             stats.Menus,
		"fallback_menus":    stats.FallbackMenus,
		"new_announcements": stats.NewAnnouncements,
		"skipped":           stats.Skipped,
		"duration_ms":       stats.Duration.Milliseconds(),
	}).InfoContext(ctx, "Ingestion pass complete")

	return stats, errors.Join(diningErr, announcementsErr)
}

func (p *Pipeline) finishSource(ctx context.Context, source string, records int, err error) {
	status := "success"
	if err != nil {
		status = "error"
		p.log.WithError(err).WithField("source", source).ErrorContext(ctx, "Ingestion source failed")
		p.reportError(ctx, apperrors.NewCollaboratorError(source, "ingest", err))
	}
	if p.recorder != nil {
		p.recorder.RecordIngest(source, status, records)
	}
}

// syncDining stores the menus of the current Monday-to-Sunday week.
func (p *Pipeline) syncDining(ctx context.Context, stats *Stats) error {
	monday := weekStart(timeutil.Today(p.clock, p.loc))
	menus := p.source.FetchWeek(ctx, monday, 7)

	for _, m := range menus {
		items := CleanItems(m.Items)
		if err := validateMenu(m.Date, items); err != nil {
			p.log.WithError(err).WarnContext(ctx, "Skipping invalid menu")
			continue
		}
		rec := &storage.DiningRecord{
			Date:     m.Date,
			Items:    items,
			Location: m.Location,
			Source:   m.Source,
		}
		if err := p.store.UpsertDining(ctx, rec); err != nil {
			return fmt.Errorf("upsert menu %s: %w", m.Date, err)
		}
		stats.Menus++
		if m.Source == akdeniz.MenuSourceFallback {
			stats.FallbackMenus++
		}
	}
	return nil
}

// syncAnnouncements stores announcements whose URL is not stored yet.
// Detail pages are fetched best-effort; a failed fetch stores an empty body.
func (p *Pipeline) syncAnnouncements(ctx context.Context, stats *Stats) error {
	items, err := p.source.FetchAnnouncements(ctx)
	if err != nil {
		return err
	}
	p.log.WithField("count", len(items)).DebugContext(ctx, "Fetched announcement list")

	var added, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(contentWorkers)
	for _, item := range items {
		title := CleanText(item.Title)
		if err := validateAnnouncement(title, item.URL); err != nil {
			skipped.Add(1)
			continue
		}
		existing, err := p.store.FindAnnouncementByURL(ctx, item.URL)
		if err != nil {
			return fmt.Errorf("lookup announcement %s: %w", item.URL, err)
		}
		if existing != nil {
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			rec := p.buildAnnouncement(gctx, title, item.URL)
			if err := p.store.UpsertAnnouncement(gctx, rec); err != nil {
				return fmt.Errorf("upsert announcement %s: %w", item.URL, err)
			}
			added.Add(1)
			p.log.WithField("title", title).InfoContext(gctx, "New announcement")
			return nil
		})
	}
	err = g.Wait()

	stats.NewAnnouncements = int(added.Load())
	stats.Skipped = int(skipped.Load())
	return err
}

func (p *Pipeline) buildAnnouncement(ctx context.Context, title, url string) *storage.AnnouncementRecord {
	rec := &storage.AnnouncementRecord{
		URL:    url,
		Title:  title,
		Source: storage.SourceWebsite,
	}

	content, err := p.source.FetchAnnouncementContent(ctx, url)
	if err != nil {
		p.log.WithError(err).WithField("url", url).WarnContext(ctx, "Announcement detail unavailable")
		return rec
	}
	rec.Content = CleanText(content)

	if p.summarizer != nil && rec.Content != "" {
		rec.Summary = p.summarizer.Summarize(ctx, rec.Content)
	}
	return rec
}

func (p *Pipeline) reportError(ctx context.Context, err error) {
	if p.report != nil {
		p.report(ctx, err)
	}
}

// weekStart returns the Monday of day's week.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
