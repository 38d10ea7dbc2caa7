// Package resolver turns a classified intent into a bounded context payload
// by reading the dining store, the announcement store or a course's Teams
// channel. Failures never escape: they are rendered into the payload text.
package resolver

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/teams"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

const (
	// MaxContextRunes bounds Payload.Text.
	MaxContextRunes = 500
	// TeamsScanWindow is how many recent channel messages are scanned.
	TeamsScanWindow = 40
	// RecentAnnouncementLimit is how many stored announcements are listed.
	RecentAnnouncementLimit = 3
	// ExcerptRunes bounds each announcement excerpt.
	ExcerptRunes = 100
)

// Collaborator labels for metrics and error wrapping.
const (
	collabDining        = "dining_store"
	collabAnnouncements = "announcement_store"
	collabTeams         = "teams"
)

// Payload is the resolved context for one intent.
type Payload struct {
	// Text is plain text bounded to MaxContextRunes. Empty only for the
	// catch-all intents.
	Text string
	// Found is true when a matching record or message was retrieved.
	Found bool
	// Direct marks text that is already the final reply and must not be
	// rephrased.
	Direct bool
}

// DiningReader looks up a day's menu. A nil record with a nil error means
// nothing is stored for date.
type DiningReader interface {
	FindDiningByDate(ctx context.Context, date string) (*storage.DiningRecord, error)
}

// AnnouncementReader lists stored announcements, newest first.
type AnnouncementReader interface {
	FindRecentAnnouncements(ctx context.Context, limit int) ([]storage.AnnouncementRecord, error)
}

// ChannelSource lists recent channel messages, newest first.
type ChannelSource interface {
	FetchRecentMessages(ctx context.Context, teamID, channelID string, top int) ([]teams.Message, error)
}

// Recorder receives one observation per collaborator call.
type Recorder interface {
	RecordCollaborator(collaborator, status string, duration float64)
}

// Options configures a Resolver. Channels may be nil when Teams is not
// configured.
type Options struct {
	Dining         DiningReader
	Announcements  AnnouncementReader
	Channels       ChannelSource
	Courses        *config.CourseMap
	Clock          timeutil.Clock
	Location       *time.Location
	StorageTimeout time.Duration
	ChannelTimeout time.Duration
	Recorder       Recorder
	Logger         *logger.Logger
}

// Resolver is stateless apart from its immutable collaborators and is safe
// for concurrent use.
type Resolver struct {
	dining         DiningReader
	announcements  AnnouncementReader
	channels       ChannelSource
	courses        *config.CourseMap
	clock          timeutil.Clock
	loc            *time.Location
	storageTimeout time.Duration
	channelTimeout time.Duration
	recorder       Recorder
	log            *logger.Logger
}

// New creates a Resolver, filling unset options with defaults.
func New(opts Options) *Resolver {
	r := &Resolver{
		dining:         opts.Dining,
		announcements:  opts.Announcements,
		channels:       opts.Channels,
		courses:        opts.Courses,
		clock:          opts.Clock,
		loc:            opts.Location,
		storageTimeout: opts.StorageTimeout,
		channelTimeout: opts.ChannelTimeout,
		recorder:       opts.Recorder,
		log:            opts.Logger,
	}
	if r.courses == nil {
		r.courses = config.NewCourseMap(nil)
	}
	if r.clock == nil {
		r.clock = timeutil.SystemClock()
	}
	if r.loc == nil {
		r.loc = config.FixedLocation(3)
	}
	if r.storageTimeout <= 0 {
		r.storageTimeout = config.StorageLookup
	}
	if r.channelTimeout <= 0 {
		r.channelTimeout = config.TeamsFetch
	}
	if r.log == nil {
		r.log = logger.NewWithWriter("error", io.Discard)
	}
	r.log = r.log.WithModule("resolver")
	return r
}

// Resolve returns the context payload for in. It never fails.
func (r *Resolver) Resolve(ctx context.Context, in intent.Intent) Payload {
	var p Payload
	switch in.Name {
	case intent.Dining:
		p = r.resolveDining(ctx, in)
	case intent.TeamsAnnouncement:
		p = r.resolveTeams(ctx, in)
	case intent.Announcement:
		p = r.resolveAnnouncements(ctx)
	case intent.General, intent.Fallback:
		return Payload{}
	default:
		r.log.WarnContext(ctx, "unknown intent", "intent", string(in.Name))
		return Payload{}
	}
	p.Text = truncate(p.Text, MaxContextRunes)
	return p
}

// observe runs call under timeout and records its outcome.
func (r *Resolver) observe(ctx context.Context, collaborator string, timeout time.Duration, call func(context.Context) (found bool, err error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	found, err := call(ctx)

	status := "success"
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	case !found:
		status = "not_found"
	}
	if r.recorder != nil {
		r.recorder.RecordCollaborator(collaborator, status, time.Since(start).Seconds())
	}

	if err != nil {
		r.log.WithError(apperrors.NewCollaboratorError(collaborator, "resolve", err)).
			ErrorContext(ctx, "collaborator call failed", "status", status)
	}
	return err
}
