// Package intent classifies free-text chat messages into a closed set of
// intents with optional slots. Two interchangeable policies are provided:
// ordered regular-expression matching and fuzzy keyword scoring.
package intent

import (
	"fmt"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// Name is the closed set of intents.
type Name string

const (
	Dining            Name = "dining"
	Announcement      Name = "announcement"
	TeamsAnnouncement Name = "teams_announcement"
	Fallback          Name = "fallback"
	General           Name = "general"
)

// Names lists every intent in a stable order.
var Names = []Name{Dining, Announcement, TeamsAnnouncement, Fallback, General}

func (n Name) String() string { return string(n) }

// Valid reports whether n is one of the declared intents.
func (n Name) Valid() bool {
	switch n {
	case Dining, Announcement, TeamsAnnouncement, Fallback, General:
		return true
	}
	return false
}

// IsCatchAll reports whether n carries no retrieval need.
func (n Name) IsCatchAll() bool {
	return n == Fallback || n == General
}

// DateRel is the relative day a dining question refers to.
type DateRel string

const (
	Today    DateRel = "today"
	Tomorrow DateRel = "tomorrow"
)

// Intent is the classification of one message. Slots that do not apply to
// Name are left at their zero value.
type Intent struct {
	Name Name

	// DateRel is set for Dining.
	DateRel DateRel
	// Course is the raw course mention for TeamsAnnouncement; empty when absent.
	Course string
	// Date is the target day for TeamsAnnouncement; zero when the message had
	// no relative-date token.
	Date time.Time
}

// HasDate reports whether the date slot is filled.
func (i Intent) HasDate() bool { return !i.Date.IsZero() }

// Slots returns the filled slots keyed by name, for logs and API responses.
func (i Intent) Slots() map[string]any {
	slots := map[string]any{}
	switch i.Name {
	case Dining:
		slots["date_rel"] = string(i.DateRel)
	case TeamsAnnouncement:
		if i.Course != "" {
			slots["course"] = i.Course
		} else {
			slots["course"] = nil
		}
		if i.HasDate() {
			slots["date"] = timeutil.DateKey(i.Date)
		} else {
			slots["date"] = nil
		}
	}
	return slots
}

func (i Intent) String() string {
	return fmt.Sprintf("%s%v", i.Name, i.Slots())
}

// Classifier maps message text to an Intent. Implementations are pure over
// immutable tables and safe for concurrent use. They never fail: unmatched
// input resolves to the policy's catch-all intent.
type Classifier interface {
	Classify(text string) Intent
	// Policy names the classification policy, for metrics and logs.
	Policy() string
}
