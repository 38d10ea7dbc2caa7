package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// CourseChannel identifies the Teams channel where a course posts announcements.
type CourseChannel struct {
	TeamID    string `json:"team_id"`
	ChannelID string `json:"channel_id"`
}

// courseAliases maps shorthand a student may type to a canonical course key.
var courseAliases = map[string]string{
	"algoritma": "Algoritma",
	"algorithm": "Algorithm",
	"algo":      "Algoritma",
}

// CourseMap is the read-only course to Teams channel mapping. It is built once
// at startup and never mutated, so it is safe for concurrent use.
type CourseMap struct {
	byKey   map[string]CourseChannel
	byLower map[string]string // lowercased key -> key
}

// NewCourseMap copies entries into an immutable CourseMap.
func NewCourseMap(entries map[string]CourseChannel) *CourseMap {
	m := &CourseMap{
		byKey:   make(map[string]CourseChannel, len(entries)),
		byLower: make(map[string]string, len(entries)),
	}
	for k, v := range entries {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		m.byKey[k] = v
		m.byLower[strings.ToLower(k)] = k
	}
	return m
}

// LoadCourseMap reads the JSON mapping at path. A missing file yields an empty
// map and a nil error; malformed JSON or incomplete entries are errors.
func LoadCourseMap(path string) (*CourseMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCourseMap(nil), nil
		}
		return nil, fmt.Errorf("read course map %s: %w", path, err)
	}

	var entries map[string]CourseChannel
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse course map %s: %w", path, err)
	}

	var errs []error
	for name, ch := range entries {
		if ch.TeamID == "" || ch.ChannelID == "" {
			errs = append(errs, fmt.Errorf("course %q: team_id and channel_id are required", name))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return NewCourseMap(entries), nil
}

// ResolveKey maps a raw course mention to a course key. A case-insensitive
// match against configured keys wins; otherwise the fixed aliases apply. The
// returned key may still be absent from the map (alias of an unconfigured
// course); ok is false only when nothing matched at all.
func (m *CourseMap) ResolveKey(raw string) (key string, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	if k, found := m.byLower[raw]; found {
		return k, true
	}
	if alias, found := courseAliases[raw]; found {
		return alias, true
	}
	return "", false
}

// Lookup returns the channel for an exact course key.
func (m *CourseMap) Lookup(key string) (CourseChannel, bool) {
	ch, ok := m.byKey[key]
	return ch, ok
}

// Courses returns the configured course keys in sorted order.
func (m *CourseMap) Courses() []string {
	keys := make([]string, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of configured courses.
func (m *CourseMap) Len() int {
	return len(m.byKey)
}
