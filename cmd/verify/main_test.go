package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

func TestVerifyCourses(t *testing.T) {
	t.Parallel()

	courses := config.NewCourseMap(map[string]config.CourseChannel{
		"Algoritma":        {TeamID: "t1", ChannelID: "c1"},
		"Kimya":            {TeamID: "t2", ChannelID: "c2"},
		"Game Programming": {TeamID: "t3", ChannelID: "c3"},
	})
	c := intent.NewRegexClassifier(timeutil.SystemClock(), time.UTC)

	got := map[string]bool{}
	for _, r := range verifyCourses(c, courses) {
		got[r.name] = r.passed
	}

	assert.Equal(t, map[string]bool{
		"Algoritma":        true,
		"Game Programming": true,
		"Kimya":            false,
	}, got)
}
