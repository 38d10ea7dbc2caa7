// Package main checks the course map file and reports which of its courses
// the regex classifier can pick out of a message.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

var pathFlag = flag.String("courses", defaultPath(), "Path to the course map JSON file")

type verifyResult struct {
	name    string
	passed  bool
	message string
}

func defaultPath() string {
	if p := os.Getenv(config.EnvCourseMapPath); p != "" {
		return p
	}
	return filepath.Join("config", "courses.json")
}

func main() {
	flag.Parse()

	fmt.Println("🔍 Akdeniz Chatbot - Course Map Verification")
	fmt.Println("============================================")

	courses, err := config.LoadCourseMap(*pathFlag)
	if err != nil {
		fmt.Printf("❌ %s: %v\n", *pathFlag, err)
		os.Exit(1)
	}
	if courses.Len() == 0 {
		fmt.Printf("⚠️  %s is missing or empty; Teams lookups will always ask for a course\n", *pathFlag)
		return
	}

	classifier := intent.NewRegexClassifier(timeutil.SystemClock(), time.UTC)
	results := verifyCourses(classifier, courses)

	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	extracted := 0
	for _, r := range results {
		status := "⚠️ "
		if r.passed {
			status = "✅"
			extracted++
		}
		fmt.Printf("%s %s: %s\n", status, r.name, r.message)
	}

	fmt.Printf("\n📈 Summary: %d of %d courses reachable from free text\n", extracted, len(results))
}

// verifyCourses asks the classifier about each configured course and checks
// that the extracted mention resolves back to the same key. Unreachable
// courses are reported, not failed: they stay usable through the fuzzy
// policy and exact-key lookups.
func verifyCourses(c *intent.RegexClassifier, courses *config.CourseMap) []verifyResult {
	results := make([]verifyResult, 0, courses.Len())
	for _, key := range courses.Courses() {
		in := c.Classify(fmt.Sprintf("%s dersi var mı", key))
		r := verifyResult{name: key}
		switch {
		case in.Name != intent.TeamsAnnouncement:
			r.message = fmt.Sprintf("classified as %s", in.Name)
		case in.Course == "":
			r.message = "no course extracted"
		default:
			resolved, ok := courses.ResolveKey(in.Course)
			if ok && resolved == key {
				r.passed = true
				r.message = fmt.Sprintf("extracted %q", in.Course)
			} else {
				r.message = fmt.Sprintf("extracted %q but it resolves to %q", in.Course, resolved)
			}
		}
		results = append(results, r)
	}
	return results
}
