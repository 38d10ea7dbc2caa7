package intent

import (
	"fmt"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// Policy names accepted by New.
const (
	PolicyRegex = "regex"
	PolicyFuzzy = "fuzzy"
)

// New builds the classifier for policy. clock and loc drive the date slot of
// the regex policy and are ignored by the fuzzy policy.
func New(policy string, clock timeutil.Clock, loc *time.Location) (Classifier, error) {
	switch policy {
	case PolicyRegex:
		return NewRegexClassifier(clock, loc), nil
	case PolicyFuzzy:
		return NewFuzzyClassifier(), nil
	default:
		return nil, fmt.Errorf("intent: unknown classifier policy %q", policy)
	}
}
