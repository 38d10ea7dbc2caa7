package intent

import (
	"sync"
	"testing"
)

var concurrentMessages = []string{
	"Bugünkü yemekhane menüsü nedir?",
	"yarın yemek ne var",
	"Algoritma dersi var mı yarın?",
	"SINAV DUYURUSU VAR MI",
	"son duyurular neler",
	"merhaba",
	"",
}

// classifyConcurrently runs every message through c from many goroutines and
// checks each result against a sequential baseline.
func classifyConcurrently(t *testing.T, c Classifier) {
	t.Helper()

	want := make([]Intent, len(concurrentMessages))
	for i, msg := range concurrentMessages {
		want[i] = c.Classify(msg)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan string, workers*len(concurrentMessages))
	for w := range workers {
		wg.Go(func() {
			for i := range concurrentMessages {
				// Stagger the starting message so workers overlap on different inputs.
				idx := (i + w) % len(concurrentMessages)
				if got := c.Classify(concurrentMessages[idx]); got != want[idx] {
					errs <- concurrentMessages[idx] + ": got " + got.String() + ", want " + want[idx].String()
				}
			}
		})
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}

func TestRegexClassifier_ConcurrentClassify(t *testing.T) {
	t.Parallel()
	classifyConcurrently(t, newTestRegex())
}

func TestFuzzyClassifier_ConcurrentClassify(t *testing.T) {
	t.Parallel()
	classifyConcurrently(t, NewFuzzyClassifier())
}

func TestPreprocess_Concurrent(t *testing.T) {
	t.Parallel()

	const input = "SINAV İPTAL, Yarın QUIZ!"
	want := Preprocess(input)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var mismatches int
	for range 32 {
		wg.Go(func() {
			if Preprocess(input) != want {
				mu.Lock()
				mismatches++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if mismatches != 0 {
		t.Errorf("Preprocess returned %d results different from %q", mismatches, want)
	}
}
