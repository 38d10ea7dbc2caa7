package intent

// DefaultThreshold is the score a category must exceed to qualify.
const DefaultThreshold = 80

// DefaultDiningKeywords are the phrases scored for the dining category.
var DefaultDiningKeywords = []string{
	"yemek",
	"menü",
	"çorba",
	"karnım aç",
	"bugün ne var",
	"yemekhane",
	"aciktim",
}

// DefaultAnnouncementKeywords are the phrases scored for the announcement category.
var DefaultAnnouncementKeywords = []string{
	"staj",
	"duyuru",
	"sınav",
	"büt",
	"ders",
	"hoca",
	"iptal",
	"program",
}

// Scorer rates the similarity of two preprocessed strings on a 0 to 100 scale.
type Scorer func(query, choice string) int

// FuzzyClassifier scores a message against two keyword lists and picks the
// qualifying category with the higher best score. Dining wins ties. Messages
// where neither category qualifies are General.
type FuzzyClassifier struct {
	Dining       []string
	Announcement []string
	Threshold    int
	Scorer       Scorer
}

// NewFuzzyClassifier returns a classifier with the default keyword lists,
// threshold and WRatio scoring.
func NewFuzzyClassifier() *FuzzyClassifier {
	return &FuzzyClassifier{
		Dining:       DefaultDiningKeywords,
		Announcement: DefaultAnnouncementKeywords,
		Threshold:    DefaultThreshold,
		Scorer:       WRatio,
	}
}

// Policy implements Classifier.
func (c *FuzzyClassifier) Policy() string { return PolicyFuzzy }

// Classify implements Classifier.
func (c *FuzzyClassifier) Classify(text string) Intent {
	query := Preprocess(text)
	if query == "" {
		return Intent{Name: General}
	}

	dining := c.bestScore(query, c.Dining)
	announcement := c.bestScore(query, c.Announcement)
	return Intent{Name: decide(dining, announcement, c.Threshold), DateRel: Today}.normalize()
}

// Scores exposes the per-category best scores for diagnostics.
func (c *FuzzyClassifier) Scores(text string) (dining, announcement int) {
	query := Preprocess(text)
	if query == "" {
		return 0, 0
	}
	return c.bestScore(query, c.Dining), c.bestScore(query, c.Announcement)
}

func (c *FuzzyClassifier) bestScore(query string, keywords []string) int {
	scorer := c.Scorer
	if scorer == nil {
		scorer = WRatio
	}
	best := 0
	for _, kw := range keywords {
		if s := scorer(query, Preprocess(kw)); s > best {
			best = s
		}
	}
	return best
}

func decide(dining, announcement, threshold int) Name {
	if dining > threshold && dining >= announcement {
		return Dining
	}
	if announcement > threshold && announcement > dining {
		return Announcement
	}
	return General
}

// normalize clears slots that do not belong to the intent.
func (i Intent) normalize() Intent {
	if i.Name != Dining {
		i.DateRel = ""
	}
	return i
}
