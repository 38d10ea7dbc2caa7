package storage

import "time"

// Announcement sources.
const (
	SourceWebsite = "website"
	SourceTeams   = "teams"
)

// DiningRecord is the menu of one calendar day. Date is the unique key.
type DiningRecord struct {
	Date      string    `json:"date" bson:"date"` // YYYY-MM-DD
	Items     []string  `json:"items" bson:"items"`
	Location  string    `json:"location" bson:"location"`
	Source    string    `json:"source" bson:"source"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// AnnouncementRecord is one crawled announcement. URL is the unique key.
type AnnouncementRecord struct {
	URL       string    `json:"url" bson:"url"`
	Title     string    `json:"title" bson:"title"`
	Content   string    `json:"content" bson:"content"`
	Summary   string    `json:"summary,omitempty" bson:"summary,omitempty"`
	Source    string    `json:"source" bson:"source"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
