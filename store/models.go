package store

import "time"

// Observer is a person or team that collects recordings
type Observer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

// Collection is one field trip's worth of recordings, kept in one folder
type Collection struct {
	ID          int64     `json:"id"`
	ObserverID  int64     `json:"observer_id"`
	Folder      string    `json:"folder"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Description string    `json:"description"`
	Notes       string    `json:"notes"`
	Processed   bool      `json:"processed"`
}

// Observation is a recording site within a collection
type Observation struct {
	ID            int64   `json:"id"`
	CollectionID  int64   `json:"collection_id"`
	Description   string  `json:"description"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Datum         string  `json:"datum"`
	CountEstimate int     `json:"count_estimate"`
	Notes         string  `json:"notes"`
}

// Recording is a single audio file made at an observation site
type Recording struct {
	ID            int64     `json:"id"`
	ObservationID int64     `json:"observation_id"`
	Filename      string    `json:"filename"`
	StartTime     time.Time `json:"start_time"`
	Duration      float64   `json:"duration"` // seconds
	Bitrate       int       `json:"bitrate"`
	Device        string    `json:"device"`
	Notes         string    `json:"notes"`
	Processed     bool      `json:"processed"`
}

// Call is a detected candidate. Verified is nil until someone has reviewed
// it.
type Call struct {
	ID          int64   `json:"id"`
	RecordingID int64   `json:"recording_id"`
	Verified    *bool   `json:"verified"`
	Offset      float64 `json:"offset"`   // seconds into the recording
	Duration    float64 `json:"duration"` // seconds
	Filename    string  `json:"filename"` // clip written for review
}
