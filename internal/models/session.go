package models

import (
	"time"
)

// Novelty classifies a visitor relative to a listing for the current day.
type Novelty string

const (
	// NoveltyUnique means no session exists for this visitor+listing today.
	NoveltyUnique Novelty = "unique"
	// NoveltyReturning means a session exists on an earlier day but none today.
	NoveltyReturning Novelty = "returning"
	// NoveltyRepeat means a session already exists today. Repeats count
	// toward views but never toward unique or returning.
	NoveltyRepeat Novelty = "repeat"
)

// SessionAction is one entry in a session's ordered action log.
type SessionAction struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// VisitorSession is one activity window of a visitor against one listing,
// bounded by the tracker's recency gap. Owned by the session tracker; callers
// never mutate it directly.
type VisitorSession struct {
	ID              string          `json:"id"`
	ListingID       string          `json:"listing_id"`
	VisitorID       string          `json:"visitor_id"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Source          TrafficSource   `json:"source"`
	Device          DeviceClass     `json:"device"`
	Actions         []SessionAction `json:"actions,omitempty"`
}
