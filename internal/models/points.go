package models

import (
	"errors"
	"time"
)

// Level is one entry of the progression economy: the cumulative points
// required to reach it and its display name.
type Level struct {
	Level     int    `json:"level"`
	Threshold int64  `json:"threshold"`
	Name      string `json:"name"`
}

// LevelTable is the injected, ordered level economy. Thresholds must be
// strictly increasing and the first level starts at zero.
type LevelTable []Level

// Validate checks the table is usable as a progression economy.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return errors.New("level table is empty")
	}
	if t[0].Threshold != 0 {
		return errors.New("first level threshold must be zero")
	}
	for i := 1; i < len(t); i++ {
		if t[i].Threshold <= t[i-1].Threshold {
			return errors.New("level thresholds must be strictly increasing")
		}
	}
	return nil
}

// DefaultLevelTable is the ten-level production economy.
func DefaultLevelTable() LevelTable {
	return LevelTable{
		{Level: 1, Threshold: 0, Name: "Newcomer"},
		{Level: 2, Threshold: 100, Name: "Beginner"},
		{Level: 3, Threshold: 250, Name: "Contributor"},
		{Level: 4, Threshold: 500, Name: "Regular"},
		{Level: 5, Threshold: 1000, Name: "Established"},
		{Level: 6, Threshold: 2000, Name: "Trusted"},
		{Level: 7, Threshold: 4000, Name: "Expert"},
		{Level: 8, Threshold: 8000, Name: "Veteran"},
		{Level: 9, Threshold: 15000, Name: "Elite"},
		{Level: 10, Threshold: 25000, Name: "Legend"},
	}
}

// UserProgress is the mutable progression snapshot. One row per user,
// created on the first point event.
type UserProgress struct {
	UserID             string    `json:"user_id"`
	TotalPoints        int64     `json:"total_points"`
	Level              int       `json:"level"`
	LevelName          string    `json:"level_name"`
	CurrentLevelPoints int64     `json:"current_level_points"`
	PointsToNextLevel  int64     `json:"points_to_next_level"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PointsHistoryEntry is the append-only audit record behind the snapshot.
type PointsHistoryEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Points      int64     `json:"points"` // signed
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	RefType     string    `json:"ref_type,omitempty"`
	RefID       string    `json:"ref_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
