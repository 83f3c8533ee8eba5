package models

import (
	"time"
)

// CriteriaField names a subject attribute a badge predicate reads.
type CriteriaField string

const (
	FieldItemsSold    CriteriaField = "items_sold"
	FieldItemsBought  CriteriaField = "items_bought"
	FieldReviewsGiven CriteriaField = "reviews_given"
	FieldVerified     CriteriaField = "verified"
	FieldUserID       CriteriaField = "user_id"
	FieldItemsPosted  CriteriaField = "items_posted"
	FieldAvgRating    CriteriaField = "avg_rating"
)

// Criteria is the declarative predicate set defining badge eligibility.
// All predicates are ANDed; an empty document never matches.
type Criteria struct {
	MinCounts map[CriteriaField]int64 `json:"min_counts,omitempty"` // attribute >= n
	Flags     map[CriteriaField]bool  `json:"flags,omitempty"`      // attribute == flag
	MinRating float64                 `json:"min_rating,omitempty"` // avg_rating >= x
	// UserIDRule is "<op><space*><integer>" with op in < > <= >= ==.
	// Malformed rules apply no constraint.
	UserIDRule string `json:"user_id_rule,omitempty"`
}

// Empty reports whether no predicate is present.
func (c Criteria) Empty() bool {
	return len(c.MinCounts) == 0 && len(c.Flags) == 0 && c.MinRating == 0 && c.UserIDRule == ""
}

// Badge is a reward definition. Criteria edits only affect future
// evaluations; existing awards are never revisited.
type Badge struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Criteria  Criteria  `json:"criteria"`
	Points    int64     `json:"points"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserBadge records a single award. Unique per (user_id, badge_id).
type UserBadge struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}
