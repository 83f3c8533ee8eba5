package badges

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketpulse/listing-insights/internal/models"
)

// PostgresAttributeSource reads subject attributes from the user_stats
// table. A missing row is not an error: every attribute reads as zero.
type PostgresAttributeSource struct {
	pool *pgxpool.Pool
}

func NewPostgresAttributeSource(pool *pgxpool.Pool) *PostgresAttributeSource {
	return &PostgresAttributeSource{pool: pool}
}

var countColumns = map[models.CriteriaField]string{
	models.FieldItemsSold:    "items_sold",
	models.FieldItemsBought:  "items_bought",
	models.FieldReviewsGiven: "reviews_given",
	models.FieldItemsPosted:  "items_posted",
}

func (s *PostgresAttributeSource) Count(ctx context.Context, userID string, field models.CriteriaField) (int64, error) {
	col, ok := countColumns[field]
	if !ok {
		return 0, fmt.Errorf("unknown count attribute: %s", field)
	}

	var n int64
	query := fmt.Sprintf("SELECT %s FROM user_stats WHERE user_id = $1", col)
	err := s.pool.QueryRow(ctx, query, userID).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s: %w", col, err)
	}
	return n, nil
}

func (s *PostgresAttributeSource) Flag(ctx context.Context, userID string, field models.CriteriaField) (bool, error) {
	if field != models.FieldVerified {
		return false, fmt.Errorf("unknown flag attribute: %s", field)
	}

	var v bool
	err := s.pool.QueryRow(ctx,
		"SELECT verified FROM user_stats WHERE user_id = $1", userID).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read verified: %w", err)
	}
	return v, nil
}

func (s *PostgresAttributeSource) Rating(ctx context.Context, userID string) (float64, error) {
	var r float64
	err := s.pool.QueryRow(ctx,
		"SELECT avg_rating FROM user_stats WHERE user_id = $1", userID).Scan(&r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read avg_rating: %w", err)
	}
	return r, nil
}

func (s *PostgresAttributeSource) NumericID(ctx context.Context, userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user id is not numeric: %q", userID)
	}
	return id, nil
}

// MemoryAttributeSource is a fixed attribute table for tests and
// degraded boots without Postgres.
type MemoryAttributeSource struct {
	mu      sync.Mutex
	counts  map[string]map[models.CriteriaField]int64
	flags   map[string]map[models.CriteriaField]bool
	ratings map[string]float64
}

func NewMemoryAttributeSource() *MemoryAttributeSource {
	return &MemoryAttributeSource{
		counts:  make(map[string]map[models.CriteriaField]int64),
		flags:   make(map[string]map[models.CriteriaField]bool),
		ratings: make(map[string]float64),
	}
}

func (s *MemoryAttributeSource) SetCount(userID string, field models.CriteriaField, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[userID] == nil {
		s.counts[userID] = make(map[models.CriteriaField]int64)
	}
	s.counts[userID][field] = n
}

func (s *MemoryAttributeSource) SetFlag(userID string, field models.CriteriaField, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[userID] == nil {
		s.flags[userID] = make(map[models.CriteriaField]bool)
	}
	s.flags[userID][field] = v
}

func (s *MemoryAttributeSource) SetRating(userID string, r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[userID] = r
}

func (s *MemoryAttributeSource) Count(_ context.Context, userID string, field models.CriteriaField) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID][field], nil
}

func (s *MemoryAttributeSource) Flag(_ context.Context, userID string, field models.CriteriaField) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[userID][field], nil
}

func (s *MemoryAttributeSource) Rating(_ context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings[userID], nil
}

func (s *MemoryAttributeSource) NumericID(_ context.Context, userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user id is not numeric: %q", userID)
	}
	return id, nil
}
