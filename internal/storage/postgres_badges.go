package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketpulse/listing-insights/internal/models"
)

// PostgresBadgeRepo implements BadgeRepo. The user_badges table carries a
// unique (user_id, badge_id) constraint; award creation leans on it for
// the at-most-one-award invariant.
type PostgresBadgeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresBadgeRepo(pool *pgxpool.Pool) *PostgresBadgeRepo {
	return &PostgresBadgeRepo{pool: pool}
}

func (r *PostgresBadgeRepo) ListActive(ctx context.Context) ([]*models.Badge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slug, name, criteria, points, is_active, created_at
		FROM badges WHERE is_active ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var badges []*models.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (r *PostgresBadgeRepo) GetBySlug(ctx context.Context, slug string) (*models.Badge, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, slug, name, criteria, points, is_active, created_at
		FROM badges WHERE slug = $1
	`, slug)

	b, err := scanBadge(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	return b, nil
}

func (r *PostgresBadgeRepo) HasAward(ctx context.Context, userID, badgeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)
	`, userID, badgeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check award: %w", err)
	}
	return exists, nil
}

func (r *PostgresBadgeRepo) CreateAward(ctx context.Context, award *models.UserBadge) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_badges (id, user_id, badge_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`, award.ID, award.UserID, award.BadgeID, award.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create award: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanBadge(row rowScanner) (*models.Badge, error) {
	var b models.Badge
	var criteriaJSON []byte

	if err := row.Scan(&b.ID, &b.Slug, &b.Name, &criteriaJSON, &b.Points, &b.IsActive, &b.CreatedAt); err != nil {
		return nil, err
	}
	if len(criteriaJSON) > 0 {
		if err := json.Unmarshal(criteriaJSON, &b.Criteria); err != nil {
			return nil, fmt.Errorf("failed to parse badge criteria: %w", err)
		}
	}
	return &b, nil
}
