package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketpulse/listing-insights/internal/models"
)

// PostgresProgressRepo implements ProgressRepo. Update locks the snapshot
// row with FOR UPDATE so concurrent grants serialize; the snapshot write
// and history append commit together or not at all.
type PostgresProgressRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProgressRepo(pool *pgxpool.Pool) *PostgresProgressRepo {
	return &PostgresProgressRepo{pool: pool}
}

func (r *PostgresProgressRepo) Get(ctx context.Context, userID string) (*models.UserProgress, error) {
	var p models.UserProgress
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, total_points, level, level_name, current_level_points, points_to_next_level, updated_at
		FROM user_progress WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.TotalPoints, &p.Level, &p.LevelName, &p.CurrentLevelPoints, &p.PointsToNextLevel, &p.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &p, nil
}

func (r *PostgresProgressRepo) Update(ctx context.Context, userID string, fn func(p *models.UserProgress) (*models.PointsHistoryEntry, error)) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin progress transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Insert-then-lock guarantees a row to lock even on first use.
	_, err = tx.Exec(ctx, `
		INSERT INTO user_progress (user_id, total_points, level, level_name, current_level_points, points_to_next_level, updated_at)
		VALUES ($1, 0, 1, '', 0, 0, now())
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure progress row: %w", err)
	}

	var p models.UserProgress
	err = tx.QueryRow(ctx, `
		SELECT user_id, total_points, level, level_name, current_level_points, points_to_next_level, updated_at
		FROM user_progress WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&p.UserID, &p.TotalPoints, &p.Level, &p.LevelName, &p.CurrentLevelPoints, &p.PointsToNextLevel, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to lock progress row: %w", err)
	}

	entry, err := fn(&p)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_progress SET
			total_points = $1,
			level = $2,
			level_name = $3,
			current_level_points = $4,
			points_to_next_level = $5,
			updated_at = now()
		WHERE user_id = $6
	`, p.TotalPoints, p.Level, p.LevelName, p.CurrentLevelPoints, p.PointsToNextLevel, userID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	if entry != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO points_history (id, user_id, points, action, description, ref_type, ref_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, entry.ID, entry.UserID, entry.Points, entry.Action, entry.Description,
			nullString(entry.RefType), nullString(entry.RefID), entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to append points history: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresProgressRepo) History(ctx context.Context, userID string, limit int) ([]*models.PointsHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, points, action, description, ref_type, ref_id, created_at
		FROM points_history WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query points history: %w", err)
	}
	defer rows.Close()

	var entries []*models.PointsHistoryEntry
	for rows.Next() {
		var e models.PointsHistoryEntry
		var refType, refID *string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &e.Action, &e.Description, &refType, &refID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if refType != nil {
			e.RefType = *refType
		}
		if refID != nil {
			e.RefID = *refID
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *PostgresProgressRepo) Leaderboard(ctx context.Context, limit int) ([]*models.UserProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, total_points, level, level_name, current_level_points, points_to_next_level, updated_at
		FROM user_progress ORDER BY total_points DESC, user_id LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var result []*models.UserProgress
	for rows.Next() {
		var p models.UserProgress
		if err := rows.Scan(&p.UserID, &p.TotalPoints, &p.Level, &p.LevelName, &p.CurrentLevelPoints, &p.PointsToNextLevel, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
