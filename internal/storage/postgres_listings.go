package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketpulse/listing-insights/internal/models"
)

// PostgresListingRepo implements ListingRepo and CohortRepo against the
// listings table. Rollup fields live on the listing row and are updated
// with native increments; brief divergence from the daily table is
// tolerated.
type PostgresListingRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresListingRepo(pool *pgxpool.Pool) *PostgresListingRepo {
	return &PostgresListingRepo{pool: pool}
}

func (r *PostgresListingRepo) Get(ctx context.Context, id string) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, category_id FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.CategoryID)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &l, nil
}

func (r *PostgresListingRepo) GetRollup(ctx context.Context, id string) (*models.ListingRollup, error) {
	var ru models.ListingRollup
	err := r.pool.QueryRow(ctx, `
		SELECT id, clicks, total_unique_visitors, total_gallery_views, total_video_plays, avg_time_on_page
		FROM listings WHERE id = $1
	`, id).Scan(&ru.ListingID, &ru.Clicks, &ru.TotalUniqueVisitors, &ru.TotalGalleryViews, &ru.TotalVideoPlays, &ru.AvgTimeOnPage)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing rollup: %w", err)
	}
	return &ru, nil
}

func (r *PostgresListingRepo) IncrementRollup(ctx context.Context, id string, clicks, uniqueVisitors, galleryViews, videoPlays int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE listings SET
			clicks = clicks + $1,
			total_unique_visitors = total_unique_visitors + $2,
			total_gallery_views = total_gallery_views + $3,
			total_video_plays = total_video_plays + $4
		WHERE id = $5
	`, clicks, uniqueVisitors, galleryViews, videoPlays, id)
	if err != nil {
		return fmt.Errorf("failed to increment rollup: %w", err)
	}
	return nil
}

func (r *PostgresListingRepo) UpdateAvgTime(ctx context.Context, id string, seconds float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET avg_time_on_page = avg_time_on_page + ($1 - avg_time_on_page) / GREATEST(clicks::float8, 1)
		WHERE id = $2
	`, seconds, id)
	if err != nil {
		return fmt.Errorf("failed to update listing avg time: %w", err)
	}
	return nil
}

func (r *PostgresListingRepo) Peers(ctx context.Context, categoryID, excludeListingID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM listings WHERE category_id = $1 AND id <> $2
	`, categoryID, excludeListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category peers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
