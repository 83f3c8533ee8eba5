package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketpulse/listing-insights/internal/models"
)

// PostgresStatRepo implements StatRepo on a listing_daily_stats table keyed
// by (listing_id, stat_date). Creation and mutation happen inside one
// transaction: an idempotent insert guarantees the day row, then a single
// UPDATE applies every increment as a row-scoped read-modify-write.
type PostgresStatRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresStatRepo(pool *pgxpool.Pool) *PostgresStatRepo {
	return &PostgresStatRepo{pool: pool}
}

// counter column per delta field. Unmapped enum values increment nothing.
var deltaColumns = []struct {
	col string
	get func(d *models.StatDelta) int64
}{
	{"views", func(d *models.StatDelta) int64 { return d.Views }},
	{"unique_views", func(d *models.StatDelta) int64 { return d.UniqueViews }},
	{"returning_views", func(d *models.StatDelta) int64 { return d.ReturningViews }},
	{"bounce_count", func(d *models.StatDelta) int64 { return d.BounceCount }},
	{"gallery_opens", func(d *models.StatDelta) int64 { return d.GalleryOpens }},
	{"image_views", func(d *models.StatDelta) int64 { return d.ImageViews }},
	{"image_zooms", func(d *models.StatDelta) int64 { return d.ImageZooms }},
	{"image_downloads", func(d *models.StatDelta) int64 { return d.ImageDownloads }},
	{"video_plays", func(d *models.StatDelta) int64 { return d.VideoPlays }},
	{"video_progress_25", func(d *models.StatDelta) int64 { return d.VideoProgress25 }},
	{"video_progress_50", func(d *models.StatDelta) int64 { return d.VideoProgress50 }},
	{"video_progress_75", func(d *models.StatDelta) int64 { return d.VideoProgress75 }},
	{"video_progress_100", func(d *models.StatDelta) int64 { return d.VideoProgress100 }},
	{"description_expands", func(d *models.StatDelta) int64 { return d.DescriptionExpands }},
	{"map_opens", func(d *models.StatDelta) int64 { return d.MapOpens }},
	{"map_directions", func(d *models.StatDelta) int64 { return d.MapDirections }},
	{"seller_profile_clicks", func(d *models.StatDelta) int64 { return d.SellerProfileClicks }},
	{"similar_items_clicks", func(d *models.StatDelta) int64 { return d.SimilarItemsClicks }},
	{"phone_reveals", func(d *models.StatDelta) int64 { return d.PhoneReveals }},
	{"phone_clicks", func(d *models.StatDelta) int64 { return d.PhoneClicks }},
	{"whatsapp_clicks", func(d *models.StatDelta) int64 { return d.WhatsAppClicks }},
	{"viber_clicks", func(d *models.StatDelta) int64 { return d.ViberClicks }},
	{"telegram_clicks", func(d *models.StatDelta) int64 { return d.TelegramClicks }},
	{"email_clicks", func(d *models.StatDelta) int64 { return d.EmailClicks }},
	{"messages_sent", func(d *models.StatDelta) int64 { return d.MessagesSent }},
	{"shares", func(d *models.StatDelta) int64 { return d.Shares }},
	{"search_impressions", func(d *models.StatDelta) int64 { return d.SearchImpressions }},
	{"favorites_added", func(d *models.StatDelta) int64 { return d.FavoritesAdded }},
	{"favorites_removed", func(d *models.StatDelta) int64 { return d.FavoritesRemoved }},
	{"favorites_net", func(d *models.StatDelta) int64 { return d.FavoritesNet }},
}

func (r *PostgresStatRepo) ApplyDelta(ctx context.Context, listingID string, day time.Time, delta *models.StatDelta) error {
	if delta.IsZero() {
		return nil
	}

	var sets []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, c := range deltaColumns {
		if v := c.get(delta); v != 0 {
			sets = append(sets, fmt.Sprintf("%s = %s + %s", c.col, c.col, arg(v)))
		}
	}

	// JSONB keyed counters: wrap jsonb_set per key; distinct keys read
	// their old values from the original column so nesting is safe.
	jsonbIncr := func(col string, keys []string) {
		if len(keys) == 0 {
			return
		}
		expr := fmt.Sprintf("COALESCE(%s, '{}'::jsonb)", col)
		for _, k := range keys {
			p := arg(k)
			expr = fmt.Sprintf(
				"jsonb_set(%s, ARRAY[%s], to_jsonb(COALESCE((%s->>%s)::bigint, 0) + 1))",
				expr, p, col, p,
			)
		}
		sets = append(sets, fmt.Sprintf("%s = %s", col, expr))
	}

	if delta.Source != "" {
		jsonbIncr("by_source", []string{string(delta.Source)})
	}
	if delta.Device != "" {
		jsonbIncr("by_device", []string{string(delta.Device)})
	}
	jsonbIncr("geo_breakdown", delta.GeoKeys)
	jsonbIncr("hourly_breakdown", delta.HourKeys)

	if len(sets) == 0 {
		return nil
	}

	where := fmt.Sprintf("listing_id = %s AND stat_date = %s", arg(listingID), arg(dateOnly(day)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stat transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureDayRow(ctx, tx, listingID, day); err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE listing_daily_stats SET %s WHERE %s", strings.Join(sets, ", "), where)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to apply stat delta: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresStatRepo) UpdateAvgTime(ctx context.Context, listingID string, day time.Time, seconds float64, count int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stat transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureDayRow(ctx, tx, listingID, day); err != nil {
		return err
	}

	// Incremental mean; the count clamp guards division by zero.
	_, err = tx.Exec(ctx, `
		UPDATE listing_daily_stats
		SET avg_time_on_page = avg_time_on_page + ($1 - avg_time_on_page) / GREATEST($2::float8, 1)
		WHERE listing_id = $3 AND stat_date = $4
	`, seconds, count, listingID, dateOnly(day))
	if err != nil {
		return fmt.Errorf("failed to update avg time: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresStatRepo) RecordOffer(ctx context.Context, listingID string, day time.Time, amount float64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stat transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureDayRow(ctx, tx, listingID, day); err != nil {
		return err
	}

	// Both SET expressions read the pre-update row, so the running average
	// divides by the incremented count.
	_, err = tx.Exec(ctx, `
		UPDATE listing_daily_stats
		SET offers_avg_amount = offers_avg_amount + ($1 - offers_avg_amount) / (offers_received + 1),
		    offers_received = offers_received + 1
		WHERE listing_id = $2 AND stat_date = $3
	`, amount, listingID, dateOnly(day))
	if err != nil {
		return fmt.Errorf("failed to record offer: %w", err)
	}

	return tx.Commit(ctx)
}

const statColumns = `
	listing_id, stat_date, views, unique_views, returning_views, bounce_count,
	gallery_opens, image_views, image_zooms, image_downloads,
	video_plays, video_progress_25, video_progress_50, video_progress_75, video_progress_100,
	description_expands, map_opens, map_directions, seller_profile_clicks, similar_items_clicks,
	phone_reveals, phone_clicks, whatsapp_clicks, viber_clicks, telegram_clicks, email_clicks, messages_sent,
	offers_received, offers_avg_amount, shares, search_impressions,
	favorites_added, favorites_removed, favorites_net, avg_time_on_page,
	by_source, by_device, geo_breakdown, hourly_breakdown`

func (r *PostgresStatRepo) Get(ctx context.Context, listingID string, day time.Time) (*models.DailyListingStat, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM listing_daily_stats
		WHERE listing_id = $1 AND stat_date = $2
	`, statColumns), listingID, dateOnly(day))

	st, err := scanStat(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stat: %w", err)
	}
	return st, nil
}

func (r *PostgresStatRepo) Range(ctx context.Context, listingID string, from, to time.Time) ([]*models.DailyListingStat, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM listing_daily_stats
		WHERE listing_id = $1 AND stat_date >= $2 AND stat_date <= $3
		ORDER BY stat_date
	`, statColumns), listingID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.DailyListingStat
	for rows.Next() {
		st, err := scanStat(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (r *PostgresStatRepo) SumViews(ctx context.Context, listingID string, from, to time.Time) (int64, bool, error) {
	var views int64
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(views), 0), COUNT(*) FROM listing_daily_stats
		WHERE listing_id = $1 AND stat_date >= $2 AND stat_date <= $3
	`, listingID, dateOnly(from), dateOnly(to)).Scan(&views, &count)
	if err != nil {
		return 0, false, fmt.Errorf("failed to sum views: %w", err)
	}
	return views, count > 0, nil
}

func ensureDayRow(ctx context.Context, tx pgx.Tx, listingID string, day time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO listing_daily_stats (listing_id, stat_date)
		VALUES ($1, $2)
		ON CONFLICT (listing_id, stat_date) DO NOTHING
	`, listingID, dateOnly(day))
	if err != nil {
		return fmt.Errorf("failed to ensure day row: %w", err)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStat(row rowScanner) (*models.DailyListingStat, error) {
	var st models.DailyListingStat
	var bySource, byDevice, geo, hourly []byte

	err := row.Scan(
		&st.ListingID, &st.Date, &st.Views, &st.UniqueViews, &st.ReturningViews, &st.BounceCount,
		&st.GalleryOpens, &st.ImageViews, &st.ImageZooms, &st.ImageDownloads,
		&st.VideoPlays, &st.VideoProgress25, &st.VideoProgress50, &st.VideoProgress75, &st.VideoProgress100,
		&st.DescriptionExpands, &st.MapOpens, &st.MapDirections, &st.SellerProfileClicks, &st.SimilarItemsClicks,
		&st.PhoneReveals, &st.PhoneClicks, &st.WhatsAppClicks, &st.ViberClicks, &st.TelegramClicks, &st.EmailClicks, &st.MessagesSent,
		&st.OffersReceived, &st.OffersAvgAmount, &st.Shares, &st.SearchImpressions,
		&st.FavoritesAdded, &st.FavoritesRemoved, &st.FavoritesNet, &st.AvgTimeOnPage,
		&bySource, &byDevice, &geo, &hourly,
	)
	if err != nil {
		return nil, err
	}

	if len(bySource) > 0 {
		if err := json.Unmarshal(bySource, &st.BySource); err != nil {
			return nil, fmt.Errorf("failed to parse by_source: %w", err)
		}
	}
	if len(byDevice) > 0 {
		if err := json.Unmarshal(byDevice, &st.ByDevice); err != nil {
			return nil, fmt.Errorf("failed to parse by_device: %w", err)
		}
	}
	if len(geo) > 0 {
		if err := json.Unmarshal(geo, &st.GeoBreakdown); err != nil {
			return nil, fmt.Errorf("failed to parse geo_breakdown: %w", err)
		}
	}
	if len(hourly) > 0 {
		if err := json.Unmarshal(hourly, &st.HourlyBreakdown); err != nil {
			return nil, fmt.Errorf("failed to parse hourly_breakdown: %w", err)
		}
	}

	return &st, nil
}
