package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// PrefStore implements domain.PreferenceStore using PostgreSQL.
type PrefStore struct {
	pool *pgxpool.Pool
}

// NewPrefStore creates a PrefStore backed by the given connection pool.
func NewPrefStore(pool *pgxpool.Pool) *PrefStore {
	return &PrefStore{pool: pool}
}

// Get retrieves the preference row for a user, inserting a default row when
// none exists yet.
func (s *PrefStore) Get(ctx context.Context, userID int64) (domain.PreferenceRecord, error) {
	const query = `
		SELECT user_id, min_profit, poll_interval, price_min, price_max, active
		FROM user_prefs WHERE user_id = $1`

	var rec domain.PreferenceRecord
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&rec.UserID, &rec.MinProfitPercent, &rec.PollInterval,
		&rec.PriceMin, &rec.PriceMax, &rec.Active,
	)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.PreferenceRecord{}, fmt.Errorf("postgres: get prefs %d: %w", userID, err)
	}

	rec = domain.PreferenceRecord{
		UserID:           userID,
		MinProfitPercent: domain.DefaultMinProfitPercent,
		PollInterval:     domain.DefaultPollInterval,
		PriceMin:         domain.DefaultPriceMin,
		PriceMax:         domain.DefaultPriceMax,
	}
	if err := s.Put(ctx, rec); err != nil {
		return domain.PreferenceRecord{}, err
	}
	return rec, nil
}

// Put inserts or updates the preference row for a user.
func (s *PrefStore) Put(ctx context.Context, rec domain.PreferenceRecord) error {
	const query = `
		INSERT INTO user_prefs (user_id, min_profit, poll_interval, price_min, price_max, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			min_profit    = EXCLUDED.min_profit,
			poll_interval = EXCLUDED.poll_interval,
			price_min     = EXCLUDED.price_min,
			price_max     = EXCLUDED.price_max,
			active        = EXCLUDED.active,
			updated_at    = NOW()`

	_, err := s.pool.Exec(ctx, query,
		rec.UserID, rec.MinProfitPercent, rec.PollInterval,
		rec.PriceMin, rec.PriceMax, rec.Active,
	)
	if err != nil {
		return fmt.Errorf("postgres: put prefs %d: %w", rec.UserID, err)
	}
	return nil
}

// UserIDs returns every user with a preference row.
func (s *PrefStore) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT user_id FROM user_prefs")
	if err != nil {
		return nil, fmt.Errorf("postgres: list pref users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan pref user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pref users rows: %w", err)
	}
	return ids, nil
}

// Compile-time interface check.
var _ domain.PreferenceStore = (*PrefStore)(nil)
