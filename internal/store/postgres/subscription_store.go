package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// SubscriptionStore implements domain.SubscriptionLedger and
// domain.UsernameRegistry using PostgreSQL.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore creates a SubscriptionStore backed by the given pool.
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

// SubscriptionEnd returns the subscription expiry for a user. The zero time
// means the user never subscribed.
func (s *SubscriptionStore) SubscriptionEnd(ctx context.Context, userID int64) (time.Time, error) {
	var end *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT ends_at FROM subscriptions WHERE user_id = $1", userID,
	).Scan(&end)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: subscription end %d: %w", userID, err)
	}
	if end == nil {
		return time.Time{}, nil
	}
	return *end, nil
}

// SetSubscriptionEnd sets or updates the subscription expiry for a user.
func (s *SubscriptionStore) SetSubscriptionEnd(ctx context.Context, userID int64, end time.Time) error {
	const query = `
		INSERT INTO subscriptions (user_id, ends_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET ends_at = EXCLUDED.ends_at`
	if _, err := s.pool.Exec(ctx, query, userID, end); err != nil {
		return fmt.Errorf("postgres: set subscription end %d: %w", userID, err)
	}
	return nil
}

// IsAdmin reports whether the user carries the admin flag.
func (s *SubscriptionStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var admin bool
	err := s.pool.QueryRow(ctx,
		"SELECT is_admin FROM subscriptions WHERE user_id = $1", userID,
	).Scan(&admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: is admin %d: %w", userID, err)
	}
	return admin, nil
}

// SetAdmin sets or clears the admin flag for a user.
func (s *SubscriptionStore) SetAdmin(ctx context.Context, userID int64, admin bool) error {
	const query = `
		INSERT INTO subscriptions (user_id, is_admin) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET is_admin = EXCLUDED.is_admin`
	if _, err := s.pool.Exec(ctx, query, userID, admin); err != nil {
		return fmt.Errorf("postgres: set admin %d: %w", userID, err)
	}
	return nil
}

// UserIDs returns every user with a subscription row.
func (s *SubscriptionStore) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT user_id FROM subscriptions")
	if err != nil {
		return nil, fmt.Errorf("postgres: list subscription users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan subscription user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list subscription users rows: %w", err)
	}
	return ids, nil
}

// SaveUsername records the current username for a user.
func (s *SubscriptionStore) SaveUsername(ctx context.Context, userID int64, username string) error {
	const query = `
		INSERT INTO usernames (user_id, username) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username`
	if _, err := s.pool.Exec(ctx, query, userID, username); err != nil {
		return fmt.Errorf("postgres: save username %d: %w", userID, err)
	}
	return nil
}

// UserIDByUsername resolves a username to a user ID. Returns
// domain.ErrNotFound when the username was never seen.
func (s *SubscriptionStore) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		"SELECT user_id FROM usernames WHERE username = $1", username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: user by username %q: %w", username, err)
	}
	return id, nil
}

// Compile-time interface checks.
var (
	_ domain.SubscriptionLedger = (*SubscriptionStore)(nil)
	_ domain.UsernameRegistry   = (*SubscriptionStore)(nil)
)
