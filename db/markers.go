package db

import (
	"context"
	"database/sql"
	"time"
)

// GetMarker returns the first-observed-expired timestamp for a chat identity,
// with ok=false when no marker exists.
func (s *Store) GetMarker(ctx context.Context, chatID string) (time.Time, bool, error) {
	var t time.Time
	err := s.DB.QueryRowContext(ctx,
		`SELECT first_observed_expired_at FROM expiry_markers WHERE chat_id=$1`, chatID).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// PutMarker records the moment a subscription was first observed inactive.
// An existing marker is left untouched so the grace window is anchored to the
// first observation, not the latest one.
func (s *Store) PutMarker(ctx context.Context, chatID string, firstObserved time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO expiry_markers(chat_id, first_observed_expired_at) VALUES($1,$2)
		 ON CONFLICT(chat_id) DO NOTHING`, chatID, firstObserved)
	return err
}

// DeleteMarker clears the expiry marker, typically when a lapsed subscription
// becomes active again.
func (s *Store) DeleteMarker(ctx context.Context, chatID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM expiry_markers WHERE chat_id=$1`, chatID)
	return err
}
