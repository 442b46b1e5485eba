// Package relations owns the per-user relation facts: watchlist and
// watched membership plus rating values. Reads are always scoped to one
// user; a missing row means "no relation", never an error.
package relations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"watchverse/models"
)

// Repository reads relation facts from the persistent store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository backed by the given connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetStatus returns the user's status for one media item, or nil when the
// user has no relation to it.
func (r *Repository) GetStatus(ctx context.Context, userID string, mediaID int, mediaType string) (*models.Status, error) {
	var status models.Status
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM user_media_status WHERE user_id = ? AND media_id = ? AND media_type = ?`,
		userID, mediaID, mediaType,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	return &status, nil
}

// ListByStatus returns every media reference the user holds under one
// status, most recently added first.
func (r *Repository) ListByStatus(ctx context.Context, userID string, status models.Status) ([]models.RelationRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT media_id, media_type FROM user_media_status
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at DESC`,
		userID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("query list by status: %w", err)
	}
	defer rows.Close()

	var refs []models.RelationRef
	for rows.Next() {
		var ref models.RelationRef
		if err := rows.Scan(&ref.MediaID, &ref.MediaType); err != nil {
			return nil, fmt.Errorf("scan relation row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relation rows: %w", err)
	}
	return refs, nil
}

// GetRatingsMap returns every rating the user has given, keyed by media id.
func (r *Repository) GetRatingsMap(ctx context.Context, userID string) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT media_id, rating FROM reviews WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[int]int)
	for rows.Next() {
		var mediaID, rating int
		if err := rows.Scan(&mediaID, &rating); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		ratings[mediaID] = rating
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating rows: %w", err)
	}
	return ratings, nil
}

// GetStatusBatch returns the statuses for a set of media ids of one kind
// in a single query. Semantically equivalent to GetStatus per id.
func (r *Repository) GetStatusBatch(ctx context.Context, userID string, mediaIDs []int, mediaType string) (map[int]models.Status, error) {
	statuses := make(map[int]models.Status, len(mediaIDs))
	if len(mediaIDs) == 0 {
		return statuses, nil
	}

	placeholders := strings.Repeat("?,", len(mediaIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(mediaIDs)+2)
	args = append(args, userID, mediaType)
	for _, id := range mediaIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT media_id, status FROM user_media_status
		 WHERE user_id = ? AND media_type = ? AND media_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query status batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mediaID int
		var status models.Status
		if err := rows.Scan(&mediaID, &status); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		statuses[mediaID] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}
	return statuses, nil
}
