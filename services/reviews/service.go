// Package reviews reads review data for detail pages: the public review
// feed with author profiles plus the acting user's own review.
package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"watchverse/models"
)

// Service reads reviews from the persistent store.
type Service struct {
	db *sql.DB
}

// NewService creates a review reader backed by the given connection.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// MediaReviews is the public review feed for one media item.
type MediaReviews struct {
	Reviews []models.Review
	Average float64
}

// ForMedia returns the public reviews for one media item, newest first,
// with their authors joined, plus the arithmetic mean rating.
func (s *Service) ForMedia(ctx context.Context, mediaID int, mediaType string) (*MediaReviews, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.user_id, r.media_id, r.media_type, r.rating, r.review_text, r.is_public, r.created_at,
		        p.id, p.username, p.full_name, p.avatar_url
		 FROM reviews r
		 JOIN profiles p ON p.id = r.user_id
		 WHERE r.media_id = ? AND r.media_type = ? AND r.is_public = 1
		 ORDER BY r.created_at DESC`,
		mediaID, mediaType,
	)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	result := &MediaReviews{Reviews: []models.Review{}}
	total := 0
	for rows.Next() {
		var review models.Review
		var profile models.Profile
		if err := rows.Scan(
			&review.ID, &review.UserID, &review.MediaID, &review.MediaType,
			&review.Rating, &review.ReviewText, &review.IsPublic, &review.CreatedAt,
			&profile.ID, &profile.Username, &profile.FullName, &profile.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		review.Profile = &profile
		result.Reviews = append(result.Reviews, review)
		total += review.Rating
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	if len(result.Reviews) > 0 {
		result.Average = float64(total) / float64(len(result.Reviews))
	}
	return result, nil
}

// UserReview returns the user's own review for one media item regardless
// of its visibility, or nil when none exists.
func (s *Service) UserReview(ctx context.Context, userID string, mediaID int, mediaType string) (*models.Review, error) {
	var review models.Review
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, media_id, media_type, rating, review_text, is_public, created_at
		 FROM reviews
		 WHERE user_id = ? AND media_id = ? AND media_type = ?`,
		userID, mediaID, mediaType,
	).Scan(
		&review.ID, &review.UserID, &review.MediaID, &review.MediaType,
		&review.Rating, &review.ReviewText, &review.IsPublic, &review.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user review: %w", err)
	}
	return &review, nil
}
