package relations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
)

// Status change targets accepted by SetStatus.
const (
	TargetWatchlist = "watchlist"
	TargetWatched   = "watched"
	TargetRemove    = "remove"
)

var (
	// ErrNotAuthorized is returned when a mutation is attempted without an
	// authenticated identity. No write happens in that case.
	ErrNotAuthorized = errors.New("you must be signed in to perform this action")
	// ErrNotFound is returned when a delete targets a row the user does not own.
	ErrNotFound = errors.New("not found")
)

// Gateway applies user-initiated relation changes. Every write is a
// single upsert or delete keyed by (user, media, kind); the unique index
// on that triple makes conflicting rows impossible, so switching between
// watchlist and watched is atomic.
type Gateway struct {
	db       *sql.DB
	validate *validator.Validate
	onChange []func(userID string)
}

// NewGateway creates a mutation gateway.
func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{
		db:       db,
		validate: validator.New(),
	}
}

// OnChange registers a hook invoked after every successful write, used to
// invalidate cached aggregate views keyed by the user's lists.
func (g *Gateway) OnChange(fn func(userID string)) {
	g.onChange = append(g.onChange, fn)
}

func (g *Gateway) notify(userID string) {
	for _, fn := range g.onChange {
		fn(userID)
	}
}

type statusChange struct {
	MediaID   int    `validate:"gt=0"`
	MediaType string `validate:"oneof=movie tv"`
	Target    string `validate:"oneof=watchlist watched remove"`
}

// SetStatus adds the media item to the user's watchlist or watched list,
// or removes the relation entirely. Removing a relation that does not
// exist succeeds as a no-op.
func (g *Gateway) SetStatus(ctx context.Context, userID string, mediaID int, mediaType, target string) error {
	if userID == "" {
		return ErrNotAuthorized
	}
	if err := g.validate.Struct(statusChange{MediaID: mediaID, MediaType: mediaType, Target: target}); err != nil {
		return fmt.Errorf("invalid status change: %w", err)
	}

	if target == TargetRemove {
		_, err := g.db.ExecContext(ctx,
			`DELETE FROM user_media_status WHERE user_id = ? AND media_id = ? AND media_type = ?`,
			userID, mediaID, mediaType,
		)
		if err != nil {
			return fmt.Errorf("remove status: %w", err)
		}
	} else {
		_, err := g.db.ExecContext(ctx,
			`INSERT INTO user_media_status (user_id, media_id, media_type, status)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, media_id, media_type) DO UPDATE SET
			   status = excluded.status,
			   created_at = CURRENT_TIMESTAMP`,
			userID, mediaID, mediaType, target,
		)
		if err != nil {
			return fmt.Errorf("upsert status: %w", err)
		}
	}

	log.Printf("[relations] status change: user=%s media=%d/%s target=%s", userID, mediaID, mediaType, target)
	g.notify(userID)
	return nil
}

type ratingChange struct {
	MediaID   int    `validate:"gt=0"`
	MediaType string `validate:"oneof=movie tv"`
	Rating    int    `validate:"gte=1,lte=10"`
}

// UpsertRating creates or replaces the user's review for one media item.
func (g *Gateway) UpsertRating(ctx context.Context, userID string, mediaID int, mediaType string, rating int, text string, isPublic bool) error {
	if userID == "" {
		return ErrNotAuthorized
	}
	if err := g.validate.Struct(ratingChange{MediaID: mediaID, MediaType: mediaType, Rating: rating}); err != nil {
		return fmt.Errorf("invalid rating: %w", err)
	}

	var reviewText *string
	if text != "" {
		reviewText = &text
	}

	_, err := g.db.ExecContext(ctx,
		`INSERT INTO reviews (user_id, media_id, media_type, rating, review_text, is_public)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, media_id, media_type) DO UPDATE SET
		   rating = excluded.rating,
		   review_text = excluded.review_text,
		   is_public = excluded.is_public,
		   created_at = CURRENT_TIMESTAMP`,
		userID, mediaID, mediaType, rating, reviewText, isPublic,
	)
	if err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}

	g.notify(userID)
	return nil
}

// DeleteRating removes one of the user's own reviews. Rows belonging to
// other users are never touched.
func (g *Gateway) DeleteRating(ctx context.Context, userID string, reviewID int64) error {
	if userID == "" {
		return ErrNotAuthorized
	}

	res, err := g.db.ExecContext(ctx,
		`DELETE FROM reviews WHERE id = ? AND user_id = ?`, reviewID, userID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	g.notify(userID)
	return nil
}
