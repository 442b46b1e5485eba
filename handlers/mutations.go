package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"watchverse/services/relations"
)

type relationWriter interface {
	SetStatus(ctx context.Context, userID string, mediaID int, mediaType, target string) error
	UpsertRating(ctx context.Context, userID string, mediaID int, mediaType string, rating int, text string, isPublic bool) error
	DeleteRating(ctx context.Context, userID string, reviewID int64) error
}

var _ relationWriter = (*relations.Gateway)(nil)

// Mutations handles the JSON endpoints behind the optimistic card and
// review actions. Every endpoint resolves the acting user from the
// session cookie; the body never carries an identity.
type Mutations struct {
	Gateway relationWriter
	Session sessionResolver
}

// NewMutations creates the mutation handler set.
func NewMutations(gateway relationWriter, session sessionResolver) *Mutations {
	return &Mutations{Gateway: gateway, Session: session}
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

// writeGatewayError maps gateway failures onto the wire. Missing identity
// gets a 401 so the client can roll back and point at the sign-in page.
func writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relations.ErrNotAuthorized):
		writeMutationError(w, http.StatusUnauthorized, err)
	case errors.Is(err, relations.ErrNotFound):
		writeMutationError(w, http.StatusNotFound, err)
	default:
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			writeMutationError(w, http.StatusBadRequest, err)
			return
		}
		log.Printf("[mutations] gateway error: %v", err)
		writeMutationError(w, http.StatusInternalServerError, errors.New("something went wrong"))
	}
}

func (h *Mutations) userID(r *http.Request) string {
	if user := h.Session.CurrentUser(r); user != nil {
		return user.ID
	}
	return ""
}

type setStatusRequest struct {
	MediaID   int    `json:"media_id"`
	MediaType string `json:"media_type"`
	Target    string `json:"target"`
}

// SetStatus moves an item between watchlist, watched and neither.
func (h *Mutations) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeMutationError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if err := h.Gateway.SetStatus(r.Context(), h.userID(r), req.MediaID, req.MediaType, req.Target); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type upsertRatingRequest struct {
	MediaID    int    `json:"media_id"`
	MediaType  string `json:"media_type"`
	Rating     int    `json:"rating"`
	ReviewText string `json:"review_text"`
	IsPublic   bool   `json:"is_public"`
}

// UpsertRating creates or replaces the user's rating and review text.
func (h *Mutations) UpsertRating(w http.ResponseWriter, r *http.Request) {
	var req upsertRatingRequest
	if err := decodeBody(r, &req); err != nil {
		writeMutationError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if err := h.Gateway.UpsertRating(r.Context(), h.userID(r), req.MediaID, req.MediaType, req.Rating, req.ReviewText, req.IsPublic); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type deleteRatingRequest struct {
	ReviewID int64 `json:"review_id"`
}

// DeleteRating removes the user's own review.
func (h *Mutations) DeleteRating(w http.ResponseWriter, r *http.Request) {
	var req deleteRatingRequest
	if err := decodeBody(r, &req); err != nil {
		writeMutationError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if err := h.Gateway.DeleteRating(r.Context(), h.userID(r), req.ReviewID); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
