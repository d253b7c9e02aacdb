package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/gigledger/internal/domain/model"
)

// ReviewDependencies defines the interface for reputation operations.
type ReviewDependencies interface {
	CreateReview(ctx context.Context, projectID, reviewee string, rating uint64, comment string) (string, error)
	GetUserReviews(ctx context.Context, address string) ([]model.Review, error)
	GetUserAverageRating(ctx context.Context, address string) (float64, error)
}

// ReviewsHandler handles review and rating requests.
type ReviewsHandler struct {
	deps ReviewDependencies
	idem *idempotency
	w    *writer
}

// reviewRequest carries a rating scaled by ten (45 means 4.5).
type reviewRequest struct {
	ProjectID string `json:"project_id"`
	Reviewee  string `json:"reviewee"`
	Rating    uint64 `json:"rating"`
	Comment   string `json:"comment"`
}

type ratingResponse struct {
	Address string  `json:"address"`
	Rating  float64 `json:"rating"`
}

// HandleCreate handles POST /reviews requests.
func (h *ReviewsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_review"
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	switch {
	case strings.TrimSpace(req.ProjectID) == "":
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("missing project_id")))
		return
	case strings.TrimSpace(req.Reviewee) == "":
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("missing reviewee")))
		return
	}

	key, ok := h.idem.begin(w, r, op)
	if !ok {
		return
	}
	id, err := h.deps.CreateReview(r.Context(), req.ProjectID, req.Reviewee, req.Rating, req.Comment)
	h.idem.settle(r, key, err)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	h.idem.succeed(w, r, key, http.StatusCreated, createdResponse{ID: id})
}

// HandleList handles GET /users/{address}/reviews requests.
func (h *ReviewsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_reviews"
	rs, err := h.deps.GetUserReviews(r.Context(), r.PathValue("address"))
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// HandleRating handles GET /users/{address}/rating requests.
func (h *ReviewsHandler) HandleRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_rating"
	addr := r.PathValue("address")
	avg, err := h.deps.GetUserAverageRating(r.Context(), addr)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{Address: addr, Rating: avg})
}
