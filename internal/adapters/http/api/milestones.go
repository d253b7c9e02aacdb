package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/gigledger/internal/domain/model"
)

// MilestoneDependencies defines the interface for milestone operations.
type MilestoneDependencies interface {
	CreateMilestone(ctx context.Context, projectID, description, amount string, deadline time.Time) (string, error)
	GetProjectMilestones(ctx context.Context, projectID string) ([]model.Milestone, error)
	FundMilestone(ctx context.Context, milestoneID, amount string) (bool, error)
	MilestoneBalance(ctx context.Context, milestoneID string) (string, error)
}

// MilestonesHandler handles milestone and escrow requests.
type MilestonesHandler struct {
	deps MilestoneDependencies
	idem *idempotency
	w    *writer
}

type milestoneRequest struct {
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Deadline    time.Time `json:"deadline"`
}

type fundRequest struct {
	Amount string `json:"amount"`
}

type fundResponse struct {
	Funded bool `json:"funded"`
}

type balanceResponse struct {
	MilestoneID string `json:"milestone_id"`
	Balance     string `json:"balance"`
}

// HandleCreate handles POST /projects/{id}/milestones requests.
func (h *MilestonesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_milestone"
	var req milestoneRequest
	if err := decode(r, &req); err != nil {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	switch {
	case strings.TrimSpace(req.Amount) == "":
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("missing amount")))
		return
	case req.Deadline.IsZero():
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("missing deadline")))
		return
	}

	key, ok := h.idem.begin(w, r, op)
	if !ok {
		return
	}
	id, err := h.deps.CreateMilestone(r.Context(), r.PathValue("id"), req.Description, req.Amount, req.Deadline)
	h.idem.settle(r, key, err)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	h.idem.succeed(w, r, key, http.StatusCreated, createdResponse{ID: id})
}

// HandleList handles GET /projects/{id}/milestones requests.
func (h *MilestonesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_milestones"
	ms, err := h.deps.GetProjectMilestones(r.Context(), r.PathValue("id"))
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

// HandleFund handles POST /milestones/{id}/fund requests.
func (h *MilestonesHandler) HandleFund(w http.ResponseWriter, r *http.Request) {
	const op = "api.fund_milestone"
	var req fundRequest
	if err := decode(r, &req); err != nil {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Amount) == "" {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("missing amount")))
		return
	}

	key, ok := h.idem.begin(w, r, op)
	if !ok {
		return
	}
	funded, err := h.deps.FundMilestone(r.Context(), r.PathValue("id"), req.Amount)
	h.idem.settle(r, key, err)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	h.idem.succeed(w, r, key, http.StatusOK, fundResponse{Funded: funded})
}

// HandleBalance handles GET /milestones/{id}/balance requests.
func (h *MilestonesHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.milestone_balance"
	id := r.PathValue("id")
	bal, err := h.deps.MilestoneBalance(r.Context(), id)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{MilestoneID: id, Balance: bal})
}
