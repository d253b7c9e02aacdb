package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/gigledger/internal/domain/model"
)

// ProposalDependencies defines the interface for proposal operations.
type ProposalDependencies interface {
	SubmitProposal(ctx context.Context, projectID, description, price string, estimatedTime uint64) (string, error)
	GetProjectProposals(ctx context.Context, projectID string) ([]model.Proposal, error)
	AcceptProposal(ctx context.Context, proposalID string) (bool, error)
}

// ProposalsHandler handles proposal requests.
type ProposalsHandler struct {
	deps ProposalDependencies
	idem *idempotency
	w    *writer
}

type proposalRequest struct {
	Description   string `json:"description"`
	Price         string `json:"price"`
	EstimatedTime uint64 `json:"estimated_time"`
}

type acceptResponse struct {
	Accepted bool `json:"accepted"`
}

// HandleSubmit handles POST /projects/{id}/proposals requests.
func (h *ProposalsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_proposal"
	var req proposalRequest
	if err := decode(r, &req); err != nil {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Price) == "" {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("missing price")))
		return
	}

	key, ok := h.idem.begin(w, r, op)
	if !ok {
		return
	}
	id, err := h.deps.SubmitProposal(r.Context(), r.PathValue("id"), req.Description, req.Price, req.EstimatedTime)
	h.idem.settle(r, key, err)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	h.idem.succeed(w, r, key, http.StatusCreated, createdResponse{ID: id})
}

// HandleList handles GET /projects/{id}/proposals requests.
func (h *ProposalsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_proposals"
	ps, err := h.deps.GetProjectProposals(r.Context(), r.PathValue("id"))
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// HandleAccept handles POST /proposals/{id}/accept requests.
func (h *ProposalsHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	const op = "api.accept_proposal"
	key, ok := h.idem.begin(w, r, op)
	if !ok {
		return
	}
	accepted, err := h.deps.AcceptProposal(r.Context(), r.PathValue("id"))
	h.idem.settle(r, key, err)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	h.idem.succeed(w, r, key, http.StatusOK, acceptResponse{Accepted: accepted})
}
