package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/gigledger/internal/adapters/repository"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// TransactionDependencies exposes the submission journal.
type TransactionDependencies interface {
	Transaction(ctx context.Context, hash string) (repository.Submission, error)
	RecentTransactions(ctx context.Context, limit int) ([]repository.Submission, error)
}

// TransactionsHandler lets clients look up writes they stopped waiting for.
type TransactionsHandler struct {
	deps TransactionDependencies
	w    *writer
}

// HandleGet handles GET /transactions/{hash} requests.
func (h *TransactionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_transaction"
	s, err := h.deps.Transaction(r.Context(), r.PathValue("hash"))
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleRecent handles GET /transactions?limit=N requests.
func (h *TransactionsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.recent_transactions"
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRecentLimit {
			h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("limit must be between 1 and 500")))
			return
		}
		limit = n
	}
	rows, err := h.deps.RecentTransactions(r.Context(), limit)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	if rows == nil {
		rows = []repository.Submission{}
	}
	writeJSON(w, http.StatusOK, rows)
}
