package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/gigledger/internal/adapters/ledger"
	service "github.com/okian/gigledger/internal/app"
)

const (
	// IdempotencyHeader lets a client retry a write without paying for it twice.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from a stored earlier success.
	ReplayedHeader = "Idempotent-Replayed"
)

type idempotency struct {
	deps IdempotencyDependencies
}

// replay is the stored form of a successful write response.
type replay struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// begin claims the request's key. When the key was already used for the
// same route it answers for the caller and returns false: the stored
// success is replayed if there is one, otherwise a 409.
func (i *idempotency) begin(w http.ResponseWriter, r *http.Request, op string) (string, bool) {
	header := r.Header.Get(IdempotencyHeader)
	if header == "" {
		return "", true
	}
	key := r.Method + " " + r.URL.Path + " " + header
	if !i.deps.SeenAndRecord(r.Context(), key) {
		return key, true
	}
	if rep, ok := i.recall(r.Context(), key); ok {
		w.Header().Set(ReplayedHeader, "true")
		writeJSON(w, rep.Status, rep.Body)
		return "", false
	}
	writeError(w, http.StatusConflict, "duplicate", NewKind(op, ErrDuplicate))
	return "", false
}

// succeed writes a successful response and stores it under key for replay.
func (i *idempotency) succeed(w http.ResponseWriter, r *http.Request, key string, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeJSON(w, status, v)
		return
	}
	if key != "" {
		if rec, err := json.Marshal(replay{Status: status, Body: body}); err == nil {
			i.deps.Remember(r.Context(), key, rec)
		}
	}
	writeJSON(w, status, json.RawMessage(body))
}

func (i *idempotency) recall(ctx context.Context, key string) (replay, bool) {
	raw, ok := i.deps.Recall(ctx, key)
	if !ok {
		return replay{}, false
	}
	var rep replay
	if err := json.Unmarshal(raw, &rep); err != nil || rep.Status == 0 {
		return replay{}, false
	}
	return rep, true
}

// settle releases key when err shows nothing reached the ledger, so the
// client may retry. Any other outcome keeps the key.
func (i *idempotency) settle(r *http.Request, key string, err error) {
	if key == "" || err == nil || !notSubmitted(err) {
		return
	}
	i.deps.Unrecord(r.Context(), key)
}

func notSubmitted(err error) bool {
	if errors.Is(err, ErrBadRequest) ||
		errors.Is(err, service.ErrInvalidInput) ||
		errors.Is(err, ledger.ErrUninitialized) {
		return true
	}
	var rej *ledger.RejectedError
	return errors.As(err, &rej) && rej.TxHash == (common.Hash{})
}
