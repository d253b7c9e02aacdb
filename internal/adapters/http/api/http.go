// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/repository"
	service "github.com/okian/gigledger/internal/app"
	"github.com/okian/gigledger/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IdempotencyDependencies
	ProjectDependencies
	MilestoneDependencies
	ProposalDependencies
	ReviewDependencies
	TransactionDependencies
	StatsProvider
}

// IdempotencyDependencies records Idempotency-Key headers and the
// responses produced under them.
type IdempotencyDependencies interface {
	SeenAndRecord(ctx context.Context, key string) bool
	Unrecord(ctx context.Context, key string)
	Remember(ctx context.Context, key string, result []byte)
	Recall(ctx context.Context, key string) ([]byte, bool)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	logger logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	projectsHandler    *ProjectsHandler
	milestonesHandler  *MilestonesHandler
	proposalsHandler   *ProposalsHandler
	reviewsHandler     *ReviewsHandler
	transactionHandler *TransactionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	w := &writer{logger: log}
	idem := &idempotency{deps: deps}
	return &Server{
		deps:               deps,
		logger:             log,
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		projectsHandler:    &ProjectsHandler{deps: deps, idem: idem, w: w},
		milestonesHandler:  &MilestonesHandler{deps: deps, idem: idem, w: w},
		proposalsHandler:   &ProposalsHandler{deps: deps, idem: idem, w: w},
		reviewsHandler:     &ReviewsHandler{deps: deps, idem: idem, w: w},
		transactionHandler: &TransactionsHandler{deps: deps, w: w},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint), s.logger))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /projects", "projects", s.projectsHandler.HandleCreate)
	route("GET /projects", "projects", s.projectsHandler.HandleList)
	route("GET /projects/{id}", "project", s.projectsHandler.HandleGet)

	route("POST /projects/{id}/milestones", "milestones", s.milestonesHandler.HandleCreate)
	route("GET /projects/{id}/milestones", "milestones", s.milestonesHandler.HandleList)
	route("POST /milestones/{id}/fund", "milestone_fund", s.milestonesHandler.HandleFund)
	route("GET /milestones/{id}/balance", "milestone_balance", s.milestonesHandler.HandleBalance)

	route("POST /projects/{id}/proposals", "proposals", s.proposalsHandler.HandleSubmit)
	route("GET /projects/{id}/proposals", "proposals", s.proposalsHandler.HandleList)
	route("POST /proposals/{id}/accept", "proposal_accept", s.proposalsHandler.HandleAccept)

	route("POST /reviews", "reviews", s.reviewsHandler.HandleCreate)
	route("GET /users/{address}/reviews", "user_reviews", s.reviewsHandler.HandleList)
	route("GET /users/{address}/rating", "user_rating", s.reviewsHandler.HandleRating)

	route("GET /transactions", "transactions", s.transactionHandler.HandleRecent)
	route("GET /transactions/{hash}", "transaction", s.transactionHandler.HandleGet)
}

type createdResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writer turns service errors into HTTP responses and logs them.
type writer struct {
	logger logger.Logger
}

// classify maps an error onto a status, a response code and an API kind.
func classify(r *http.Request, err error) (int, string, error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidHash):
		return http.StatusBadRequest, "bad_request", ErrBadRequest
	case errors.Is(err, ledger.ErrUninitialized):
		return http.StatusServiceUnavailable, "not_ready", ErrNotReady
	case errors.Is(err, ledger.ErrRejected):
		if r.Method == http.MethodGet {
			return http.StatusNotFound, "not_found", ErrNotFound
		}
		return http.StatusUnprocessableEntity, "rejected", ErrRejected
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found", ErrNotFound
	case errors.Is(err, ledger.ErrEventNotFound):
		return http.StatusBadGateway, "event_not_found", ErrUpstream
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "confirmation_timeout", ErrTimeout
	case errors.Is(err, ledger.ErrDecode):
		return http.StatusBadGateway, "upstream_error", ErrUpstream
	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, "canceled", ErrInternal
	default:
		return http.StatusBadGateway, "upstream_error", ErrUpstream
	}
}

func (wr *writer) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, kind := classify(r, err)
	werr := WrapKind(op, kind, err)
	if status >= http.StatusInternalServerError {
		wr.logger.Error(r.Context(), "request failed",
			logger.String("op", op), logger.Int("status", status), logger.Error(werr))
	} else {
		wr.logger.Debug(r.Context(), "request refused",
			logger.String("op", op), logger.Int("status", status), logger.Error(werr))
	}
	if kind == ErrTimeout {
		err = fmt.Errorf("%w; the transaction may still be confirmed", ErrTimeout)
	}
	writeError(w, status, code, err)
}
