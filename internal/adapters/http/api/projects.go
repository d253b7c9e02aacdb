package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/gigledger/internal/domain/model"
)

// ProjectDependencies defines the interface for project operations.
type ProjectDependencies interface {
	CreateProject(ctx context.Context, d model.ProjectDraft) (string, error)
	GetProject(ctx context.Context, id string) (model.Project, error)
	GetAllProjects(ctx context.Context) ([]model.Project, error)
}

// ProjectsHandler handles project requests.
type ProjectsHandler struct {
	deps ProjectDependencies
	idem *idempotency
	w    *writer
}

func validateDraft(d model.ProjectDraft) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return errors.New("missing title")
	case strings.TrimSpace(d.Budget) == "":
		return errors.New("missing budget")
	case d.Deadline.IsZero():
		return errors.New("missing deadline")
	}
	return nil
}

// HandleCreate handles POST /projects requests.
func (h *ProjectsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_project"
	var d model.ProjectDraft
	if err := decode(r, &d); err != nil {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateDraft(d); err != nil {
		h.w.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}

	key, ok := h.idem.begin(w, r, op)
	if !ok {
		return
	}
	id, err := h.deps.CreateProject(r.Context(), d)
	h.idem.settle(r, key, err)
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	h.idem.succeed(w, r, key, http.StatusCreated, createdResponse{ID: id})
}

// HandleList handles GET /projects requests.
func (h *ProjectsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_projects"
	ps, err := h.deps.GetAllProjects(r.Context())
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// HandleGet handles GET /projects/{id} requests.
func (h *ProjectsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_project"
	p, err := h.deps.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.w.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
