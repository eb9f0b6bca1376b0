package playbooks

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playbookhq/playbooks/internal/permissions"
	"github.com/playbookhq/playbooks/internal/platform/httpx"
	"github.com/playbookhq/playbooks/internal/shared"
)

// Handler exposes playbook permission endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers playbook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{playbookID}/permissions", h.listPermissions)
	r.Get("/{playbookID}/permissions/{capability}", h.getPermission)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.service.Permissions(r.Context(), chi.URLParam(r, "playbookID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decisions)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	capability, err := permissions.ParseCapability(chi.URLParam(r, "capability"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", shared.ErrValidation, err))
		return
	}
	decision, err := h.service.HasPermission(r.Context(), chi.URLParam(r, "playbookID"), shared.ActorFromContext(r.Context()), capability)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Warn("playbooks request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
