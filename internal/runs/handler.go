package runs

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/playbookhq/playbooks/internal/platform/httpx"
	"github.com/playbookhq/playbooks/internal/shared"
)

// Handler exposes run timeline endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers run routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{runID}/timeline", func(r chi.Router) {
		r.Get("/", h.timeline)
		r.Get("/filter", h.filterOptions)
		r.Post("/filter", h.selectOption)
		r.Delete("/filter", h.resetFilter)
	})
}

type selectOptionRequest struct {
	Value   string `json:"value" validate:"required"`
	Checked bool   `json:"checked"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Timeline(r.Context(), chi.URLParam(r, "runID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}

func (h *Handler) filterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.FilterOptions(r.Context(), chi.URLParam(r, "runID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

func (h *Handler) selectOption(w http.ResponseWriter, r *http.Request) {
	var req selectOptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, fmt.Errorf("select option: %v: %w", err, shared.ErrValidation))
		return
	}
	opts, err := h.service.SelectOption(r.Context(), chi.URLParam(r, "runID"), shared.ActorFromContext(r.Context()), req.Value, req.Checked)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

func (h *Handler) resetFilter(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.ResetFilter(r.Context(), chi.URLParam(r, "runID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Warn("runs request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
