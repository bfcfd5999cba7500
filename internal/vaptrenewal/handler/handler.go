// Package handler exposes VAPT renewals over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"renewals/internal/vaptrenewal/models"
	"renewals/internal/vaptrenewal/service"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/httputil"
	"renewals/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, actor domain.Actor, cmd service.CreateCommand) (*models.Renewal, error)
	Approve(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd service.DecisionCommand) (*models.Renewal, error)
	Reject(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd service.DecisionCommand) (*models.Renewal, error)
	Review(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd service.ReviewCommand) (*models.Renewal, error)
	Resync(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID) (*models.Renewal, error)
	Get(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID) (*models.Renewal, error)
	List(ctx context.Context, actor domain.Actor) ([]*models.Renewal, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/renewals/vapt", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}/approve", h.HandleApprove)
		r.Patch("/{id}/reject", h.HandleReject)
		r.Patch("/{id}/review", h.HandleReview)
		r.Post("/{id}/resync", h.HandleResync)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateVaptRenewalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	renewal, err := h.service.Create(ctx, actor, service.CreateCommand{
		DomainID:  domain.DomainID(req.DomainID),
		VaptID:    domain.VaptID(req.VaptID),
		NewReport: req.report,
		NewExpiry: req.NewExpiry,
		Remarks:   req.Remarks,
	})
	if err != nil {
		h.fail(ctx, w, "create vapt renewal failed", err, "vapt_id", int64(req.VaptID))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(renewal))
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve", h.service.Approve)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject", h.service.Reject)
}

type decisionFunc func(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd service.DecisionCommand) (*models.Renewal, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action string, fn decisionFunc) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	renewal, err := fn(ctx, actor, id, service.DecisionCommand{
		DomainID: domain.DomainID(req.DomainID),
		Remarks:  req.Remarks,
	})
	if err != nil {
		h.fail(ctx, w, action+" vapt renewal failed", err, "vapt_renewal_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(renewal))
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	renewal, err := h.service.Review(ctx, actor, id, service.ReviewCommand{
		DomainID:  domain.DomainID(req.DomainID),
		NewReport: req.report,
		NewExpiry: req.NewExpiry,
		Remarks:   req.Remarks,
	})
	if err != nil {
		h.fail(ctx, w, "review vapt renewal failed", err, "vapt_renewal_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(renewal))
}

func (h *Handler) HandleResync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	renewal, err := h.service.Resync(ctx, actor, id)
	if err != nil {
		h.fail(ctx, w, "resync vapt renewal failed", err, "vapt_renewal_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toResponse(renewal))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	renewal, err := h.service.Get(ctx, actor, id)
	if err != nil {
		h.fail(ctx, w, "get vapt renewal failed", err, "vapt_renewal_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(renewal))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	renewals, err := h.service.List(ctx, actor)
	if err != nil {
		h.fail(ctx, w, "list vapt renewals failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(renewals))
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor := requestcontext.Actor(r.Context())
	if actor.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.Actor{}, false
	}
	return actor, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	args := append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.Actor(ctx).ID.String(),
		"role", requestcontext.Actor(ctx).Role.String(),
		"error", err,
	}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.InfoContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (domain.VaptRenewalID, bool) {
	id, err := domain.ParseVaptRenewalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}
