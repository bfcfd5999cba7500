// Package handler exposes the transfer workflow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"renewals/internal/transfer/models"
	"renewals/internal/transfer/service"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/httputil"
	"renewals/pkg/requestcontext"
)

// Service is the transfer use-case surface the handler drives.
type Service interface {
	Create(ctx context.Context, actor domain.Actor, cmd service.CreateCommand) (*models.Transfer, error)
	Approve(ctx context.Context, actor domain.Actor, id domain.TransferID, remarks string) (*models.Transfer, error)
	Resync(ctx context.Context, actor domain.Actor, id domain.TransferID) (*models.Transfer, error)
	Get(ctx context.Context, actor domain.Actor, id domain.TransferID) (*models.Transfer, error)
	List(ctx context.Context, actor domain.Actor) ([]*models.Transfer, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts transfer routes. The router is expected to sit behind the
// auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transfers", h.HandleCreate)
	r.Get("/transfers", h.HandleList)
	r.Get("/transfers/{id}", h.HandleGet)
	r.Put("/transfers/{id}/approve", h.HandleApprove)
	r.Post("/transfers/{id}/resync", h.HandleResync)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateTransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.Create(ctx, actor, service.CreateCommand{
		DomainID: domain.DomainID(req.DomainID),
		FromID:   domain.EmployeeID(req.FromID),
		ToID:     domain.EmployeeID(req.ToID),
		Reason:   req.Reason,
		Proof:    req.proof,
	})
	if err != nil {
		h.fail(ctx, w, "create transfer failed", err, "domain_id", int64(req.DomainID))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveTransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	t, err := h.service.Approve(ctx, actor, id, req.Remarks)
	if err != nil {
		h.fail(ctx, w, "approve transfer failed", err, "transfer_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(t))
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

	t, err := h.service.Resync(ctx, actor, id)
	if err != nil {
		h.fail(ctx, w, "resync transfer failed", err, "transfer_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toResponse(t))
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

	t, err := h.service.Get(ctx, actor, id)
	if err != nil {
		h.fail(ctx, w, "get transfer failed", err, "transfer_id", id.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	ts, err := h.service.List(ctx, actor)
	if err != nil {
		h.fail(ctx, w, "list transfers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(ts))
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

func parseID(w http.ResponseWriter, r *http.Request) (domain.TransferID, bool) {
	id, err := domain.ParseTransferID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}
