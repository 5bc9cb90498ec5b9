package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"rentgate/internal/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/httputil"
	"rentgate/pkg/requestcontext"
)

// Service defines the escrow operations the HTTP layer exposes.
type Service interface {
	StartLease(ctx context.Context, caller common.Address, policyID domain.PolicyID, value *big.Int) (domain.Lease, error)
	OwnerConfirm(ctx context.Context, caller common.Address, policyID domain.PolicyID, tenant common.Address) error
	TimeoutRefund(ctx context.Context, caller common.Address, policyID domain.PolicyID) error
	GetLease(ctx context.Context, policyID domain.PolicyID, tenant common.Address) (domain.Lease, error)
	IsLeaseActive(ctx context.Context, policyID domain.PolicyID, tenant common.Address) bool
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/leases", h.handleStart)
	r.Post("/leases/confirm", h.handleConfirm)
	r.Post("/leases/refund", h.handleRefund)
	r.Get("/leases/{policyID}/{tenant}", h.handleGet)
}

type startRequest struct {
	PolicyID uint64 `json:"policy_id"`
	Value    string `json:"value"`
}

type confirmRequest struct {
	PolicyID uint64 `json:"policy_id"`
	Tenant   string `json:"tenant"`
}

type refundRequest struct {
	PolicyID uint64 `json:"policy_id"`
}

type leaseResponse struct {
	PolicyID domain.PolicyID `json:"policy_id"`
	Tenant   string          `json:"tenant"`
	Amount   string          `json:"amount"`
	Deadline uint64          `json:"deadline"`
	Status   string          `json:"status"`
	Active   bool            `json:"active"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[startRequest](w, r)
	if !ok {
		return
	}
	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "value must be a base-10 integer"))
		return
	}

	lease, err := h.service.StartLease(ctx, caller, domain.PolicyID(req.PolicyID), value)
	if err != nil {
		h.logger.WarnContext(ctx, "start lease rejected",
			"request_id", requestcontext.RequestID(ctx),
			"tenant", caller.Hex(),
			"policy_id", req.PolicyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(lease))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[confirmRequest](w, r)
	if !ok {
		return
	}
	if !common.IsHexAddress(req.Tenant) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant must be a hex address"))
		return
	}

	err := h.service.OwnerConfirm(ctx, caller, domain.PolicyID(req.PolicyID), common.HexToAddress(req.Tenant))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": string(domain.LeaseStatusReleased)})
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[refundRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.TimeoutRefund(ctx, caller, domain.PolicyID(req.PolicyID)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": string(domain.LeaseStatusRefunded)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "policyID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "policy id must be an integer"))
		return
	}
	tenant := chi.URLParam(r, "tenant")
	if !common.IsHexAddress(tenant) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant must be a hex address"))
		return
	}

	lease, err := h.service.GetLease(r.Context(), domain.PolicyID(id), common.HexToAddress(tenant))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(lease))
}

func toResponse(l domain.Lease) leaseResponse {
	return leaseResponse{
		PolicyID: l.PolicyID,
		Tenant:   l.Tenant.Hex(),
		Amount:   l.Amount.String(),
		Deadline: l.Deadline,
		Status:   string(l.Status),
		Active:   l.Active(),
	}
}
