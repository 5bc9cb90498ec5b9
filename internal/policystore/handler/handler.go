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

// Service defines the policy operations the HTTP layer exposes.
type Service interface {
	CreatePolicy(ctx context.Context, owner common.Address, terms domain.PolicyTerms) (domain.PolicyID, error)
	GetPolicy(ctx context.Context, id domain.PolicyID) (domain.Policy, error)
	IsOwner(ctx context.Context, id domain.PolicyID, who common.Address) bool
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/policies", h.handleCreate)
	r.Get("/policies/{policyID}", h.handleGet)
}

type createRequest struct {
	MinAge             int64  `json:"min_age"`
	IncomeMultiplier   int64  `json:"income_multiplier"`
	RentAmount         string `json:"rent_amount"`
	RequireCleanRecord bool   `json:"require_clean_record"`
	Deadline           uint64 `json:"deadline"`
}

type policyResponse struct {
	PolicyID           domain.PolicyID `json:"policy_id"`
	MinAge             int64           `json:"min_age"`
	IncomeMultiplier   int64           `json:"income_multiplier"`
	RentAmount         string          `json:"rent_amount"`
	RequireCleanRecord bool            `json:"require_clean_record"`
	Deadline           uint64          `json:"deadline"`
	Owner              string          `json:"owner"`
	ContentHash        string          `json:"content_hash"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[createRequest](w, r)
	if !ok {
		return
	}
	rent, ok := new(big.Int).SetString(req.RentAmount, 10)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "rent_amount must be a base-10 integer"))
		return
	}

	terms := domain.PolicyTerms{
		MinAge:             req.MinAge,
		IncomeMultiplier:   req.IncomeMultiplier,
		RentAmount:         rent,
		RequireCleanRecord: req.RequireCleanRecord,
		Deadline:           req.Deadline,
	}
	id, err := h.service.CreatePolicy(ctx, caller, terms)
	if err != nil {
		h.logger.ErrorContext(ctx, "create policy failed",
			"request_id", requestcontext.RequestID(ctx),
			"owner", caller.Hex(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	policy, err := h.service.GetPolicy(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(policy))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "policyID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "policy id must be an integer"))
		return
	}
	policy, err := h.service.GetPolicy(r.Context(), domain.PolicyID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(policy))
}

func toResponse(p domain.Policy) policyResponse {
	return policyResponse{
		PolicyID:           p.ID,
		MinAge:             p.Terms.MinAge,
		IncomeMultiplier:   p.Terms.IncomeMultiplier,
		RentAmount:         p.Terms.RentAmount.String(),
		RequireCleanRecord: p.Terms.RequireCleanRecord,
		Deadline:           p.Terms.Deadline,
		Owner:              p.Owner.Hex(),
		ContentHash:        p.ContentHash.Hex(),
	}
}
