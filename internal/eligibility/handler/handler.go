package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"rentgate/internal/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/httputil"
	"rentgate/pkg/requestcontext"
)

// Service defines the gate operations the HTTP layer exposes.
type Service interface {
	SubmitProof(ctx context.Context, caller common.Address, policyID domain.PolicyID, claim domain.ProofClaim) error
	SubmitAttestation(ctx context.Context, caller common.Address, claim domain.AttestationClaim, sig []byte) error
	IsEligible(ctx context.Context, tenant common.Address, policyID domain.PolicyID) bool
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/eligibility/proof", h.handleSubmitProof)
	r.Post("/eligibility/attestation", h.handleSubmitAttestation)
	r.Get("/eligibility/{policyID}/{wallet}", h.handleIsEligible)
}

type proofRequest struct {
	PolicyID     uint64   `json:"policy_id"`
	Proof        string   `json:"proof"` // base64
	PublicInputs []string `json:"public_inputs"`
}

type attestationRequest struct {
	Wallet      string `json:"wallet"`
	PolicyID    uint64 `json:"policy_id"`
	Expiry      uint64 `json:"expiry"`
	Nullifier   string `json:"nullifier"` // 0x-prefixed 32 bytes
	PassBitmask uint8  `json:"pass_bitmask"`
	Signature   string `json:"signature"` // 0x-prefixed 65 bytes
}

func (h *Handler) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[proofRequest](w, r)
	if !ok {
		return
	}

	proof, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "proof must be base64"))
		return
	}
	inputs := make([]*big.Int, 0, len(req.PublicInputs))
	for _, raw := range req.PublicInputs {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "public inputs must be base-10 integers"))
			return
		}
		inputs = append(inputs, v)
	}

	claim := domain.ProofClaim{Proof: proof, PublicInputs: inputs}
	if err := h.service.SubmitProof(ctx, caller, domain.PolicyID(req.PolicyID), claim); err != nil {
		h.logger.WarnContext(ctx, "proof submission rejected",
			"request_id", requestcontext.RequestID(ctx),
			"caller", caller.Hex(),
			"policy_id", req.PolicyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"eligible": true})
}

func (h *Handler) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[attestationRequest](w, r)
	if !ok {
		return
	}
	if !common.IsHexAddress(req.Wallet) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "wallet must be a hex address"))
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "signature must be 0x-prefixed hex"))
		return
	}

	claim := domain.AttestationClaim{
		Wallet:      common.HexToAddress(req.Wallet),
		PolicyID:    domain.PolicyID(req.PolicyID),
		Expiry:      req.Expiry,
		Nullifier:   common.HexToHash(req.Nullifier),
		PassBitmask: req.PassBitmask,
	}
	if err := h.service.SubmitAttestation(ctx, caller, claim, sig); err != nil {
		h.logger.WarnContext(ctx, "attestation submission rejected",
			"request_id", requestcontext.RequestID(ctx),
			"caller", caller.Hex(),
			"policy_id", req.PolicyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"eligible": true})
}

func (h *Handler) handleIsEligible(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "policyID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "policy id must be an integer"))
		return
	}
	wallet := chi.URLParam(r, "wallet")
	if !common.IsHexAddress(wallet) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "wallet must be a hex address"))
		return
	}
	eligible := h.service.IsEligible(r.Context(), common.HexToAddress(wallet), domain.PolicyID(id))
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}
