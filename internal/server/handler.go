// Package server exposes the gateway over HTTP. Mutating routes require
// wallet-signature auth; the recovered address is the caller the gateway
// checks maker/taker preconditions against.
package server

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokenforge/deploy-gateway/internal/claim"
	"github.com/tokenforge/deploy-gateway/internal/gateway"
	"github.com/tokenforge/deploy-gateway/internal/httpauth"
	"github.com/tokenforge/deploy-gateway/internal/sig"
)

type Handler struct {
	gw  *gateway.Controller
	log *zap.Logger
}

func NewHandler(gw *gateway.Controller, log *zap.Logger) *Handler {
	return &Handler{gw: gw, log: log}
}

// Register mounts all routes. authMiddleware guards the mutating routes;
// digest/verify/state are open read-only queries.
func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	open := r.Group("/api")
	open.POST("/claims/digest", h.handleDigest)
	open.POST("/claims/verify", h.handleVerify)
	open.GET("/claims/:digest", h.handleState)

	authed := r.Group("/api", authMiddleware)
	authed.POST("/claims/perform", h.handlePerform(false))
	authed.POST("/claims/perform-any", h.handlePerform(true))
	authed.POST("/claims/cancel", h.handleCancel)
}

// ── mutating routes ───────────────────────────────────────────────────────────

type performRequest struct {
	Claim     claim.DeployClaim `json:"claim"`
	Signature sig.Envelope      `json:"signature"`
}

func (h *Handler) handlePerform(anyTaker bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req performRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		caller := httpauth.Caller(c)

		var (
			token common.Address
			err   error
		)
		if anyTaker {
			token, err = h.gw.PerformAnyTaker(c.Request.Context(), caller, &req.Claim, req.Signature)
		} else {
			token, err = h.gw.Perform(c.Request.Context(), caller, &req.Claim, req.Signature)
		}
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":  token.Hex(),
			"digest": h.gw.DigestOf(&req.Claim).Hex(),
		})
	}
}

type cancelRequest struct {
	Claim claim.DeployClaim `json:"claim"`
}

func (h *Handler) handleCancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	digest, err := h.gw.Cancel(c.Request.Context(), httpauth.Caller(c), &req.Claim)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"digest": digest.Hex()})
}

// ── read-only queries ─────────────────────────────────────────────────────────

func (h *Handler) handleDigest(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"digest": h.gw.DigestOf(&req.Claim).Hex()})
}

type verifyRequest struct {
	Signer    common.Address `json:"signer"`
	Digest    common.Hash    `json:"digest"`
	Signature sig.Envelope   `json:"signature"`
}

func (h *Handler) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	valid, err := h.gw.VerifySignature(req.Signer, req.Digest, req.Signature)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (h *Handler) handleState(c *gin.Context) {
	raw := c.Param("digest")
	if !(len(raw) == 66 && raw[:2] == "0x") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "digest must be 0x-prefixed 32-byte hex"})
		return
	}
	digest := common.HexToHash(raw)

	st, err := h.gw.ClaimState(c.Request.Context(), digest)
	if err != nil {
		h.writeError(c, err)
		return
	}
	cancelled, _ := h.gw.IsCancelled(c.Request.Context(), digest)
	performed, _ := h.gw.IsPerformed(c.Request.Context(), digest)

	c.JSON(http.StatusOK, gin.H{
		"digest":    digest.Hex(),
		"state":     st.String(),
		"cancelled": cancelled,
		"performed": performed,
	})
}

// ── error mapping ─────────────────────────────────────────────────────────────

// writeError maps gateway errors onto HTTP statuses: identity mismatches →
// 403, claim-construction defects → 400, terminal-state conflicts → 409.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrTakerMismatch), errors.Is(err, gateway.ErrMakerMismatch):
		status = http.StatusForbidden
	case errors.Is(err, gateway.ErrClaimExpired),
		errors.Is(err, gateway.ErrInvalidSignature),
		errors.Is(err, gateway.ErrInvalidSignatureKind):
		status = http.StatusBadRequest
	case errors.Is(err, gateway.ErrDeployCancelled), errors.Is(err, gateway.ErrDeployAlreadyPerformed):
		status = http.StatusConflict
	default:
		h.log.Error("gateway operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
