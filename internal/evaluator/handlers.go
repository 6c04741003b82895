package evaluator

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// Handler exposes the transaction validation endpoint.
type Handler struct {
	runner *Runner
	assets *asset.Registry
}

// NewHandler creates an evaluator HTTP handler.
func NewHandler(runner *Runner, assets *asset.Registry) *Handler {
	return &Handler{runner: runner, assets: assets}
}

// RegisterRoutes sets up the validation endpoint.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions/validate", h.Validate)
}

// ValidateRequest is the validation request body. Recipient and amount are
// deliberately unvalidated here: a missing or garbled value is an
// evaluation result, not a malformed request.
type ValidateRequest struct {
	WalletID string `json:"walletId" binding:"required"`
	Chain    string `json:"chain" binding:"required"`
	Network  string `json:"network"`
	From     string `json:"from" binding:"required"`
	To       string `json:"to"`
	Asset    string `json:"asset" binding:"required"`
	Amount   string `json:"amount"`
}

// Validate handles POST /v1/transactions/validate.
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "walletId, chain, from, and asset are required",
		})
		return
	}

	chain := chainaddr.ChainKind(strings.ToLower(strings.TrimSpace(req.Chain)))
	a, ok := h.assets.Resolve(chain, req.Asset)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unknown_asset",
			"message": "asset is not supported on this chain",
		})
		return
	}

	verdict := h.runner.Evaluate(c.Request.Context(), Request{
		WalletID: req.WalletID,
		Chain:    chain,
		Network:  req.Network,
		From:     req.From,
		To:       req.To,
		Asset:    a,
		Amount:   req.Amount,
	})
	c.JSON(http.StatusOK, verdict)
}
