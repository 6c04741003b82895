package reputation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/metrics"
	"github.com/ayushns01/walletrix/internal/validation"
)

// reporterHeader carries the reporter identity set by the auth layer in
// front of this service.
const reporterHeader = "X-Reporter-ID"

// Handler exposes the reputation read and report endpoints.
type Handler struct {
	ingestor *Ingestor
	store    Store
}

// NewHandler creates a reputation HTTP handler.
func NewHandler(ingestor *Ingestor, store Store) *Handler {
	return &Handler{ingestor: ingestor, store: store}
}

// RegisterRoutes sets up reputation endpoints. reportMW middleware (rate
// limiting, typically) applies to the report submission route only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, reportMW ...gin.HandlerFunc) {
	r.POST("/reputation/report", append(reportMW, h.Report)...)
	r.GET("/reputation/scam-list", h.ScamList)
	r.GET("/reputation/:address", h.Get)
}

// ReportRequest is the report submission body.
type ReportRequest struct {
	Address        string `json:"address" binding:"required"`
	Chain          string `json:"chain"`
	Network        string `json:"network"`
	Classification string `json:"classification"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
}

// Report handles POST /v1/reputation/report.
func (h *Handler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body must contain an 'address' field",
		})
		return
	}

	reporter := c.GetHeader(reporterHeader)
	if reporter == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "missing_reporter",
			"message": "reporter identity header is required",
		})
		return
	}

	chain := chainaddr.ChainKind(req.Chain)
	if req.Chain == "" {
		chain = chainaddr.ChainEVM
	}
	description := validation.SanitizeString(req.Description, validation.MaxDescriptionLength)

	var (
		receipt *Receipt
		err     error
	)
	if req.Classification == string(ClassificationSuspicious) {
		receipt, err = h.ingestor.ReportSuspicious(c.Request.Context(), req.Address, chain, req.Network, description, reporter)
	} else {
		receipt, err = h.ingestor.ReportScam(c.Request.Context(), req.Address, chain, req.Network, ParseSeverity(req.Severity), description, reporter)
	}
	if err != nil {
		switch {
		case errors.Is(err, chainaddr.ErrEmptyAddress),
			errors.Is(err, chainaddr.ErrMalformed),
			errors.Is(err, chainaddr.ErrWrongChain),
			errors.Is(err, chainaddr.ErrUnknownChain):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": err.Error(),
			})
		case errors.Is(err, ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "store_unavailable",
				"message": "reputation store is temporarily unavailable",
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "report_rejected",
				"message": err.Error(),
			})
		}
		return
	}

	result := "accepted"
	if receipt.Duplicate {
		result = "duplicate"
	}
	metrics.ReputationReportsTotal.WithLabelValues(string(receipt.Classification), result).Inc()
	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

// ScamList handles GET /v1/reputation/scam-list?limit=.
func (h *Handler) ScamList(c *gin.Context) {
	limit := DefaultListCap
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.ingestor.ListScam(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "reputation store is temporarily unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// Get handles GET /v1/reputation/:address. The wallet UI reads this before
// rendering a send screen.
func (h *Handler) Get(c *gin.Context) {
	raw := c.Param("address")
	chain := chainaddr.ChainKind(c.DefaultQuery("chain", string(chainaddr.ChainEVM)))
	network := c.DefaultQuery("network", "mainnet")

	addr, err := chainaddr.Classify(raw, chain, network)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": err.Error(),
		})
		return
	}

	rec, err := h.store.Lookup(c.Request.Context(), addr)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "reputation store is temporarily unavailable",
		})
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{
			"address":        addr,
			"classification": "clean",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}
