// Package gin exposes the reward Disburser over HTTP using the gin framework.
package gin

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	rewards "github.com/questlabs/rewards-go"
	"github.com/questlabs/rewards-go/ledger"
)

// Route paths
const (
	ClaimPath   = "/api/claim-reward"
	StatusPath  = "/api/claim-reward/status/:txHash"
	MetricsPath = "/metrics"
)

// DefaultClaimTimeout bounds a claim request when no timeout is configured.
const DefaultClaimTimeout = 2 * time.Minute

// MaxClaimBodyBytes caps the claim request body.
const MaxClaimBodyBytes = 64 << 10

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// RouterOptions is the options for NewRouter.
type RouterOptions struct {
	ClaimTimeout    time.Duration
	Logger          logrus.FieldLogger
	Middleware      []gin.HandlerFunc
	ClaimMiddleware []gin.HandlerFunc
	MetricsHandler  http.Handler
}

// Options is the type for the options for NewRouter.
type Options func(*RouterOptions)

// WithClaimTimeout bounds the time spent on one claim request.
func WithClaimTimeout(timeout time.Duration) Options {
	return func(options *RouterOptions) {
		options.ClaimTimeout = timeout
	}
}

// WithLogger sets the logger used for unexpected handler failures.
func WithLogger(logger logrus.FieldLogger) Options {
	return func(options *RouterOptions) {
		options.Logger = logger
	}
}

// WithMiddleware adds middleware applied to every route.
func WithMiddleware(middleware ...gin.HandlerFunc) Options {
	return func(options *RouterOptions) {
		options.Middleware = append(options.Middleware, middleware...)
	}
}

// WithClaimMiddleware adds middleware applied only to claim submission,
// such as a rate limiter.
func WithClaimMiddleware(middleware ...gin.HandlerFunc) Options {
	return func(options *RouterOptions) {
		options.ClaimMiddleware = append(options.ClaimMiddleware, middleware...)
	}
}

// WithMetricsHandler mounts a Prometheus handler at /metrics.
func WithMetricsHandler(handler http.Handler) Options {
	return func(options *RouterOptions) {
		options.MetricsHandler = handler
	}
}

// Handler serves the claim, health and status endpoints.
type Handler struct {
	disburser *rewards.Disburser
	options   *RouterOptions
}

// NewRouter builds a gin engine with all reward routes registered.
func NewRouter(d *rewards.Disburser, opts ...Options) *gin.Engine {
	options := &RouterOptions{ClaimTimeout: DefaultClaimTimeout}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(options.Middleware...)

	h := &Handler{disburser: d, options: options}
	claim := append(append([]gin.HandlerFunc{}, options.ClaimMiddleware...), h.ClaimReward)
	r.POST(ClaimPath, claim...)
	r.GET(ClaimPath, h.Health)
	r.GET(StatusPath, h.Status)
	if options.MetricsHandler != nil {
		r.GET(MetricsPath, gin.WrapH(options.MetricsHandler))
	}
	return r
}

// ClaimReward handles POST /api/claim-reward.
func (h *Handler) ClaimReward(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxClaimBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   "request body too large",
				"code":    rewards.ErrCodeValidation,
			})
			return
		}
		writeError(c, rewards.NewDisbursementError(rewards.ErrCodeValidation, rewards.StageValidating, "failed to read request body", err))
		return
	}

	claim, err := rewards.DecodeClaim(body)
	if err != nil {
		writeError(c, rewards.AsDisbursementError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.options.ClaimTimeout)
	defer cancel()

	result, err := h.disburser.Disburse(ctx, *claim)
	if err != nil {
		writeError(c, rewards.AsDisbursementError(err))
		return
	}

	if result.Outcome != rewards.OutcomeSucceeded {
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"status":      result.Outcome,
			"txHash":      result.TxHash,
			"explorerUrl": result.ExplorerURL,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"txHash":      result.TxHash,
		"blockNumber": result.BlockNumber,
		"gasUsed":     result.GasUsed,
		"amount":      result.Amount,
		"recipient":   result.Recipient,
		"contract":    result.Contract,
		"explorerUrl": result.ExplorerURL,
		"timestamp":   result.Timestamp.UTC().Format(time.RFC3339),
	})
}

// Health handles GET /api/claim-reward.
func (h *Handler) Health(c *gin.Context) {
	report, err := h.disburser.Health(c.Request.Context())
	if err != nil {
		h.options.Logger.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  rewards.AsDisbursementError(err).Message,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"blockNumber":   report.BlockNumber,
		"walletAddress": report.WalletAddress,
		"contract":      report.Contract,
		"chainId":       report.ChainID,
	})
}

// Status handles GET /api/claim-reward/status/:txHash.
func (h *Handler) Status(c *gin.Context) {
	txHash := c.Param("txHash")
	if !txHashPattern.MatchString(txHash) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid transaction hash",
			"code":    rewards.ErrCodeValidation,
		})
		return
	}

	record, err := h.disburser.Status(c.Request.Context(), txHash)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "transaction not found",
			"code":    "not_found",
		})
		return
	}
	if err != nil {
		h.options.Logger.WithError(err).WithField("tx_hash", txHash).Error("status lookup failed")
		writeError(c, rewards.NewDisbursementError(rewards.ErrCodeInternal, "", "status lookup failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"txHash":      record.TxHash,
		"status":      record.Status,
		"recipient":   record.Recipient,
		"taskId":      record.TaskID,
		"reward":      record.Reward,
		"blockNumber": record.BlockNumber,
		"gasUsed":     record.GasUsed,
		"explorerUrl": h.disburser.ExplorerURL(record.TxHash),
		"createdAt":   record.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func writeError(c *gin.Context, derr *rewards.DisbursementError) {
	body := gin.H{
		"success": false,
		"error":   derr.Message,
		"code":    derr.Code,
	}
	if derr.TxHash != "" {
		body["txHash"] = derr.TxHash
	}
	c.AbortWithStatusJSON(derr.HTTPStatus(), body)
}
