// Package logging configures logrus for the service and attaches it to the
// disbursement lifecycle and the HTTP router.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	rewards "github.com/questlabs/rewards-go"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// New builds a logger. format is "json" or "text"; level is any logrus level name.
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	return logger, nil
}

// Instrument logs the outcome of every claim handled by d.
func Instrument(d *rewards.Disburser, logger logrus.FieldLogger) {
	d.OnAfterDisburse(func(c rewards.DisburseResultContext) error {
		logger.WithFields(logrus.Fields{
			"recipient":   c.Result.Recipient,
			"task_id":     c.Claim.TaskID,
			"welcome":     c.Claim.IsWelcomeBonus,
			"outcome":     c.Result.Outcome,
			"tx_hash":     c.Result.TxHash,
			"duration_ms": c.Duration.Milliseconds(),
		}).Info("claim disbursed")
		return nil
	})

	d.OnDisburseFailure(func(c rewards.DisburseFailureContext) error {
		entry := logger.WithFields(logrus.Fields{
			"address":     c.Claim.Address,
			"task_id":     c.Claim.TaskID,
			"code":        c.Error.Code,
			"stage":       c.Error.Stage,
			"duration_ms": c.Duration.Milliseconds(),
		})
		if c.Error.TxHash != "" {
			entry = entry.WithField("tx_hash", c.Error.TxHash)
		}
		if c.Error.Err != nil {
			entry = entry.WithError(c.Error.Err)
		}
		if c.Error.HTTPStatus() >= 500 {
			entry.Error(c.Error.Message)
		} else {
			entry.Warn(c.Error.Message)
		}
		return nil
	})

	d.OnConfirmation(func(c rewards.ConfirmationContext) {
		entry := logger.WithField("tx_hash", c.TxHash)
		if c.Error != nil {
			entry.WithField("code", c.Error.Code).Error("background confirmation failed")
			return
		}
		entry.WithField("outcome", c.Outcome).Info("background confirmation finished")
	})
}

// Middleware logs one line per HTTP request and propagates a request id.
func Middleware(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"client_ip":   c.ClientIP(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("request completed")
		} else {
			entry.Debug("request completed")
		}
	}
}
