package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/erasure"
	log "github.com/sirupsen/logrus"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookProcessor runs the erasure pipeline for one delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte, signatureHeader string) (erasure.Report, error)
}

// WebhookHandler serves the erasure webhook.
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// DeleteRequest verifies and processes a delivery. Per-rule failures still answer 200.
func (h *WebhookHandler) DeleteRequest(c *gin.Context) {
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if len(body) > maxWebhookBodyBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload too large"})
		return
	}

	report, err := h.processor.Process(c.Request.Context(), body, c.GetHeader(erasure.SignatureHeaderName))
	switch {
	case err == nil:
	case errors.Is(err, erasure.ErrAuthenticationFailure):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	case errors.Is(err, erasure.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		log.WithError(err).WithField("invocation_id", report.InvocationID).Error("webhook: processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, reportBody(report))
}

func reportBody(report erasure.Report) gin.H {
	applied, failed := report.Counts()
	games := make([]gin.H, 0, len(report.Games))
	for _, game := range report.Games {
		rules := make([]gin.H, 0, len(game.Rules))
		for _, rule := range game.Rules {
			item := gin.H{
				"ruleId":   rule.RuleID,
				"outcome":  rule.Outcome,
				"entryKey": rule.EntryKey,
			}
			if rule.StatusCode != 0 {
				item["statusCode"] = rule.StatusCode
			}
			rules = append(rules, item)
		}
		games = append(games, gin.H{
			"externalGameId": game.ExternalGameID,
			"gameId":         game.GameID,
			"status":         game.Status,
			"rules":          rules,
		})
	}
	return gin.H{
		"success":      true,
		"invocationId": report.InvocationID,
		"eventType":    report.EventType,
		"skipped":      report.Skipped,
		"applied":      applied,
		"failed":       failed,
		"games":        games,
	}
}
