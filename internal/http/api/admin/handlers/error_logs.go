package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

const (
	defaultErrorLogLimit = 100
	maxErrorLogLimit     = 1000
)

// ErrorLogHandler exposes the diagnostic trail.
type ErrorLogHandler struct {
	store *store.GormStore
}

// NewErrorLogHandler constructs an ErrorLogHandler.
func NewErrorLogHandler(s *store.GormStore) *ErrorLogHandler {
	return &ErrorLogHandler{store: s}
}

// List returns the newest diagnostics, optionally filtered by gameId, invocationId and kind.
func (h *ErrorLogHandler) List(c *gin.Context) {
	gameID, ok := parseOptionalUint(c, "gameId")
	if !ok {
		return
	}
	limit, ok := parseOptionalUint(c, "limit")
	if !ok {
		return
	}
	switch {
	case limit == 0:
		limit = defaultErrorLogLimit
	case limit > maxErrorLogLimit:
		limit = maxErrorLogLimit
	}
	rows, err := h.store.ListErrorLogs(c.Request.Context(), store.ErrorLogFilter{
		GameID:       gameID,
		InvocationID: strings.TrimSpace(c.Query("invocationId")),
		Kind:         strings.TrimSpace(c.Query("kind")),
		Limit:        int(limit),
	})
	if err != nil {
		respondStoreError(c, err, "list error logs")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		item := gin.H{
			"id":             row.ID,
			"gameId":         row.GameID,
			"externalGameId": row.ExternalGameID,
			"invocationId":   row.InvocationID,
			"kind":           row.Kind,
			"error":          row.Error,
			"timestamp":      row.Timestamp.UTC().Format(time.RFC3339),
		}
		if len(row.Context) > 0 {
			item["context"] = json.RawMessage(row.Context)
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"errors": out})
}
