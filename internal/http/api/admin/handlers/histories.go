package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// HistoryHandler exposes the erasure audit trail.
type HistoryHandler struct {
	store *store.GormStore
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(s *store.GormStore) *HistoryHandler {
	return &HistoryHandler{store: s}
}

// List returns histories filtered by userId and gameId.
func (h *HistoryHandler) List(c *gin.Context) {
	gameID, ok := parseOptionalUint(c, "gameId")
	if !ok {
		return
	}
	limit, ok := parseOptionalUint(c, "limit")
	if !ok {
		return
	}
	rows, err := h.store.ListHistories(c.Request.Context(), store.HistoryFilter{
		UserID: strings.TrimSpace(c.Query("userId")),
		GameID: gameID,
		Limit:  int(limit),
	})
	if err != nil {
		respondStoreError(c, err, "list histories")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, historyRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"histories": out})
}

// Get returns a single history row.
func (h *HistoryHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, err := h.store.GetHistory(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err, "get history")
		return
	}
	c.JSON(http.StatusOK, historyRow(row))
}

// Rules returns the rules applied by a history row. Deleted rules appear with only their id.
func (h *HistoryHandler) Rules(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetHistory(ctx, id); err != nil {
		respondStoreError(c, err, "get history")
		return
	}
	applied, err := h.store.GetHistoryRules(ctx, id)
	if err != nil {
		respondStoreError(c, err, "get history rules")
		return
	}
	out := make([]gin.H, 0, len(applied))
	for _, item := range applied {
		if item.Rule == nil {
			out = append(out, gin.H{"id": item.RuleID, "deleted": true})
			continue
		}
		out = append(out, ruleRow(item.Rule))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func historyRow(row *models.History) gin.H {
	ruleIDs := make([]uint64, 0, len(row.Rules))
	for _, link := range row.Rules {
		ruleIDs = append(ruleIDs, link.RuleID)
	}
	out := gin.H{
		"id":           row.ID,
		"invocationId": row.InvocationID,
		"userId":       row.UserID,
		"gameId":       row.GameID,
		"ruleIds":      ruleIDs,
		"createdAt":    row.CreatedAt.UTC().Format(time.RFC3339),
	}
	if row.Game != nil {
		out["gameLabel"] = row.Game.Label
	}
	return out
}
