package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/erasure"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// RuleHandler manages deletion rules.
type RuleHandler struct {
	store *store.GormStore
}

// NewRuleHandler constructs a RuleHandler.
func NewRuleHandler(s *store.GormStore) *RuleHandler {
	return &RuleHandler{store: s}
}

// createRuleRequest captures the payload for creating a rule.
type createRuleRequest struct {
	GameID        uint64 `json:"gameId"`
	Label         string `json:"label"`
	DatastoreName string `json:"datastoreName"`
	DatastoreType string `json:"datastoreType"`
	KeyPattern    string `json:"keyPattern"`
	Scope         string `json:"scope"`
}

// List returns rules, optionally filtered by gameId.
func (h *RuleHandler) List(c *gin.Context) {
	gameID, ok := parseOptionalUint(c, "gameId")
	if !ok {
		return
	}
	rows, err := h.store.GetRules(c.Request.Context(), gameID)
	if err != nil {
		respondStoreError(c, err, "list rules")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, ruleRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// Create validates and inserts a rule. Missing fields are listed in the 400 body.
func (h *RuleHandler) Create(c *gin.Context) {
	var body createRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	in := store.RuleInput{
		GameID:        body.GameID,
		Label:         body.Label,
		DatastoreName: body.DatastoreName,
		DatastoreType: models.DatastoreType(body.DatastoreType),
		KeyPattern:    body.KeyPattern,
		Scope:         body.Scope,
	}
	if missing := in.MissingFields(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields", "missing": missing})
		return
	}
	templates := []struct{ field, value string }{
		{field: "datastoreName", value: in.DatastoreName},
		{field: "keyPattern", value: in.KeyPattern},
	}
	for _, tpl := range templates {
		if errTemplate := erasure.ValidateTemplate(tpl.value); errTemplate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template", "field": tpl.field, "detail": errTemplate.Error()})
			return
		}
	}
	row, err := h.store.CreateRule(c.Request.Context(), in)
	if err != nil {
		respondStoreError(c, err, "create rule")
		return
	}
	c.JSON(http.StatusCreated, ruleRow(row))
}

// Delete removes a rule.
func (h *RuleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteRule(c.Request.Context(), id); err != nil {
		respondStoreError(c, err, "delete rule")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func ruleRow(row *models.Rule) gin.H {
	out := gin.H{
		"id":            row.ID,
		"gameId":        row.GameID,
		"label":         row.Label,
		"datastoreName": row.DatastoreName,
		"datastoreType": row.DatastoreType,
		"keyPattern":    row.KeyPattern,
		"scope":         row.EffectiveScope(),
		"createdAt":     row.CreatedAt.UTC().Format(time.RFC3339),
	}
	if row.Game != nil {
		out["gameLabel"] = row.Game.Label
	}
	return out
}
