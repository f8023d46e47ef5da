package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// GeneralSettingsHandler manages the webhook secret.
type GeneralSettingsHandler struct {
	store *store.GormStore
}

// NewGeneralSettingsHandler constructs a GeneralSettingsHandler.
func NewGeneralSettingsHandler(s *store.GormStore) *GeneralSettingsHandler {
	return &GeneralSettingsHandler{store: s}
}

type updateGeneralSettingsRequest struct {
	WebhookAuthKey *string `json:"webhookAuthKey"`
}

// Get returns the settings row, creating an empty one on first access.
func (h *GeneralSettingsHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	row, err := h.store.GetGlobalSettings(ctx)
	if err != nil {
		respondStoreError(c, err, "get settings")
		return
	}
	if row == nil {
		if row, err = h.store.UpdateGlobalSettings(ctx, ""); err != nil {
			respondStoreError(c, err, "create settings")
			return
		}
	}
	c.JSON(http.StatusOK, generalSettingsRow(row))
}

// Update sets the webhook secret.
func (h *GeneralSettingsHandler) Update(c *gin.Context) {
	var body updateGeneralSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.WebhookAuthKey == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhookAuthKey is required"})
		return
	}
	row, err := h.store.UpdateGlobalSettings(c.Request.Context(), *body.WebhookAuthKey)
	if err != nil {
		respondStoreError(c, err, "update settings")
		return
	}
	c.JSON(http.StatusOK, generalSettingsRow(row))
}

// Clear removes the webhook secret, disabling signature checks.
func (h *GeneralSettingsHandler) Clear(c *gin.Context) {
	row, err := h.store.UpdateGlobalSettings(c.Request.Context(), "")
	if err != nil {
		respondStoreError(c, err, "clear settings")
		return
	}
	c.JSON(http.StatusOK, generalSettingsRow(row))
}

func generalSettingsRow(row *models.GlobalSettings) gin.H {
	return gin.H{
		"id":             row.ID,
		"webhookAuthKey": maskSecret(row.WebhookAuthKey),
		"authEnabled":    row.WebhookAuthKey != "",
		"updatedAt":      row.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
