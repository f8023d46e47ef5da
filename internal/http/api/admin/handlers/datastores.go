package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// DataStoreKeyHandler manages data-store API keys.
type DataStoreKeyHandler struct {
	store *store.GormStore
}

// NewDataStoreKeyHandler constructs a DataStoreKeyHandler.
func NewDataStoreKeyHandler(s *store.GormStore) *DataStoreKeyHandler {
	return &DataStoreKeyHandler{store: s}
}

// createDataStoreKeyRequest captures the payload for creating an API key.
type createDataStoreKeyRequest struct {
	Label  string `json:"label"`
	APIKey string `json:"apiKey"`
}

// List returns every API key with its secret masked.
func (h *DataStoreKeyHandler) List(c *gin.Context) {
	rows, err := h.store.ListAPIKeys(c.Request.Context())
	if err != nil {
		respondStoreError(c, err, "list api keys")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, dataStoreKeyRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"datastores": out})
}

// Create validates and inserts an API key.
func (h *DataStoreKeyHandler) Create(c *gin.Context) {
	var body createDataStoreKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, err := h.store.CreateAPIKey(c.Request.Context(), body.Label, body.APIKey)
	if err != nil {
		respondStoreError(c, err, "create api key")
		return
	}
	c.JSON(http.StatusCreated, dataStoreKeyRow(row))
}

// Delete removes an API key; 409 while games reference it.
func (h *DataStoreKeyHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteAPIKey(c.Request.Context(), id); err != nil {
		respondStoreError(c, err, "delete api key")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func dataStoreKeyRow(row *models.DataStoreAPIKey) gin.H {
	gameIDs := make([]uint64, 0, len(row.Games))
	for _, game := range row.Games {
		gameIDs = append(gameIDs, game.ID)
	}
	return gin.H{
		"id":        row.ID,
		"label":     row.Label,
		"apiKey":    maskSecret(row.APIKey),
		"gameIds":   gameIDs,
		"createdAt": row.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": row.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
