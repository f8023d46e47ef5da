package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// GameHandler manages configured games.
type GameHandler struct {
	store *store.GormStore
}

// NewGameHandler constructs a GameHandler.
func NewGameHandler(s *store.GormStore) *GameHandler {
	return &GameHandler{store: s}
}

// createGameRequest captures the payload for creating a game.
type createGameRequest struct {
	Label        string `json:"label"`
	UniverseID   int64  `json:"universeId"`
	StartPlaceID int64  `json:"startPlaceId"`
	APIKeyID     uint64 `json:"apiKeyId"`
}

// List returns all games, filtered by ?q= on the label when given.
func (h *GameHandler) List(c *gin.Context) {
	rows, err := h.store.SearchGames(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondStoreError(c, err, "list games")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, gameRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

// Create validates and inserts a game.
func (h *GameHandler) Create(c *gin.Context) {
	var body createGameRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, err := h.store.CreateGame(c.Request.Context(), store.GameInput{
		Label:        body.Label,
		UniverseID:   body.UniverseID,
		StartPlaceID: body.StartPlaceID,
		APIKeyID:     body.APIKeyID,
	})
	if err != nil {
		respondStoreError(c, err, "create game")
		return
	}
	c.JSON(http.StatusCreated, gameRow(row))
}

// Delete removes a game; 409 while rules reference it.
func (h *GameHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteGame(c.Request.Context(), id); err != nil {
		respondStoreError(c, err, "delete game")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func gameRow(row *models.Game) gin.H {
	out := gin.H{
		"id":           row.ID,
		"label":        row.Label,
		"universeId":   row.UniverseID,
		"startPlaceId": row.StartPlaceID,
		"apiKeyId":     row.APIKeyID,
		"createdAt":    row.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":    row.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if row.DataStoreAPIKey != nil {
		out["apiKeyLabel"] = row.DataStoreAPIKey.Label
	}
	return out
}
