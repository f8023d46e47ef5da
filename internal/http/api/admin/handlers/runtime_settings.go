package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	internalsettings "github.com/router-for-me/ErasureRelay/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RuntimeSettingsHandler reads and writes runtime tunables.
type RuntimeSettingsHandler struct {
	db *gorm.DB
}

// NewRuntimeSettingsHandler constructs a RuntimeSettingsHandler.
func NewRuntimeSettingsHandler(db *gorm.DB) *RuntimeSettingsHandler {
	return &RuntimeSettingsHandler{db: db}
}

type putRuntimeSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Get returns the current value of a runtime setting, or null when unset.
func (h *RuntimeSettingsHandler) Get(c *gin.Context) {
	key, ok := runtimeKey(c)
	if !ok {
		return
	}
	value, found := internalsettings.DBConfigValue(key)
	if !found {
		c.JSON(http.StatusOK, gin.H{"key": key, "value": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// Put stores a runtime setting. Every known key holds a non-negative integer.
func (h *RuntimeSettingsHandler) Put(c *gin.Context) {
	key, ok := runtimeKey(c)
	if !ok {
		return
	}
	var body putRuntimeSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	parsed, okParse := internalsettings.ParseInt(body.Value)
	if !okParse || parsed < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a non-negative integer"})
		return
	}
	if errPut := internalsettings.Put(c.Request.Context(), h.db, key, body.Value); errPut != nil {
		log.WithError(errPut).Error("admin: put runtime setting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update setting failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": parsed})
}

func runtimeKey(c *gin.Context) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(c.Param("key")))
	if !internalsettings.IsKnownKey(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting", "known": internalsettings.KnownKeys})
		return "", false
	}
	return key, true
}
