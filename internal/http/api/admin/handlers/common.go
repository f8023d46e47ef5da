package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/store"
	log "github.com/sirupsen/logrus"
)

// parseIDParam reads a positive numeric path parameter, answering 400 when it is invalid.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errID := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errID != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// parseOptionalUint reads an optional numeric query parameter.
func parseOptionalUint(c *gin.Context, name string) (uint64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	value, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return value, true
}

// respondStoreError maps store errors onto HTTP statuses.
func respondStoreError(c *gin.Context, err error, action string) {
	var dangling *store.DanglingRuleReferenceError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &dangling):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "missing": dangling.Missing})
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Errorf("admin: %s", action)
		c.JSON(http.StatusInternalServerError, gin.H{"error": action + " failed"})
	}
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
