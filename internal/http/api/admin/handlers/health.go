package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const healthPingTimeout = 2 * time.Second

// HealthChecker reports the state of an optional dependency such as redis.
type HealthChecker func(ctx context.Context) error

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db     *gorm.DB
	checks map[string]HealthChecker
}

// NewHealthHandler constructs a HealthHandler. Extra checks are reported by name.
func NewHealthHandler(db *gorm.DB, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, checks: checks}
}

// Healthz pings the database and every extra check. Any failure answers 503.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	status := gin.H{}
	healthy := true
	if errDB := h.pingDB(ctx); errDB != nil {
		status["database"] = errDB.Error()
		healthy = false
	} else {
		status["database"] = "ok"
	}
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if errCheck := check(ctx); errCheck != nil {
			status[name] = errCheck.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ok": healthy, "checks": status})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	if h.db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
