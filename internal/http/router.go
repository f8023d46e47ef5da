// Package http wires the gin engine: webhook ingress, health, metrics and the admin API.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/http/api/admin"
	"github.com/router-for-me/ErasureRelay/internal/http/api/admin/handlers"
	"github.com/router-for-me/ErasureRelay/internal/metrics"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// WebhookPath is the erasure webhook route.
const WebhookPath = "/webhook/delete-request"

// RouterDeps lists what NewRouter needs. AdminGate may be nil to leave the admin API off.
type RouterDeps struct {
	Store        *store.GormStore
	Processor    WebhookProcessor
	Metrics      *metrics.Metrics
	AdminGate    *admin.Gate
	HealthChecks map[string]handlers.HealthChecker
}

// NewRouter builds the gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogMiddleware(deps.Metrics))

	engine.GET("/healthz", handlers.NewHealthHandler(deps.Store.DB(), deps.HealthChecks).Healthz)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.Processor != nil {
		engine.POST(WebhookPath, NewWebhookHandler(deps.Processor).DeleteRequest)
	}
	admin.RegisterAdminRoutes(engine, deps.Store, deps.AdminGate)
	return engine
}
