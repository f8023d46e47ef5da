// Package admin registers the admin JSON API.
package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/http/api/admin/handlers"
	"github.com/router-for-me/ErasureRelay/internal/store"
)

// RegisterAdminRoutes mounts the admin API under /v0/admin behind gate.
func RegisterAdminRoutes(r *gin.Engine, s *store.GormStore, gate *Gate) {
	if r == nil || s == nil || gate == nil {
		return
	}

	admin := r.Group("/v0/admin")
	admin.Use(gate.Middleware())

	keyHandler := handlers.NewDataStoreKeyHandler(s)
	admin.GET("/setting/datastore", keyHandler.List)
	admin.POST("/setting/datastore", keyHandler.Create)
	admin.DELETE("/setting/datastore/:id", keyHandler.Delete)

	gameHandler := handlers.NewGameHandler(s)
	admin.GET("/setting/game", gameHandler.List)
	admin.POST("/setting/game", gameHandler.Create)
	admin.DELETE("/setting/game/:id", gameHandler.Delete)

	ruleHandler := handlers.NewRuleHandler(s)
	admin.GET("/setting/rule", ruleHandler.List)
	admin.POST("/setting/rule", ruleHandler.Create)
	admin.DELETE("/setting/rule/:id", ruleHandler.Delete)

	generalHandler := handlers.NewGeneralSettingsHandler(s)
	admin.GET("/setting/general", generalHandler.Get)
	admin.POST("/setting/general", generalHandler.Update)
	admin.DELETE("/setting/general", generalHandler.Clear)

	runtimeHandler := handlers.NewRuntimeSettingsHandler(s.DB())
	admin.GET("/setting/runtime/:key", runtimeHandler.Get)
	admin.PUT("/setting/runtime/:key", runtimeHandler.Put)

	historyHandler := handlers.NewHistoryHandler(s)
	admin.GET("/history", historyHandler.List)
	admin.GET("/history/:id", historyHandler.Get)
	admin.GET("/history/:id/rules", historyHandler.Rules)

	errorLogHandler := handlers.NewErrorLogHandler(s)
	admin.GET("/errors", errorLogHandler.List)
}
