package handlers

import "github.com/gofiber/fiber/v2"

// Handlers groups every handler registered on the API
type Handlers struct {
	Character    *CharacterHandler
	RecentSearch *RecentSearchHandler
	Metrics      *MetricsHandler
	Health       *HealthHandler
	Admin        *AdminHandler
}

// RegisterRoutes mounts the API on app. Admin routes are skipped when Admin is nil.
func RegisterRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)

	api := app.Group("/api/v1", SessionMiddleware())

	// Character Routes
	api.Get("/characters/:name", h.Character.GetCharacter)
	api.Get("/state", h.Character.GetState)
	api.Get("/state/stream", h.Character.StreamState)

	// Recent Search Routes
	api.Get("/recent-searches", h.RecentSearch.GetRecentSearches)
	api.Post("/recent-searches/:id/replay", h.RecentSearch.ReplayRecentSearch)
	api.Delete("/recent-searches", h.RecentSearch.ClearRecentSearches)

	api.Get("/metrics", h.Metrics.GetMetrics)

	if h.Admin != nil {
		// TODO: Add auth middleware
		admin := api.Group("/admin")
		admin.Post("/cache/purge", h.Admin.TriggerCachePurge)
		admin.Post("/connectivity/probe", h.Admin.TriggerConnectivityProbe)
		admin.Post("/sessions/reap", h.Admin.TriggerSessionReap)
		admin.Delete("/metrics", h.Admin.ResetMetrics)
	}
}
