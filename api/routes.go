package api

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/config"
	sandhttp "github.com/jdamiba/sandstone-project/http"
	"github.com/jdamiba/sandstone-project/version"
)

// SetupRoutes mounts the full HTTP surface on the server. The websocket
// route lives inside the protected group; browsers cannot set headers
// on the upgrade request so the token is also accepted as a query
// parameter there.
func SetupRoutes(e *echo.Echo, h *Handlers, cfg *config.Config) {
	e.GET("/health", sandhttp.HealthCheckHandlerWithDetails(cfg.Service.Name, cfg.Service.Version, func() map[string]interface{} {
		return map[string]interface{}{
			"build": version.Get(),
			"rooms": h.Realtime.RoomCount(),
		}
	}))

	if cfg.Security.AllowTokenMint {
		e.POST("/auth/token", h.GenerateToken)
	}

	jwtConfig := echojwt.Config{
		SigningKey:  h.JWT.Secret(),
		TokenLookup: "header:Authorization:Bearer ,query:token",
		ErrorHandler: func(c echo.Context, err error) error {
			return common.Unauthorized("invalid or missing token")
		},
	}

	protected := e.Group("/api")
	protected.Use(echojwt.WithConfig(jwtConfig))

	protected.POST("/documents", h.CreateDocument)
	protected.GET("/documents", h.ListDocuments)
	protected.GET("/documents/:id", h.GetDocument)
	protected.PUT("/documents/:id", h.UpdateDocument)
	protected.DELETE("/documents/:id", h.DeleteDocument)
	protected.POST("/documents/:id/changes", h.ApplyChanges)

	protected.GET("/documents/:id/collaborators", h.ListCollaborators)
	protected.POST("/documents/:id/collaborators", h.AddCollaborator)
	protected.DELETE("/documents/:id/collaborators/:userID", h.RemoveCollaborator)

	protected.GET("/search", h.SearchDocuments)

	ws := e.Group("/ws")
	ws.Use(echojwt.WithConfig(jwtConfig))
	ws.GET("", h.ServeWS)
}
