package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/secatt/adapters/auth"
	"github.com/layer-3/secatt/service"
	"github.com/sirupsen/logrus"
)

// RouterOptions configures request handling
type RouterOptions struct {
	// BindLocation derives location fingerprints from the client network
	BindLocation bool
}

// SetupRouter sets up the Gin router
func SetupRouter(attendance *service.AttendanceService, verifier *auth.JWTVerifier, log logrus.FieldLogger, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(log))

	handlers := NewAttendanceHandlers(attendance, opts.BindLocation)

	router.GET("/healthz", handlers.Health)

	api := router.Group("/api")
	api.Use(AuthMiddleware(verifier))
	{
		api.POST("/scan", RequireRole(auth.RoleStudent), handlers.Scan)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", RequireRole(auth.RoleFaculty), handlers.OpenSession)
			sessions.GET("", RequireRole(auth.RoleFaculty, auth.RoleAdmin), handlers.ListSessions)
			sessions.GET("/:id", RequireRole(auth.RoleFaculty, auth.RoleAdmin), handlers.GetSession)
			sessions.GET("/:id/attendance", RequireRole(auth.RoleFaculty), handlers.SessionAttendance)
			sessions.POST("/:id/close", RequireRole(auth.RoleFaculty), handlers.CloseSession)
		}
	}

	return router
}
