package main

import (
	"net/http"

	"authsession/internal/middleware"
	"authsession/internal/modules/otp"
	"authsession/internal/modules/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type routerDeps struct {
	sessions    *session.Service
	otp         *otp.Handler
	accounts    middleware.AccountLookup
	corsOrigins []string
	log         *zap.Logger
}

func newRouter(deps routerDeps) *gin.Engine {
	sessionHandler := session.NewHandler(deps.sessions, deps.log.Named("session"))

	r := gin.New()
	r.Use(middleware.RequestLogger(deps.log.Named("http")))
	r.Use(middleware.CORS(deps.corsOrigins))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		sessionHandler.RegisterPublicRoutes(v1)
		deps.otp.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(deps.sessions, deps.accounts))
		{
			sessionHandler.RegisterProtectedRoutes(protected)
		}
	}
	return r
}
