package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vaihtovirtahepo/faustjs/internal/config"
	"github.com/vaihtovirtahepo/faustjs/internal/http/handler"
	httpmiddleware "github.com/vaihtovirtahepo/faustjs/internal/http/middleware"
	"github.com/vaihtovirtahepo/faustjs/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, gate *httpmiddleware.SecretGate, authenticators []httpmiddleware.Authenticator, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpmiddleware.Identity(authenticators...))

	auth := r.Group("/auth/v1")
	{
		auth.POST("/authorize", gate.Handler(), authHandler.Authorize)
		auth.POST("/codes", gate.Handler(), authHandler.IssueCode)
		auth.GET("/me", authHandler.Me)
	}

	return r
}
