// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"authcore/internal/delivery/api/middleware"
	"authcore/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		authMiddleware: params.AuthMiddleware,
		rateLimiter:    params.RateLimiter,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	authGroup := e.Group("/auth")
	{
		// Both endpoints hash a password per request; they share the per-client limiter.
		authGroup.POST("/signup", r.authHandler.Signup, r.rateLimiter.Limit)
		authGroup.POST("/login", r.authHandler.Login, r.rateLimiter.Limit)
		authGroup.GET("/session", r.authHandler.Session, r.authMiddleware.Authenticate)
	}
}
