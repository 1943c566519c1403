// Package http wires the control API router. The control API is a
// localhost-only surface through which an external process, typically a
// GUI, drives the client.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/typeworld/typeworld-go/internal/application/client"
	"github.com/typeworld/typeworld-go/internal/interfaces/http/handlers"
	"github.com/typeworld/typeworld-go/internal/interfaces/http/middleware"
	sharedConfig "github.com/typeworld/typeworld-go/internal/shared/config"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

type Router struct {
	engine  *gin.Engine
	handler *handlers.ClientHandler
	auth    *middleware.ControlAuthMiddleware
	logger  logger.Interface
}

func NewRouter(c *client.Client, cfg *sharedConfig.ControlConfig, log logger.Interface) *Router {
	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logger(log))

	return &Router{
		engine:  engine,
		handler: handlers.NewClientHandler(c, log),
		auth:    middleware.NewControlAuthMiddleware(cfg.AuthKey, log),
		logger:  log,
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) SetupRoutes() {
	h := r.handler

	r.engine.GET("/health", h.Health)

	api := r.engine.Group("/api/v1")
	api.Use(r.auth.RequireControlKey())

	api.GET("/status", h.Status)
	api.POST("/commands/perform", h.PerformCommands)
	api.POST("/sync", h.Sync)
	api.POST("/settings/download", h.DownloadSettings)

	account := api.Group("/account")
	{
		account.GET("", h.GetAccount)
		account.DELETE("", h.DeleteAccount)
		account.POST("/login", h.LogIn)
		account.POST("/create", h.CreateAccount)
		account.POST("/link", h.Link)
		account.POST("/unlink", h.Unlink)
		account.POST("/resend-verification", h.ResendEmailVerification)
		account.GET("/app-instances", h.ListAppInstances)
		account.POST("/app-instances/:appID/revoke", h.RevokeAppInstance)
		account.POST("/app-instances/:appID/reactivate", h.ReactivateAppInstance)
	}

	api.GET("/publishers", h.ListPublishers)

	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.GET("", h.ListSubscriptions)
		subscriptions.POST("", h.AddSubscription)
		subscriptions.POST("/update", h.UpdateAllSubscriptions)
	}

	// Single-subscription operations address the subscription by its
	// unsecret URL in the url query parameter.
	subscription := api.Group("/subscription")
	{
		subscription.GET("", h.GetSubscription)
		subscription.DELETE("", h.DeleteSubscription)
		subscription.POST("/update", h.UpdateSubscription)
		subscription.POST("/reveal-identity", h.SetRevealIdentity)
		subscription.POST("/accept-terms", h.SetAcceptedTermsOfService)
		subscription.GET("/fonts", h.ListFonts)
		subscription.POST("/fonts/install", h.InstallFonts)
		subscription.POST("/fonts/remove", h.RemoveFonts)
	}

	fonts := api.Group("/fonts")
	{
		fonts.GET("/outdated", h.OutdatedFonts)
		fonts.GET("/expiring", h.ExpiringFonts)
	}

	invitations := api.Group("/invitations")
	{
		invitations.GET("", h.ListInvitations)
		invitations.POST("/accept", h.AcceptInvitation)
		invitations.POST("/decline", h.DeclineInvitation)
		invitations.POST("/invite", h.InviteUser)
		invitations.POST("/revoke", h.RevokeInvitation)
	}
}
