// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"time"

	"adforge/internal/handlers"
	"adforge/internal/middleware"
	"adforge/internal/models"
	"adforge/internal/services/order"
	"adforge/internal/services/spend"
	"adforge/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Auth   *middleware.AuthMiddleware
	Health *handlers.HealthHandler
	Wallet wallet.Service
	Orders order.Service
	Spend  *spend.Service

	OrderRateLimit       int
	OrderRateLimitWindow time.Duration
	ReconcileTimeout     time.Duration
	StreamLifetime       time.Duration
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, deps Deps) {
	walletHandler := handlers.NewWalletHandler(deps.Wallet, deps.StreamLifetime)
	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Spend)
	adminHandler := handlers.NewAdminHandler(deps.Wallet, deps.Spend, deps.ReconcileTimeout)

	// Public routes
	if deps.Health != nil {
		app.Get("/health", deps.Health.Check)
	}

	api := app.Group("/api", deps.Auth.Handler)

	// Wallet routes
	walletGroup := api.Group("/wallet")
	walletGroup.Post("/init", middleware.HasPermission(models.PermissionWalletWrite), walletHandler.InitWallet)
	walletGroup.Get("/", middleware.HasPermission(models.PermissionWalletRead), walletHandler.GetWallet)
	walletGroup.Get("/entries", middleware.HasPermission(models.PermissionWalletRead), walletHandler.ListEntries)
	walletGroup.Get("/stream", middleware.HasPermission(models.PermissionWalletRead), walletHandler.Stream)

	// Order routes
	orders := api.Group("/orders")
	rateLimit, rateWindow := deps.OrderRateLimit, deps.OrderRateLimitWindow
	if rateLimit <= 0 {
		rateLimit = 30
	}
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}
	createLimit := middleware.UserRateLimit(rateLimit, rateWindow)
	orders.Post("/", createLimit, middleware.HasPermission(models.PermissionOrderWrite), orderHandler.CreateOrder)
	orders.Get("/", middleware.HasPermission(models.PermissionOrderRead), orderHandler.ListOrders)
	orders.Get("/:id", middleware.HasPermission(models.PermissionOrderRead), orderHandler.GetOrder)

	// Admin routes
	admin := api.Group("/admin", middleware.AdminOnly(deps.Wallet))
	admin.Post("/wallets/:userId/credit", adminHandler.CreditWallet)
	admin.Post("/orders/:id/refund", adminHandler.RefundOrder)
	admin.Post("/reconcile", adminHandler.Reconcile)
}
