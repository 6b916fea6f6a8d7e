package handler

import (
	"storefront-payments/internal/adapter/http/middleware"
	redisStore "storefront-payments/internal/adapter/storage/redis"
	"storefront-payments/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CheckoutSvc    ports.CheckoutService
	ReconcileSvc   ports.ReconciliationService
	AdminSvc       ports.OrderAdminService
	ReturnSvc      ports.ReturnService
	TokenVerifier  ports.TokenVerifier
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Customer-facing routes ---
	orderHandler := NewOrderHandler(deps.CheckoutSvc)
	paymentHandler := NewPaymentHandler(deps.CheckoutSvc, deps.ReconcileSvc)
	returnHandler := NewReturnHandler(deps.ReturnSvc)

	orders := v1.Group("/orders")
	{
		orders.POST("", rl("checkout"), orderHandler.CreateOrder)
		orders.GET("/:number", rl("orders"), orderHandler.GetOrder)
		orders.POST("/:number/payment-session", rl("checkout"), paymentHandler.CreateSession)
		orders.GET("/:number/payment-status", rl("orders"), paymentHandler.GetPaymentStatus)
	}

	payments := v1.Group("/payments")
	{
		payments.POST("/paypal/capture", rl("checkout"), paymentHandler.CapturePayPal)
	}

	// Provider webhooks authenticate by signature, not by session.
	v1.POST("/webhooks/:provider", rl("webhooks"), paymentHandler.Webhook)

	returns := v1.Group("/returns")
	{
		returns.POST("", rl("returns"), returnHandler.OpenReturn)
		returns.GET("/:id", rl("returns"), returnHandler.GetReturn)
	}

	// --- Admin routes (JWT-authenticated) ---
	adminAuth := middleware.AdminAuth(deps.TokenVerifier, deps.Logger)
	adminHandler := NewAdminHandler(deps.AdminSvc)

	admin := v1.Group("/admin", adminAuth)
	{
		admin.GET("/orders", rl("admin"), adminHandler.ListOrders)
		admin.PUT("/orders/:number/status", rl("admin"), adminHandler.OverrideStatus)

		admin.POST("/returns/:id/approve", rl("admin"), returnHandler.Approve)
		admin.POST("/returns/:id/reject", rl("admin"), returnHandler.Reject)
		admin.POST("/returns/:id/received", rl("admin"), returnHandler.MarkItemReceived)
		admin.POST("/returns/:id/refund", rl("admin"), returnHandler.IssueRefund)
		admin.POST("/returns/:id/close", rl("admin"), returnHandler.Close)
	}

	return r
}
