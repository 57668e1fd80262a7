package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/vendsur/caja-api/internal/config"
	domainRepo "github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/internal/presentation/http/handler"
	"github.com/vendsur/caja-api/internal/presentation/http/middleware"
	"github.com/vendsur/caja-api/pkg/utils"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Auth           *handler.AuthHandler
	Checkout       *handler.CheckoutHandler
	Document       *handler.DocumentHandler
	Product        *handler.ProductHandler
	Reconciliation *handler.ReconciliationHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (no authentication required)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// The gateway redirects the payer's browser here; it carries no
		// operator credential. GET and POST both occur in the wild.
		v1.GET("/checkout/return", h.Checkout.Return)
		v1.POST("/checkout/return", h.Checkout.Return)

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))

		rateLimiter := middleware.NewRateLimiter(&deps.Cfg.RateLimit)
		protected.Use(rateLimiter.Middleware())

		registerProtectedRoutes(protected, h, deps)
	}

	return router
}

func registerProtectedRoutes(rg *gin.RouterGroup, h *Handlers, deps *Deps) {
	// Checkout begin opens an external payment attempt, so a retried POST
	// must replay the cached response instead of opening a second one
	checkout := rg.Group("/checkout")
	checkout.Use(middleware.IdempotencyRequired(middleware.IdempotencyConfig{Repo: deps.IdempotencyRepo}))
	{
		checkout.POST("", h.Checkout.Begin)
	}

	products := rg.Group("/products")
	{
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.Get)
		products.POST("", h.Product.Create)
		products.PATCH("/:id", h.Product.Update)
		products.DELETE("/:id", h.Product.Delete)
	}

	documents := rg.Group("/documents")
	{
		documents.GET("", h.Document.List)
		documents.GET("/:id", h.Document.Get)
		documents.GET("/by-order/:buyOrder", h.Document.GetByBuyOrder)
		documents.POST("/:id/resubmit", middleware.RequireRole("operator"), h.Reconciliation.ResubmitDocument)
	}

	tasks := rg.Group("/reconciliation/tasks")
	tasks.Use(middleware.RequireRole("operator"))
	{
		tasks.GET("", h.Reconciliation.ListTasks)
		tasks.GET("/:id", h.Reconciliation.GetTask)
		tasks.POST("/:id/resolve-payment", h.Reconciliation.ResolveAmbiguous)
		tasks.POST("/:id/close", h.Reconciliation.CloseTask)
	}
}
