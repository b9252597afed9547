package routes

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/config"
	domainRepo "github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/internal/presentation/http/handler"
	"github.com/sangkips/tillsync/internal/presentation/http/middleware"
	"github.com/sangkips/tillsync/pkg/clock"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Ticket       *handler.TicketHandler
	Catalog      *handler.CatalogHandler
	Sync         *handler.SyncHandler
	Connectivity *handler.ConnectivityHandler
	Receipt      *handler.ReceiptHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
	Clock           clock.Clock
	Logger          *slog.Logger
}

// Setup creates the Gin router and registers all routes. ctx bounds the
// rate limiter's background cleanup.
func Setup(ctx context.Context, h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	v1 := router.Group("/api/v1")

	rl := deps.Cfg.RateLimit
	rateLimiter := middleware.NewClientRateLimiter(ctx, middleware.RateLimiterConfig{
		RequestsPerSecond: rate(rl.Requests, rl.Duration),
		BurstSize:         rl.Requests,
		CleanupInterval:   5 * time.Minute,
		EntryTTL:          10 * time.Minute,
	})
	v1.Use(rateLimiter.Middleware())

	idempotency := middleware.Idempotency(middleware.IdempotencyConfig{
		Repo:   deps.IdempotencyRepo,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	})

	registerTicketRoutes(v1, h, idempotency)
	registerCatalogRoutes(v1, h)
	registerSyncRoutes(v1, h)
	registerReceiptRoutes(v1, h)

	v1.GET("/connectivity", h.Connectivity.Get)
	v1.PUT("/connectivity", h.Connectivity.Set)

	return router
}

func registerTicketRoutes(v1 *gin.RouterGroup, h *Handlers, idempotency gin.HandlerFunc) {
	v1.POST("/tickets", h.Ticket.Create)

	current := v1.Group("/tickets/current")
	{
		current.GET("", h.Ticket.Current)
		current.POST("/items", h.Ticket.AddItem)
		current.PUT("/items/:index", h.Ticket.UpdateQuantity)
		current.PUT("/items/:index/discount", h.Ticket.ApplyDiscount)
		current.PUT("/items/:index/note", h.Ticket.SetNote)
		current.DELETE("/items/:index", h.Ticket.RemoveItem)
		current.POST("/payments", h.Ticket.AddPayment)
		current.PUT("/credit", h.Ticket.SetCredit)
		current.DELETE("/credit", h.Ticket.ClearCredit)
		current.POST("/finalize", idempotency, h.Ticket.Finalize)
	}
}

func registerCatalogRoutes(v1 *gin.RouterGroup, h *Handlers) {
	catalog := v1.Group("/catalog")
	{
		catalog.GET("/products", h.Catalog.ListProducts)
		catalog.GET("/products/:id", h.Catalog.GetProduct)
		catalog.GET("/categories", h.Catalog.ListCategories)
		catalog.POST("/refresh", h.Catalog.Refresh)
	}
}

func registerSyncRoutes(v1 *gin.RouterGroup, h *Handlers) {
	sync := v1.Group("/sync")
	{
		sync.GET("/status", h.Sync.Status)
		sync.GET("/entries", h.Sync.ListEntries)
		sync.GET("/entries/:id", h.Sync.GetEntry)
		sync.POST("/entries/:id/resubmit", h.Sync.Resubmit)
		sync.POST("/run", h.Sync.Run)
	}
}

func registerReceiptRoutes(v1 *gin.RouterGroup, h *Handlers) {
	v1.GET("/receipts/:id", h.Receipt.Get)
	v1.POST("/receipts/:id/print", h.Receipt.Print)
	v1.GET("/printer/status", h.Receipt.PrinterStatus)
}

// rate converts a requests-per-window setting into requests per second
func rate(requests, windowSeconds int) float64 {
	if requests <= 0 || windowSeconds <= 0 {
		return 0
	}
	return float64(requests) / float64(windowSeconds)
}
