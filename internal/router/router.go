package router

import (
	"time"

	"washly/internal/config"
	"washly/internal/handler"
	"washly/internal/infra"
	"washly/internal/middleware"
	"washly/internal/model"
	"washly/internal/repository"
	"washly/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Handlers groups every HTTP handler mounted by Setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Tickets  *handler.TicketsHandler
	Payments *handler.PaymentsHandler
	Caja     *handler.CajaHandler
	Catalog  *handler.CatalogHandler
	Health   gin.HandlerFunc
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// rdb may be nil (no catalog cache); dispatcher may be nil (no closing-report emails).
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher service.ReportDispatcher) *gin.Engine {
	locker := infra.NewKeyedLocker()

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	catalogSvc := service.NewCatalogService(catalogRepo, rdb, time.Duration(cfg.CatalogCacheTTLMinutes)*time.Minute)
	ticketSvc := service.NewTicketService(ticketRepo, paymentRepo, cajaRepo, catalogSvc, locker, cfg.AllowOverpayment)
	paymentSvc := service.NewPaymentService(ticketRepo, paymentRepo, cajaRepo, locker, cfg.AllowOverpayment)
	cajaSvc := service.NewCajaService(cajaRepo, paymentRepo, locker)
	reconSvc := service.NewReconciliationService(cajaRepo, paymentRepo, locker, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	return Setup(cfg, Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Tickets:  handler.NewTicketsHandler(ticketSvc),
		Payments: handler.NewPaymentsHandler(paymentSvc),
		Caja:     handler.NewCajaHandler(cajaSvc, reconSvc),
		Catalog:  handler.NewCatalogHandler(catalogSvc),
		Health:   handler.Health(db, rdb),
	})
}

// Setup mounts middleware and routes on a fresh engine.
func Setup(cfg *config.Config, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	apiLimiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, "Demasiadas solicitudes. Intente nuevamente en un momento.")
	apiLimiter.StartCleanup(5*time.Minute, nil)
	loginLimiter := middleware.LoginRateLimiter()
	loginLimiter.StartCleanup(5*time.Minute, nil)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.Middleware())

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	if h.Health != nil {
		r.GET("/health", h.Health)
	}

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	staff := middleware.RequireRole(model.RoleCajero, model.RoleSupervisor, model.RoleAdministrador)
	supervisors := middleware.RequireRole(model.RoleSupervisor, model.RoleAdministrador)

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/auth/me", h.Auth.Me)

		tickets := v1.Group("/tickets", staff)
		{
			tickets.POST("", h.Tickets.Create)
			tickets.GET("", h.Tickets.List)
			tickets.GET("/:id", h.Tickets.Get)
			tickets.PATCH("/:id/status", h.Tickets.UpdateStatus)
			tickets.POST("/:id/cancel", h.Tickets.Cancel)
			tickets.GET("/:id/balance", h.Tickets.Balance)
			tickets.POST("/:id/payments", h.Payments.Record)
			tickets.GET("/:id/payments", h.Payments.ListByTicket)
		}

		v1.POST("/payments/:id/void", supervisors, h.Payments.Void)

		caja := v1.Group("/cash-sessions")
		{
			caja.POST("/open", staff, h.Caja.Open)
			caja.GET("/current", staff, h.Caja.Current)
			caja.POST("/:id/movements", staff, h.Caja.RecordMovement)
			caja.POST("/:id/close", staff, h.Caja.Close)
			caja.GET("/:id/report", staff, h.Caja.Report)
			caja.GET("", supervisors, h.Caja.History)
		}

		v1.GET("/clients/:id", staff, h.Catalog.GetClient)
		v1.GET("/services/:id", staff, h.Catalog.GetService)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
