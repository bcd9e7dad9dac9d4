package router

import (
	"time"

	"restopos/internal/config"
	"restopos/internal/handler"
	"restopos/internal/infra"
	"restopos/internal/middleware"
	"restopos/internal/money"
	"restopos/internal/repository"
	"restopos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services are the domain services behind the routes. The composition root
// builds them once and shares OrderService with the stale order sweeper.
type Services struct {
	Orders service.OrderService
	Tables service.TableService
	Shifts service.ShiftService
}

// Jobs is what the services enqueue: audit records and receipts.
// *worker.Dispatcher implements it.
type Jobs interface {
	service.AuditSink
	service.ReceiptQueue
}

// NewServices wires the services over one store.
func NewServices(store repository.Store, menu repository.MenuRepository, rates money.Rates, jobs Jobs, kitchen service.KitchenNotifier) Services {
	return Services{
		Orders: service.NewOrderService(store, menu, rates, jobs, kitchen, jobs),
		Tables: service.NewTableService(store, rates, jobs, jobs),
		Shifts: service.NewShiftService(store, jobs),
	}
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, kitchenCB *infra.CircuitBreaker, svcs Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))

	// Public
	r.GET("/health", handler.Health(db, rdb, kitchenCB))

	mountV1(r, cfg.JWTSecret, svcs)

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

func mountV1(r *gin.Engine, jwtSecret string, svcs Services) {
	ordersH := handler.NewOrdersHandler(svcs.Orders, svcs.Tables)
	tablesH := handler.NewTablesHandler(svcs.Tables)
	shiftsH := handler.NewShiftsHandler(svcs.Shifts)

	staff := middleware.RequireRole(middleware.RoleCashier, middleware.RoleSupervisor, middleware.RoleManager)
	v1 := r.Group("/v1", middleware.JWTAuth(jwtSecret), staff)

	shifts := v1.Group("/shifts")
	{
		shifts.POST("", shiftsH.Open)
		shifts.GET("/active", shiftsH.Active)
		shifts.GET("/history", shiftsH.History)
		shifts.GET("/:id/report", shiftsH.Report)
		shifts.POST("/:id/movements", shiftsH.RecordMovement)
		shifts.POST("/:id/close", shiftsH.Close)
	}

	orders := v1.Group("/orders")
	{
		orders.POST("/items", ordersH.CommitItem)
		orders.POST("/merge", ordersH.Merge)
		orders.POST("/new", ordersH.StartNew)

		orders.GET("/:id", ordersH.Get)
		orders.PATCH("/:id/lines/:lineId", ordersH.UpdateLineQuantity)
		orders.POST("/:id/lines/:lineId/void", ordersH.VoidLine)
		orders.POST("/:id/lines/:lineId/transfer", ordersH.TransferLine)
		orders.PUT("/:id/discount", ordersH.ApplyDiscount)
		orders.DELETE("/:id/discount", ordersH.RemoveDiscount)
		orders.POST("/:id/hold", ordersH.Hold)
		orders.POST("/:id/resume", ordersH.Resume)
		orders.POST("/:id/cancel", ordersH.Cancel)
		orders.POST("/:id/void", ordersH.Void)
		orders.POST("/:id/pay", ordersH.Pay)
		orders.POST("/:id/refund", ordersH.Refund)
		orders.POST("/:id/reopen", ordersH.Reopen)
		orders.POST("/:id/kitchen", ordersH.SendToKitchen)
		orders.POST("/:id/split", ordersH.Split)
		orders.POST("/:id/move", ordersH.Move)
	}

	tables := v1.Group("/tables")
	{
		tables.GET("/status", tablesH.Status)
		tables.POST("/:tableId/click", tablesH.Click)
		tables.POST("/:tableId/checkout", tablesH.Checkout)
	}
}
