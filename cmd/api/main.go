package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/handler"
	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/redis"
	"marketplace/internal/repository"
	"marketplace/internal/search"
	"marketplace/internal/service/auth"
	"marketplace/internal/service/catalog"
	"marketplace/internal/service/order"
	"marketplace/internal/service/pricing"
	"marketplace/internal/storage"
	"marketplace/internal/task"
	"marketplace/pkg/log"
	"marketplace/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if err := database.Init(cfg); err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(database.GetDB()); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
	}

	if err := redis.Init(cfg); err != nil {
		log.WithError(err).Fatal("Failed to initialize redis")
	}
	defer redis.Close()

	appCache, err := cache.New(redis.GetClient(), cfg.Cache)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	var searchSvc *search.Service
	if cfg.Search.Enabled {
		searchSvc, err = search.New(cfg.Search)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize search")
		}
	}

	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize object storage")
		}
	}

	broker := newBroker(cfg)
	defer broker.Close()
	dispatcher := task.NewDispatcher(broker)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := setupRouter(cfg, appCache, searchSvc, store, broker, dispatcher)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func newBroker(cfg *config.Config) queue.Broker {
	switch cfg.Queue.Driver {
	case "memory":
		log.Warn("Using in-memory task broker; jobs do not survive restarts")
		return queue.NewMemoryBroker(cfg.Queue.VisibilityTimeout)
	default:
		return queue.NewRedisBroker(redis.GetClient(), cfg.Queue.Namespace, cfg.Queue.VisibilityTimeout)
	}
}

func setupRouter(
	cfg *config.Config,
	appCache *cache.Cache,
	searchSvc *search.Service,
	store *storage.Storage,
	broker queue.Broker,
	dispatcher *task.Dispatcher,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}
	if cfg.Metrics.Enabled {
		router.Use(monitor.Middleware())
		router.GET(cfg.Metrics.Path, monitor.Handler())
	}

	db := database.GetDB()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)
	discountRepo := repository.NewDiscountRepository(db)

	// Services
	tokens := auth.NewTokenManager(cfg.Security.JWT)
	authSvc := auth.NewService(userRepo, tokens, dispatcher)
	calculator := pricing.NewCalculator(productRepo, discountRepo)
	orderSvc := order.NewService(orderRepo, calculator, dispatcher)
	catalogSvc := catalog.NewService(productRepo, appCache, searchSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	tenantHandler := handler.NewTenantHandler(tenantRepo, userRepo)
	productHandler := handler.NewProductHandler(catalogSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	cartHandler := handler.NewCartHandler(cartRepo, productRepo)
	wishlistHandler := handler.NewWishlistHandler(wishlistRepo, productRepo)
	uploadHandler := handler.NewUploadHandler(store)

	router.GET("/health", healthCheck(appCache, searchSvc, broker))

	api := router.Group("/api")
	v1 := api.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		// Public storefront
		v1.GET("/shops/:slug", tenantHandler.GetBySlug)
		v1.GET("/tenants/:tenant_id", tenantHandler.Get)
		v1.GET("/tenants/:tenant_id/products", productHandler.List)
		v1.GET("/tenants/:tenant_id/products/search", productHandler.Search)
		v1.GET("/tenants/:tenant_id/products/suggest", productHandler.Suggest)
		v1.GET("/tenants/:tenant_id/products/:id", productHandler.Get)
		v1.GET("/tenants/:tenant_id/categories", productHandler.ListCategories)

		// Payment provider callback
		v1.POST("/payments/webhook", orderHandler.PaymentWebhook)

		protected := v1.Group("")
		protected.Use(middleware.Auth(authSvc))
		{
			protected.GET("/auth/me", authHandler.Me)

			protected.POST("/tenants", tenantHandler.Create)
			protected.PUT("/tenants/:tenant_id", tenantHandler.Update)
			protected.POST("/tenants/:tenant_id/products", productHandler.Create)
			protected.PUT("/tenants/:tenant_id/products/:id", productHandler.Update)
			protected.DELETE("/tenants/:tenant_id/products/:id", productHandler.Delete)
			protected.POST("/tenants/:tenant_id/categories", productHandler.CreateCategory)
			protected.DELETE("/tenants/:tenant_id/categories/:id", productHandler.DeleteCategory)

			protected.GET("/cart", cartHandler.List)
			protected.POST("/cart/items", cartHandler.Add)
			protected.PATCH("/cart/items/:id", cartHandler.Update)
			protected.DELETE("/cart/items/:id", cartHandler.Delete)
			protected.DELETE("/cart", cartHandler.Clear)

			protected.GET("/wishlist", wishlistHandler.List)
			protected.POST("/wishlist", wishlistHandler.Add)
			protected.DELETE("/wishlist/:product_id", wishlistHandler.Remove)

			protected.POST("/tenants/:tenant_id/orders", orderHandler.Create)
			protected.GET("/tenants/:tenant_id/orders", orderHandler.ListForTenant)
			protected.GET("/orders", orderHandler.List)
			protected.GET("/orders/:id", orderHandler.Get)
			protected.PATCH("/orders/:id/cancel", orderHandler.Cancel)
			protected.PATCH("/orders/:id/status", orderHandler.UpdateStatus)

			protected.POST("/uploads/products", uploadHandler.UploadProductImage)
			protected.POST("/uploads/avatars", uploadHandler.UploadAvatar)

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRoles(model.RoleSuperAdmin))
			{
				admin.GET("/tenants", tenantHandler.List)
				admin.GET("/orders", orderHandler.ListAll)
			}
		}
	}

	return router
}

func healthCheck(appCache *cache.Cache, searchSvc *search.Service, broker queue.Broker) gin.HandlerFunc {
	check := func(err error) map[string]interface{} {
		if err != nil {
			return map[string]interface{}{"healthy": false, "error": err.Error()}
		}
		return map[string]interface{}{"healthy": true}
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		services := map[string]interface{}{
			"database": check(database.Health()),
			"redis":    check(redis.Health()),
			"cache":    check(appCache.Health(ctx)),
			"queue":    check(broker.Health(ctx)),
		}
		if searchSvc != nil {
			services["search"] = check(searchSvc.Health(ctx))
		}

		status := http.StatusOK
		overall := "ok"
		for _, svc := range services {
			if !svc.(map[string]interface{})["healthy"].(bool) {
				status = http.StatusServiceUnavailable
				overall = "degraded"
				break
			}
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"timestamp": time.Now().Unix(),
			"services":  services,
		})
	}
}
