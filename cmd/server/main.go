package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tablebite/ordercore/internal/config"
	"github.com/tablebite/ordercore/internal/coupon"
	"github.com/tablebite/ordercore/internal/handlers"
	"github.com/tablebite/ordercore/internal/middleware"
	"github.com/tablebite/ordercore/internal/repository"
	"github.com/tablebite/ordercore/internal/service"
	"github.com/tablebite/ordercore/pkg/logger"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting ordering api server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"log_level", cfg.LogLevel,
	)

	// Initialize coupon validator; skipped entirely when no sources are
	// configured, orders then simply accept no coupon codes.
	couponValidator := coupon.NewValidator()
	if len(cfg.Coupon.FileURLs) > 0 {
		log.Info("loading coupon data...", "sources", len(cfg.Coupon.FileURLs))
		if err := couponValidator.LoadFromURLs(context.Background(), cfg.Coupon.FileURLs); err != nil {
			log.Error("failed to load coupon data", "error", err)
			os.Exit(1)
		}
		stats := couponValidator.GetStats()
		log.Info("coupon data loaded successfully",
			"total_files", stats["total_files"],
			"total_coupons", stats["total_coupons"],
		)
	}

	// Initialize repositories
	catalogRepo, err := repository.NewInMemoryCatalogRepository(repository.DefaultMenu())
	if err != nil {
		log.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}
	orderRepo := repository.NewInMemoryOrderRepository()

	// Initialize services
	catalogService := service.NewCatalogService(catalogRepo)
	orderService := service.NewOrderService(
		catalogRepo,
		orderRepo,
		couponValidator,
		time.Duration(cfg.Ordering.LockWaitMS)*time.Millisecond,
		cfg.Ordering.NotesMaxLength,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(log)
	productHandler := handlers.NewProductHandler(catalogService, log)
	orderHandler := handlers.NewOrderHandler(orderService, log)
	couponHandler := handlers.NewCouponHandler(couponValidator)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "api_key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Register health check endpoint
	r.Get("/health", healthHandler.ServeHTTP)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Catalog endpoints (public)
		r.Get("/product", productHandler.ListProducts)
		r.Get("/product/{productId}", productHandler.GetProduct)
		r.Post("/product/{productId}/validate", productHandler.ValidateSelection)

		// Coupon endpoints (public)
		r.Get("/coupon/stats", couponHandler.GetStats)
		r.Get("/coupon/{couponCode}", couponHandler.ValidateCoupon)

		// Order endpoints (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(cfg.Auth))

			r.Post("/order", orderHandler.CreateOrder)
			r.Get("/order/{orderId}", orderHandler.GetOrder)
			r.Post("/order/{orderId}/items", orderHandler.AddItems)
			r.Post("/order/{orderId}/finalize", orderHandler.Finalize)
			r.Post("/order/{orderId}/close", orderHandler.CloseOrder)
		})
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}
