package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"payment-reconciler/clients"
	"payment-reconciler/config"
	"payment-reconciler/controllers"
	"payment-reconciler/gateway"
	"payment-reconciler/logger"
	"payment-reconciler/metrics"
	"payment-reconciler/routes"
	"payment-reconciler/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[PaymentReconciler] Failed to load config:", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("[PaymentReconciler] Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	backend := clients.NewBackendClient(cfg.BackendBaseURL, cfg.HTTPTimeout, zlog)
	leases := gateway.NewLeaseRegistry()
	sessions := services.NewSessionManager(backend, leases, services.CoordinatorConfig{
		PollInterval: cfg.PollInterval,
		PollDeadline: cfg.PollDeadline,
	}, cfg.SuccessLinger, zlog)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	sessions.StartSweeper(ctx, time.Second)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.PrometheusMiddleware("payment-reconciler"))

	cc := &controllers.CheckoutController{
		Sessions: sessions,
		Logger:   zlog,
	}
	routes.RegisterCheckoutRoutes(r, cc)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	zlog.Info("Payment reconciler running",
		zap.String("port", cfg.Port),
		zap.String("backend", cfg.BackendBaseURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("poll_deadline", cfg.PollDeadline),
	)
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}
