package routes

import (
	"payment-reconciler/controllers"
	"payment-reconciler/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterCheckoutRoutes(r *gin.Engine, cc *controllers.CheckoutController) {
	checkout := r.Group("/v1/checkout")
	checkout.Use(middleware.AuthMiddleware())
	checkout.POST("/qris", cc.OpenCheckout)
	checkout.POST("/:session_id/signal", cc.SubmitSignal)
	checkout.GET("/:session_id", cc.CheckoutStatus)
	checkout.DELETE("/:session_id", cc.CloseCheckout)
}
