package router

import (
	"allocation-service/internal/handlers"
	"allocation-service/internal/middleware"

	"github.com/gin-contrib/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Delivery  *handlers.DeliveryHandler
	Checkout  *handlers.CheckoutHandler
	Warehouse *handlers.WarehouseHandler
	Reference *handlers.ReferenceHandler
}

func Router(h Handlers, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	api := r.Group("/api/v1")
	{
		api.POST("/delivery/check", h.Delivery.Check)
		api.POST("/delivery/check-cart", h.Delivery.CheckCart)
		api.POST("/delivery/check-batch", h.Delivery.CheckBatch)
		api.GET("/pincodes/:pincode", h.Delivery.Pincode)
		api.GET("/pincodes/:pincode/products", h.Delivery.PincodeProducts)
		api.GET("/cache/stats", h.Delivery.CacheStats)

		api.POST("/checkout/reserve", h.Checkout.Reserve)
		api.POST("/checkout/confirm", h.Checkout.Confirm)
		api.POST("/checkout/payment", h.Checkout.Payment)
		api.GET("/checkout/:order_token", h.Checkout.Get)

		api.GET("/warehouses/stock", h.Warehouse.Stock)
		api.POST("/warehouses/stock/adjust", h.Warehouse.AdjustStock)
		api.GET("/warehouses/dashboard", h.Warehouse.Dashboard)
		api.GET("/warehouses/movements", h.Warehouse.Movements)

		api.POST("/reference/import", h.Reference.Import)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}
