package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/nvkumar/shopkart/internal/middleware/auth"
	"github.com/nvkumar/shopkart/pkg/metrics"
)

type Deps struct {
	OrderHandler  *OrderHTTP
	CouponHandler *CouponHTTP
	JWTSecret     []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	mw := authmw.New(d.JWTSecret)

	orders := e.Group("/order", mw.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.POST("/confirm", d.OrderHandler.ConfirmPayment)
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/cancel/:id", d.OrderHandler.CancelOrder)

	ordersAdmin := orders.Group("", mw.RequireAdmin)
	ordersAdmin.PATCH("/:id", d.OrderHandler.UpdateStatus)
	ordersAdmin.DELETE("/:id", d.OrderHandler.DeleteOrder)

	coupons := e.Group("/coupon", mw.RequireAuth)
	coupons.GET("", d.CouponHandler.ListValidCoupons)
	coupons.GET("/check/:code", d.CouponHandler.CheckCoupon)

	couponsAdmin := coupons.Group("", mw.RequireAdmin)
	couponsAdmin.POST("", d.CouponHandler.CreateCoupon)
	couponsAdmin.PATCH("/:id", d.CouponHandler.UpdateCoupon)
	couponsAdmin.POST("/state/:id", d.CouponHandler.ChangeCouponState)
}
