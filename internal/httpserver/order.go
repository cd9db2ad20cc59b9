package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvkumar/shopkart/internal/coupon"
	authmw "github.com/nvkumar/shopkart/internal/middleware/auth"
	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/payment"
	"github.com/nvkumar/shopkart/internal/pricing"
	"github.com/nvkumar/shopkart/internal/service"
	"github.com/nvkumar/shopkart/internal/transport"
	"github.com/nvkumar/shopkart/internal/util"
	"github.com/nvkumar/shopkart/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		return orderError(c, l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.confirm_payment")

	var req transport.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("confirm_payment_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		l.Warn("confirm_payment_error", "status", 400, "reason", "missing fields")
		return echo.NewHTTPError(http.StatusBadRequest, "order_id, payment_id and signature are required")
	}

	order, err := h.Svc.ConfirmPayment(ctx, req)
	if err != nil {
		return orderError(c, l, "confirm_payment_error", err)
	}

	l.Info("confirm_payment_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("cancel_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	order, err := h.Svc.CancelOrder(ctx, orderID, userID)
	if err != nil {
		return orderError(c, l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	actorID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("update_status_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_status_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.AdminUpdateStatus(ctx, orderID, models.OrderStatus(req.Status), actorID)
	if err != nil {
		return orderError(c, l, "update_status_error", err)
	}

	l.Info("update_status_success", "order_id", order.ID, "order_status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.delete_order")

	actorID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("delete_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	order, err := h.Svc.AdminSoftDelete(ctx, orderID, actorID)
	if err != nil {
		return orderError(c, l, "delete_order_error", err)
	}

	l.Info("delete_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	order, err := h.Svc.GetOrder(ctx, orderID, userID, authmw.IsAdmin(c))
	if err != nil {
		return orderError(c, l, "get_order_error", err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.ListOrders(ctx, userID, authmw.IsAdmin(c), limit, offset)
	if err != nil {
		l.Error("get_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": map[string]any{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

// orderError translates service failures into HTTP errors without swallowing
// the reason.
func orderError(_ echo.Context, l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, pricing.ErrInvalidAmount),
		errors.Is(err, coupon.ErrValidation),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, pricing.ErrCouponNotApplicable):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, coupon.ErrNotFound):
		l.Warn(event, "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrStockReservation),
		errors.Is(err, coupon.ErrCodeTaken):
		l.Warn(event, "status", 409, "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, coupon.ErrInactive):
		l.Warn(event, "status", 403, "error", err)
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotifyFailed), errors.Is(err, payment.ErrGateway):
		l.Error(event, "status", 502, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
