package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvkumar/shopkart/internal/coupon"
	authmw "github.com/nvkumar/shopkart/internal/middleware/auth"
	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/transport"
	"github.com/nvkumar/shopkart/pkg/logging"
)

type CouponHTTP struct {
	Svc *coupon.Service
}

func (h *CouponHTTP) CreateCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.create_coupon")

	actorID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateCouponRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_coupon_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	created, err := h.Svc.Create(ctx, couponParams(req), actorID)
	if err != nil {
		return orderError(c, l, "create_coupon_error", err)
	}

	l.Info("create_coupon_success", "coupon_id", created.ID, "coupon_code", created.Code)
	return c.JSON(http.StatusCreated, created)
}

func (h *CouponHTTP) UpdateCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.update_coupon")

	actorID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("update_coupon_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	var req transport.CreateCouponRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_coupon_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	updated, err := h.Svc.Update(ctx, couponID, couponParams(req), actorID)
	if err != nil {
		return orderError(c, l, "update_coupon_error", err)
	}

	l.Info("update_coupon_success", "coupon_id", updated.ID)
	return c.JSON(http.StatusOK, updated)
}

func (h *CouponHTTP) ChangeCouponState(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.change_coupon_state")

	actorID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("change_coupon_state_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	var req transport.ChangeCouponStateRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_coupon_state_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var active bool
	switch req.State {
	case "activate":
		active = true
	case "deactivate":
		active = false
	default:
		l.Warn("change_coupon_state_error", "status", 400, "reason", "unknown state", "state", req.State)
		return echo.NewHTTPError(http.StatusBadRequest, "state must be activate or deactivate")
	}

	updated, err := h.Svc.SetActive(ctx, couponID, active, actorID)
	if err != nil {
		return orderError(c, l, "change_coupon_state_error", err)
	}

	l.Info("change_coupon_state_success", "coupon_id", updated.ID, "coupon_status", updated.Status)
	return c.JSON(http.StatusOK, updated)
}

func (h *CouponHTTP) ListValidCoupons(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.list_valid_coupons")

	coupons, err := h.Svc.ListValid(ctx, time.Now().UTC())
	if err != nil {
		return orderError(c, l, "list_valid_coupons_error", err)
	}

	return c.JSON(http.StatusOK, coupons)
}

// CheckCoupon lets the storefront verify a code before checkout.
func (h *CouponHTTP) CheckCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.check_coupon")

	code := c.Param("code")
	found, err := h.Svc.Validate(ctx, code, time.Now().UTC())
	if err != nil {
		return orderError(c, l, "check_coupon_error", err)
	}

	return c.JSON(http.StatusOK, found)
}

func couponParams(req transport.CreateCouponRequest) coupon.CreateParams {
	return coupon.CreateParams{
		Code:               req.Code,
		DiscountType:       models.DiscountType(req.DiscountType),
		FlatDiscount:       req.FlatDiscount,
		PercentageDiscount: req.PercentageDiscount,
		ExpiryDate:         req.ExpiryDate,
	}
}
