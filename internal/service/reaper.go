package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nvkumar/shopkart/pkg/logging"
)

const reaperBatchSize = 100

// SystemActor shows up as the status-change actor on reaper cancellations.
var SystemActor = uuid.Nil

// ReapStaleOrders cancels created-and-never-paid orders older than the
// window. A payment intent that was never confirmed would otherwise leave the
// order in created/unpaid forever.
func (svc *OrderService) ReapStaleOrders(ctx context.Context, window time.Duration) (int, error) {
	l := logging.FromContext(ctx).With("job", "stale_order_reaper")

	cutoff := time.Now().UTC().Add(-window)
	stale, err := svc.Repo.StaleUnpaidOrders(ctx, cutoff, reaperBatchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range stale {
		order := &stale[i]
		stockHeld, err := svc.Life.Cancel(order, SystemActor, time.Now().UTC())
		if err != nil {
			l.Error("reap_cancel_failed", "order_id", order.ID, "error", err)
			continue
		}
		if err := svc.Repo.SaveOrder(ctx, order); err != nil {
			l.Error("reap_save_failed", "order_id", order.ID, "error", err)
			continue
		}
		svc.Life.AfterCancel(ctx, order, stockHeld)
		reaped++
	}

	if reaped > 0 {
		l.Info("stale_orders_reaped", "count", reaped)
	}
	return reaped, nil
}

// RunReaper reaps on a ticker until the context is cancelled.
func (svc *OrderService) RunReaper(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ReapStaleOrders(ctx, window); err != nil {
				logging.FromContext(ctx).Error("reaper_failed", "error", err)
			}
		}
	}
}
