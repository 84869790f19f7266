package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

// UpdateStatus moves each order independently. Orders that cannot make the
// transition are reported in Failed and the rest still move.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, req StatusUpdateRequest) (*StatusUpdateResult, error) {
	if !req.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", req.Status)
	}
	if len(req.OrderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}
	result := &StatusUpdateResult{Updated: []uuid.UUID{}, Failed: map[string]string{}}
	var errs error
	for _, id := range req.OrderIDs {
		if err := s.transition(ctx, actor, id, req.Status, req.Notify); err != nil {
			result.Failed[id.String()] = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", id, err))
			continue
		}
		result.Updated = append(result.Updated, id)
	}
	if errs != nil {
		s.logg.Warn(s.logg.WithField(ctx, "failures", errs.Error()), "bulk status update partially failed")
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result, nil
}

func (s *service) transition(ctx context.Context, actor Actor, id uuid.UUID, to enums.OrderStatus, notify bool) error {
	order, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	from := order.Status
	if !from.CanTransitionTo(to) {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", from, to)
	}
	wasHeld := order.StockHeld
	order.Status = to
	first := false
	switch to {
	case enums.OrderStatusConfirm:
		first = !wasHeld
		order.StockHeld = true
	case enums.OrderStatusCancelled, enums.OrderStatusExpired:
		order.StockHeld = false
	}

	err = s.save(ctx, order, func(tx *gorm.DB) error {
		if err := s.emitStatusChanged(ctx, tx, order, from, notify, actor); err != nil {
			return err
		}
		if to == enums.OrderStatusConfirm {
			return s.emitConfirmed(ctx, tx, order, actor)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	switch {
	case to == enums.OrderStatusConfirm:
		s.afterConfirm(logCtx, order, first)
	case wasHeld && !order.StockHeld:
		if err := s.stock.Release(logCtx, order.DeliveryDate, stock.UsagesOf(order.Lines), &order.ID); err != nil {
			s.logg.Error(logCtx, "stock release incomplete", err)
		}
		s.metrics.IncTransition(string(to))
	default:
		s.metrics.IncTransition(string(to))
	}
	return nil
}

// sweep moves every order in rows to status and joins the per-order failures.
func (s *service) sweep(ctx context.Context, rows []models.Order, to enums.OrderStatus, notify bool) (int, error) {
	moved := 0
	var errs error
	for i := range rows {
		order := &rows[i]
		from := order.Status
		order.Status = to
		err := s.save(ctx, order, func(tx *gorm.DB) error {
			return s.emitStatusChanged(ctx, tx, order, from, notify, Actor{})
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.OrderNumber, err))
			continue
		}
		s.metrics.IncTransition(string(to))
		moved++
	}
	return moved, errs
}

// ExpirePending expires unpaid checkouts whose delivery date has arrived.
// PENDING orders hold no stock, so nothing is released.
func (s *service) ExpirePending(ctx context.Context) (int, error) {
	rows, err := s.repo.ListByStatusOnOrBefore(ctx, []enums.OrderStatus{enums.OrderStatusPending}, s.clock.Today())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	return s.sweep(ctx, rows, enums.OrderStatusExpired, false)
}

// CompleteProcessed completes delivered and collected orders from past dates.
func (s *service) CompleteProcessed(ctx context.Context) (int, error) {
	rows, err := s.repo.ListByStatusBefore(ctx, []enums.OrderStatus{
		enums.OrderStatusDelivering,
		enums.OrderStatusReadyForCollection,
	}, s.clock.Today())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list processed orders")
	}
	return s.sweep(ctx, rows, enums.OrderStatusCompleted, true)
}

// RollbackPendingPayment restores PENDING_PAYMENT orders close to their date
// to the snapshot taken when they were last confirmed, moving held stock back
// with them. Orders without a snapshot are left alone.
func (s *service) RollbackPendingPayment(ctx context.Context) (int, error) {
	horizon := s.clock.Today().AddDays(s.pendingWindowDays)
	rows, err := s.repo.ListByStatusOnOrBefore(ctx, []enums.OrderStatus{enums.OrderStatusPendingPayment}, horizon)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payment orders")
	}
	restored := 0
	var errs error
	for i := range rows {
		ok, err := s.rollback(ctx, &rows[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", rows[i].OrderNumber, err))
			continue
		}
		if ok {
			restored++
		}
	}
	return restored, errs
}

func (s *service) rollback(ctx context.Context, order *models.Order) (bool, error) {
	backup, err := s.backups.Get(ctx, order.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order backup")
	}
	if backup == nil {
		return false, nil
	}
	from := order.Status
	oldDate, oldUsages := order.DeliveryDate, stock.UsagesOf(order.Lines)
	wasHeld := order.StockHeld

	order.Lines = backup.Lines
	order.DeliveryDate = backup.DeliveryDate
	order.Delivery = backup.Delivery
	order.DeliveryZoneID = backup.DeliveryZoneID
	order.Sender = backup.Sender
	order.Recipient = backup.Recipient
	order.GiftMessage = backup.GiftMessage
	order.ProductsAmount = backup.ProductsAmount
	order.PeakDaySurcharge = backup.PeakDaySurcharge
	order.TotalAmount = backup.TotalAmount
	order.Discount = backup.Discount
	order.UsedFreeDelivery = backup.UsedFreeDelivery
	order.Status = backup.Status
	order.StockHeld = true
	rebalance(order)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ReplaceLines(ctx, order.ID, order.Lines); err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if from == order.Status {
			return nil
		}
		return s.emitStatusChanged(ctx, tx, order, from, false, Actor{})
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore order backup")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	if wasHeld {
		s.moveStock(logCtx, order.ID, oldDate, oldUsages, order.DeliveryDate, stock.UsagesOf(order.Lines))
	} else if err := s.stock.Reserve(logCtx, order.DeliveryDate, stock.UsagesOf(order.Lines), &order.ID); err != nil {
		s.logg.Error(logCtx, "stock reservation incomplete", err)
	}
	s.logg.Info(logCtx, "pending payment order restored from backup")
	return true, nil
}
