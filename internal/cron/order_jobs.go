package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

// orderSweeper is the part of the order workflow the nightly sweeps drive.
type orderSweeper interface {
	ExpirePending(ctx context.Context) (int, error)
	CompleteProcessed(ctx context.Context) (int, error)
	RollbackPendingPayment(ctx context.Context) (int, error)
}

type orderJob struct {
	name string
	at   TimeOfDay
	logg *logger.Logger
	run  func(ctx context.Context) (int, error)
}

func (j *orderJob) Name() string  { return j.name }
func (j *orderJob) At() TimeOfDay { return j.at }

func (j *orderJob) Run(ctx context.Context) (int, error) {
	n, err := j.run(ctx)
	if err != nil {
		return n, fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", n), j.name+" loop complete")
	return n, nil
}

// NewOrderJobs builds the three status sweeps: unpaid checkouts expire at
// 03:00, past deliveries complete at 04:00 and edited orders that were never
// settled roll back to their backup at 05:00.
func NewOrderJobs(logg *logger.Logger, orders orderSweeper) ([]Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	return []Job{
		&orderJob{name: "expire-pending", at: At(3, 0), logg: logg, run: orders.ExpirePending},
		&orderJob{name: "complete-processed", at: At(4, 0), logg: logg, run: orders.CompleteProcessed},
		&orderJob{name: "rollback-pending-payment", at: At(5, 0), logg: logg, run: orders.RollbackPendingPayment},
	}, nil
}
