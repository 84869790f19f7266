package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/payloads"
)

type restocker interface {
	Restock(ctx context.Context) (int, error)
	LowStock(ctx context.Context) (*payloads.LowStockDigestEvent, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type RestockJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Stock  restocker
	Outbox outboxEmitter
	Clock  calendar.Clock
}

// NewRestockJob seeds ledger rows for every date entering the horizon and
// queues the low stock digest.
func NewRestockJob(params RestockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &restockJob{
		logg:   params.Logger,
		db:     params.DB,
		stock:  params.Stock,
		outbox: params.Outbox,
		clock:  params.Clock,
	}, nil
}

type restockJob struct {
	logg   *logger.Logger
	db     txRunner
	stock  restocker
	outbox outboxEmitter
	clock  calendar.Clock
}

func (j *restockJob) Name() string  { return "restock" }
func (j *restockJob) At() TimeOfDay { return At(6, 0) }

func (j *restockJob) Run(ctx context.Context) (int, error) {
	var errs error
	created, err := j.stock.Restock(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("restock: %w", err))
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_created", created), "restock loop complete")

	if err := j.emitDigest(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return created, errs
}

func (j *restockJob) emitDigest(ctx context.Context) error {
	digest, err := j.stock.LowStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock digest: %w", err)
	}
	if digest == nil || len(digest.Items) == 0 {
		return nil
	}
	today := j.clock.Today().String()
	event := outbox.DomainEvent{
		EventType:     enums.EventLowStockDigest,
		AggregateType: enums.AggregateStock,
		AggregateID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("low-stock:"+today)),
		OccurredAt:    j.clock.LocalNow().UTC(),
		Data:          digest,
	}
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, event)
	}); err != nil {
		return fmt.Errorf("emit low stock digest: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "items", len(digest.Items)), "low stock digest queued")
	return nil
}
