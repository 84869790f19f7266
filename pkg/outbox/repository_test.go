package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

func TestEmitAndFetchRespectsDelay(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	repo.now = func() time.Time { return now }

	orderID := uuid.New()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaymentApplied,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"orderNumber": "210000"},
		}); err != nil {
			return err
		}
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"orderNumber": "210000"},
			Delay:         5 * time.Minute,
		})
	}))

	due, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, enums.EventOrderPaymentApplied, due[0].EventType)

	repo.now = func() time.Time { return now.Add(6 * time.Minute) }
	due, err = repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
}

func TestMarkPublishedFailedAndTerminal(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCancelled, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
		{EventType: enums.EventOrderCancelled, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
		{EventType: enums.EventOrderCancelled, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}
	repo.now = func() time.Time { return time.Now().Add(time.Second) }

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("transient")))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	due, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, rows[1].ID, due[0].ID)
	require.Equal(t, 1, due[0].AttemptCount)
	require.NotNil(t, due[0].LastError)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), logger.Nop())
	err := svc.Emit(context.Background(), nil, DomainEvent{AggregateID: uuid.New()})
	require.Error(t, err)
}
