package outbox

import (
	"errors"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository parks events the publisher gave up on. Parked rows are kept
// for manual replay; nothing deletes them.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Park copies event into outbox_dlq inside tx.
func (r *DLQRepository) Park(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	entry := DeadLetterEntry(event, reason, cause, at)
	return tx.Create(&entry).Error
}

// DeadLetterEntry builds the DLQ row for event. Long error messages are cut
// at a rune boundary.
func DeadLetterEntry(event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) models.OutboxDLQ {
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount,
		FailedAt:      at,
	}
	if cause != nil {
		msg := cause.Error()
		if len(msg) > maxDLQErrorLen {
			cut := maxDLQErrorLen
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			msg = msg[:cut]
		}
		entry.ErrorMessage = &msg
	}
	return entry
}
