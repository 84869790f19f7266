package analytics

import (
	"encoding/json"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/payloads"
)

// SalesRow mirrors the sales BigQuery schema. Refunds carry negative amounts.
type SalesRow struct {
	EventID      string               `bigquery:"event_id"`
	OccurredAt   time.Time            `bigquery:"occurred_at"`
	OrderID      string               `bigquery:"order_id"`
	OrderNumber  string               `bigquery:"order_number"`
	Gateway      string               `bigquery:"gateway"`
	Kind         string               `bigquery:"kind"`
	ExternalID   string               `bigquery:"external_id"`
	AmountCents  int64                `bigquery:"amount_cents"`
	FeeCents     int64                `bigquery:"fee_cents"`
	NetCents     int64                `bigquery:"net_cents"`
	OrderStatus  string               `bigquery:"order_status"`
	DeliveryDate cbigquery.NullString `bigquery:"delivery_date"`
	Payload      cbigquery.NullJSON   `bigquery:"payload"`
}

func salesRow(envelope outbox.PayloadEnvelope, event *payloads.OrderPaymentAppliedEvent) SalesRow {
	amount := event.Amount.Shift(2).Round(0).IntPart()
	fee := event.Fee.Shift(2).Round(0).IntPart()
	occurredAt := event.AppliedAt
	if occurredAt.IsZero() {
		occurredAt = envelope.OccurredAt
	}
	row := SalesRow{
		EventID:     envelope.EventID,
		OccurredAt:  occurredAt.UTC(),
		OrderID:     event.OrderID.String(),
		OrderNumber: event.OrderNumber,
		Gateway:     string(event.Gateway),
		Kind:        string(event.Kind),
		ExternalID:  event.ExternalID,
		AmountCents: amount,
		FeeCents:    fee,
		NetCents:    amount - fee,
		OrderStatus: string(event.Status),
	}
	if !event.DeliveryDate.IsZero() {
		row.DeliveryDate = cbigquery.NullString{StringVal: event.DeliveryDate.String(), Valid: true}
	}
	if raw, err := json.Marshal(event); err == nil {
		row.Payload = cbigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}
	return row
}

// SalesSchema is the sales table layout; it matches the SalesRow tags.
func SalesSchema() cbigquery.Schema {
	return cbigquery.Schema{
		{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
		{Name: "order_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "order_number", Type: cbigquery.StringFieldType},
		{Name: "gateway", Type: cbigquery.StringFieldType},
		{Name: "kind", Type: cbigquery.StringFieldType},
		{Name: "external_id", Type: cbigquery.StringFieldType},
		{Name: "amount_cents", Type: cbigquery.IntegerFieldType},
		{Name: "fee_cents", Type: cbigquery.IntegerFieldType},
		{Name: "net_cents", Type: cbigquery.IntegerFieldType},
		{Name: "order_status", Type: cbigquery.StringFieldType},
		{Name: "delivery_date", Type: cbigquery.DateFieldType},
		{Name: "payload", Type: cbigquery.JSONFieldType},
	}
}

// SalesPartitionField is the column the sales table is partitioned by.
const SalesPartitionField = "occurred_at"
