package backups

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

type memoryCollection struct {
	docs map[string]document
}

func (m *memoryCollection) ReplaceOne(_ context.Context, filter any, replacement any, _ ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	doc := replacement.(document)
	m.docs[filter.(bson.M)["_id"].(string)] = doc
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func (m *memoryCollection) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) *mongo.SingleResult {
	doc, ok := m.docs[filter.(bson.M)["_id"].(string)]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.M{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (m *memoryCollection) DeleteOne(_ context.Context, filter any, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	id := filter.(bson.M)["_id"].(string)
	if _, ok := m.docs[id]; !ok {
		return &mongo.DeleteResult{}, nil
	}
	delete(m.docs, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func TestMongoStoreRoundTrip(t *testing.T) {
	coll := &memoryCollection{docs: map[string]document{}}
	store := &MongoStore{coll: coll, now: func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }}

	productID := uuid.New()
	order := models.Order{
		ID:           uuid.New(),
		OrderNumber:  "210007",
		Status:       enums.OrderStatusConfirm,
		DeliveryDate: types.MustParseDate("2024-05-03"),
		TotalAmount:  decimal.RequireFromString("45.50"),
		Paid:         decimal.RequireFromString("45.50"),
		Lines: []models.OrderLine{{
			Kind:      enums.OrderLineProduct,
			ProductID: &productID,
			Name:      "Burnt Cheesecake",
			Price:     decimal.RequireFromString("40.50"),
			Quantity:  1,
		}},
	}

	if err := store.Save(context.Background(), order); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.OrderNumber != "210007" || got.Status != enums.OrderStatusConfirm {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.DeliveryDate.Equal(order.DeliveryDate) || !got.TotalAmount.Equal(order.TotalAmount) {
		t.Fatalf("snapshot lost fields: %+v", got)
	}
	if len(got.Lines) != 1 || *got.Lines[0].ProductID != productID {
		t.Fatalf("snapshot lost lines: %+v", got.Lines)
	}

	if err := store.Delete(context.Background(), order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.Get(context.Background(), order.ID)
	if err != nil || got != nil {
		t.Fatalf("expected missing snapshot, got %+v err=%v", got, err)
	}
}

func TestDisabledStore(t *testing.T) {
	var store Store = Disabled{}
	if err := store.Save(context.Background(), models.Order{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(context.Background(), uuid.New())
	if err != nil || got != nil {
		t.Fatalf("expected nothing, got %+v %v", got, err)
	}
}
