package backups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
)

// Store keeps the last confirmed snapshot of each order.
type Store interface {
	Save(ctx context.Context, order models.Order) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type collection interface {
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type document struct {
	ID          string    `bson:"_id"`
	OrderNumber string    `bson:"orderNumber"`
	SavedAt     time.Time `bson:"savedAt"`
	Snapshot    bson.M    `bson:"snapshot"`
}

// MongoStore writes snapshots into a Mongo collection keyed by order id.
type MongoStore struct {
	coll collection
	now  func() time.Time
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

// Save replaces any earlier snapshot of the order.
func (s *MongoStore) Save(ctx context.Context, order models.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order snapshot: %w", err)
	}
	var snapshot bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &snapshot); err != nil {
		return fmt.Errorf("convert order snapshot: %w", err)
	}
	doc := document{
		ID:          order.ID.String(),
		OrderNumber: order.OrderNumber,
		SavedAt:     s.now().UTC(),
		Snapshot:    snapshot,
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save backup %s: %w", order.OrderNumber, err)
	}
	return nil
}

// Get returns nil without error when no snapshot exists.
func (s *MongoStore) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": orderID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load backup %s: %w", orderID, err)
	}
	raw, err := bson.MarshalExtJSON(doc.Snapshot, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert backup %s: %w", orderID, err)
	}
	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", orderID, err)
	}
	return &order, nil
}

func (s *MongoStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": orderID.String()})
	return err
}

// Disabled is used when no document store is configured: snapshots are dropped and
// the pending-payment rollback finds nothing to restore.
type Disabled struct{}

func (Disabled) Save(context.Context, models.Order) error { return nil }

func (Disabled) Get(context.Context, uuid.UUID) (*models.Order, error) { return nil, nil }

func (Disabled) Delete(context.Context, uuid.UUID) error { return nil }
