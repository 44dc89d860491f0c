package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/use-agent/catalog/models"
)

// Mongo upserts records into a collection keyed by product id.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo connects to uri and pings the primary.
func OpenMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("sink: mongodb uri is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("sink: connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("sink: ping mongodb: %w", err)
	}

	return &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (m *Mongo) Name() string { return string(KindMongo) }

// Write issues one unordered bulk of ReplaceOne upserts.
func (m *Mongo) Write(ctx context.Context, products []models.NormalizedProduct) error {
	if len(products) == 0 {
		return nil
	}

	ops := make([]mongo.WriteModel, 0, len(products))
	for i := range products {
		ops = append(ops, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": products[i].ProductID}).
			SetReplacement(products[i]).
			SetUpsert(true))
	}

	if _, err := m.collection.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("sink: mongodb bulk write: %w", err)
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
