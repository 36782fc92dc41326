package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-fundo-ops/internal/model"
)

// DigestArchive stores the daily alert digests.
type DigestArchive interface {
	SaveDigest(ctx context.Context, digest model.AlertDigest) error
	RecentDigests(ctx context.Context, limit int64) ([]model.AlertDigest, error)
}

type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository connects and pings before returning.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "alert_digests",
	}, nil
}

// SaveDigest replaces the digest of the same day, so a rerun of the job
// does not duplicate it.
func (r *MongoDBRepository) SaveDigest(ctx context.Context, digest model.AlertDigest) error {
	collection := r.client.Database(r.dbName).Collection(r.collName)
	_, err := collection.ReplaceOne(ctx,
		bson.M{"date": digest.Date},
		digest,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert digest: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) RecentDigests(ctx context.Context, limit int64) ([]model.AlertDigest, error) {
	collection := r.client.Database(r.dbName).Collection(r.collName)
	cur, err := collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query alert digests: %w", err)
	}
	var out []model.AlertDigest
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode alert digests: %w", err)
	}
	return out, nil
}

func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
