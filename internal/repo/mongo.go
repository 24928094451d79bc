package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avetikov/GalleryWorker/internal/config"
)

const (
	imagesCollection    = "images"
	galleriesCollection = "galleries"
)

// ConnectMongo opens and pings the document store connection.
func ConnectMongo(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client.Database(cfg.Name), nil
}

// EnsureIndexes creates the indexes the pipeline queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	imageIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "galleryId", Value: 1}, {Key: "created", Value: 1}},
			Options: options.Index().SetName("idx_gallery_created"),
		},
		{
			Keys:    bson.D{{Key: "galleryId", Value: 1}, {Key: "position", Value: 1}},
			Options: options.Index().SetName("idx_gallery_position"),
		},
	}
	if _, err := db.Collection(imagesCollection).Indexes().CreateMany(ctx, imageIndexes); err != nil {
		return fmt.Errorf("failed to create image indexes: %w", err)
	}

	galleryIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "categoryId", Value: 1}},
			Options: options.Index().SetName("idx_category"),
		},
	}
	if _, err := db.Collection(galleriesCollection).Indexes().CreateMany(ctx, galleryIndexes); err != nil {
		return fmt.Errorf("failed to create gallery indexes: %w", err)
	}

	return nil
}
