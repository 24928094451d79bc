package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

// ImageRepository is the image side of the document store. Point reads and
// queries are always scoped to the partition key (galleryId).
type ImageRepository interface {
	Get(ctx context.Context, galleryID, id string) (*domain.Image, error)
	Replace(ctx context.Context, img *domain.Image) error
	ListByGallery(ctx context.Context, galleryID string) ([]domain.Image, error)
	FindByPosition(ctx context.Context, galleryID string, position int) (*domain.Image, error)
	FindEarliestWithFile(ctx context.Context, galleryID, fileKey string) (*domain.Image, error)
	CountByGallery(ctx context.Context, galleryID string) (int64, error)
	BulkSetPositions(ctx context.Context, galleryID string, positions map[string]int) error
}

type imageRepo struct {
	coll *mongo.Collection
}

func NewImageRepository(db *mongo.Database) ImageRepository {
	return &imageRepo{coll: db.Collection(imagesCollection)}
}

func (r *imageRepo) Get(ctx context.Context, galleryID, id string) (*domain.Image, error) {
	var img domain.Image
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "galleryId": galleryID}).Decode(&img)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// Replace swaps the whole record, guarded by the optimistic version token.
func (r *imageRepo) Replace(ctx context.Context, img *domain.Image) error {
	next := *img
	next.Version = img.Version + 1

	filter := bson.M{"_id": img.ID, "galleryId": img.GalleryID, "version": img.Version}
	res, err := r.coll.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return fmt.Errorf("failed to replace image: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := r.coll.CountDocuments(ctx, bson.M{"_id": img.ID, "galleryId": img.GalleryID})
		if err == nil && count > 0 {
			return domain.ErrConflict
		}
		return domain.ErrImageNotFound
	}

	img.Version = next.Version
	return nil
}

func (r *imageRepo) ListByGallery(ctx context.Context, galleryID string) ([]domain.Image, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"galleryId": galleryID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer cursor.Close(ctx)

	var images []domain.Image
	if err := cursor.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	return images, nil
}

func (r *imageRepo) FindByPosition(ctx context.Context, galleryID string, position int) (*domain.Image, error) {
	var img domain.Image
	err := r.coll.FindOne(ctx, bson.M{"galleryId": galleryID, "position": position}).Decode(&img)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to find image by position: %w", err)
	}
	return &img, nil
}

func (r *imageRepo) FindEarliestWithFile(ctx context.Context, galleryID, fileKey string) (*domain.Image, error) {
	filter := bson.M{
		"galleryId":       galleryID,
		"files." + fileKey: bson.M{"$exists": true, "$ne": ""},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created", Value: 1}})

	var img domain.Image
	err := r.coll.FindOne(ctx, filter, opts).Decode(&img)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to find earliest image with %s: %w", fileKey, err)
	}
	return &img, nil
}

func (r *imageRepo) CountByGallery(ctx context.Context, galleryID string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"galleryId": galleryID})
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// BulkSetPositions persists only the images whose position changed in one
// round trip.
func (r *imageRepo) BulkSetPositions(ctx context.Context, galleryID string, positions map[string]int) error {
	if len(positions) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(positions))
	now := time.Now().UTC()
	for id, position := range positions {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id, "galleryId": galleryID}).
			SetUpdate(bson.M{"$set": bson.M{"position": position, "updated": now}}))
	}

	opts := options.BulkWrite().SetOrdered(false)
	if _, err := r.coll.BulkWrite(ctx, models, opts); err != nil {
		return fmt.Errorf("failed to bulk update positions: %w", err)
	}
	return nil
}
