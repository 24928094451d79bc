package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

// GalleryRepository is the gallery side of the document store, partitioned
// by categoryId.
type GalleryRepository interface {
	Get(ctx context.Context, categoryID, id string) (*domain.Gallery, error)
	Replace(ctx context.Context, gallery *domain.Gallery) error
}

type galleryRepo struct {
	coll *mongo.Collection
}

func NewGalleryRepository(db *mongo.Database) GalleryRepository {
	return &galleryRepo{coll: db.Collection(galleriesCollection)}
}

func (r *galleryRepo) Get(ctx context.Context, categoryID, id string) (*domain.Gallery, error) {
	var gallery domain.Gallery
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "categoryId": categoryID}).Decode(&gallery)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrGalleryNotFound
		}
		return nil, fmt.Errorf("failed to get gallery: %w", err)
	}
	return &gallery, nil
}

func (r *galleryRepo) Replace(ctx context.Context, gallery *domain.Gallery) error {
	next := *gallery
	next.Version = gallery.Version + 1

	filter := bson.M{"_id": gallery.ID, "categoryId": gallery.CategoryID, "version": gallery.Version}
	res, err := r.coll.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return fmt.Errorf("failed to replace gallery: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := r.coll.CountDocuments(ctx, bson.M{"_id": gallery.ID, "categoryId": gallery.CategoryID})
		if err == nil && count > 0 {
			return domain.ErrConflict
		}
		return domain.ErrGalleryNotFound
	}

	gallery.Version = next.Version
	return nil
}
