package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/avetikov/GalleryWorker/internal/domain"
	"github.com/avetikov/GalleryWorker/internal/repo"
)

// OrderingService maintains the dense, gap-free ordering of images within a
// gallery and keeps the gallery thumbnail following position 0.
type OrderingService interface {
	SetPosition(ctx context.Context, categoryID, galleryID, imageID string, newPosition int) error
}

type orderingService struct {
	images    repo.ImageRepository
	galleries repo.GalleryRepository
	logger    *slog.Logger
}

func NewOrderingService(
	images repo.ImageRepository,
	galleries repo.GalleryRepository,
	logger *slog.Logger,
) OrderingService {
	return &orderingService{
		images:    images,
		galleries: galleries,
		logger:    logger,
	}
}

// SetPosition moves one image to newPosition and reassigns the remaining
// images so positions stay contiguous 0..N-1. Galleries that were never
// ordered get a baseline ordering by creation time first. Only records whose
// position actually changed are written.
func (s *orderingService) SetPosition(ctx context.Context, categoryID, galleryID, imageID string, newPosition int) error {
	records, err := s.images.ListByGallery(ctx, galleryID)
	if err != nil {
		return fmt.Errorf("failed to load gallery images: %w", err)
	}
	if len(records) == 0 {
		return domain.ErrImageNotFound
	}

	list := make([]*domain.Image, len(records))
	for i := range records {
		list[i] = &records[i]
	}
	sortForOrdering(list)

	idx := -1
	for i, img := range list {
		if img.ID == imageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrImageNotFound
	}
	target := list[idx]

	list = append(list[:idx], list[idx+1:]...)
	if newPosition < 0 {
		newPosition = 0
	}
	if newPosition > len(list) {
		newPosition = len(list)
	}
	list = append(list[:newPosition], append([]*domain.Image{target}, list[newPosition:]...)...)

	changed := make(map[string]int)
	for i, img := range list {
		if img.Position == nil || *img.Position != i {
			position := i
			img.Position = &position
			changed[img.ID] = i
		}
	}

	if err := s.images.BulkSetPositions(ctx, galleryID, changed); err != nil {
		return fmt.Errorf("failed to persist positions: %w", err)
	}

	s.logger.Info("reordered gallery",
		"gallery_id", galleryID,
		"image_id", imageID,
		"position", newPosition,
		"updated", len(changed),
	)

	// Position 0 is always the thumbnail source.
	if newPosition == 0 {
		if err := s.updateThumbnail(ctx, categoryID, galleryID, target); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderingService) updateThumbnail(ctx context.Context, categoryID, galleryID string, img *domain.Image) error {
	gallery, err := s.galleries.Get(ctx, categoryID, galleryID)
	if err != nil {
		return fmt.Errorf("failed to load gallery for thumbnail update: %w", err)
	}

	gallery.ThumbnailFiles = domain.CopyFiles(img.Files)
	gallery.Updated = time.Now().UTC()
	if err := s.galleries.Replace(ctx, gallery); err != nil {
		return fmt.Errorf("failed to update gallery thumbnail: %w", err)
	}
	return nil
}

// sortForOrdering orders positioned images by position, then appends images
// never positioned (ascending creation time). A fully unpositioned gallery
// therefore gets its baseline ordering by creation time.
func sortForOrdering(list []*domain.Image) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := list[i].Position, list[j].Position
		switch {
		case pi == nil && pj == nil:
			return list[i].Created.Before(list[j].Created)
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi < *pj
		}
	})
}
