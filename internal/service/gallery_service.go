package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avetikov/GalleryWorker/internal/domain"
	"github.com/avetikov/GalleryWorker/internal/repo"
)

// GalleryService repairs derived gallery state (thumbnail, image count) that
// may have drifted under partial failures or concurrent edits. All repairs
// are idempotent; concurrent reconciliations degrade to duplicate no-op
// writes.
type GalleryService interface {
	Reconcile(ctx context.Context, categoryID, galleryID string) error
}

type galleryService struct {
	images    repo.ImageRepository
	galleries repo.GalleryRepository
	logger    *slog.Logger
}

func NewGalleryService(
	images repo.ImageRepository,
	galleries repo.GalleryRepository,
	logger *slog.Logger,
) GalleryService {
	return &galleryService{
		images:    images,
		galleries: galleries,
		logger:    logger,
	}
}

func (s *galleryService) Reconcile(ctx context.Context, categoryID, galleryID string) error {
	gallery, err := s.galleries.Get(ctx, categoryID, galleryID)
	if err != nil {
		return fmt.Errorf("failed to load gallery %s: %w", galleryID, err)
	}

	thumbChanged, err := s.assignMissingThumbnail(ctx, gallery)
	if err != nil {
		return err
	}
	countChanged, err := s.repairImageCount(ctx, gallery)
	if err != nil {
		return err
	}

	if !thumbChanged && !countChanged {
		return nil
	}

	gallery.Updated = time.Now().UTC()
	if err := s.galleries.Replace(ctx, gallery); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Another worker reconciled the same gallery first; the next
			// pass will redo whatever is still missing.
			s.logger.Debug("gallery reconcile lost the race", "gallery_id", galleryID)
			return nil
		}
		return fmt.Errorf("failed to persist gallery %s: %w", galleryID, err)
	}

	s.logger.Info("reconciled gallery",
		"gallery_id", galleryID,
		"thumbnail_updated", thumbChanged,
		"image_count", gallery.ImageCount,
	)
	return nil
}

// assignMissingThumbnail fills the thumbnail only when it is absent. The
// position-0 image wins, but never before its low-resolution rendition
// exists; assigning an incomplete rendition set would pin a broken thumbnail.
func (s *galleryService) assignMissingThumbnail(ctx context.Context, gallery *domain.Gallery) (bool, error) {
	if gallery.ThumbnailFiles != nil {
		return false, nil
	}

	img, err := s.images.FindByPosition(ctx, gallery.ID, 0)
	if err == nil {
		if img.Files[domain.LowResSpecName] == "" {
			// Retried on a later pass once processing catches up.
			return false, nil
		}
		gallery.ThumbnailFiles = domain.CopyFiles(img.Files)
		return true, nil
	}
	if !errors.Is(err, domain.ErrImageNotFound) {
		return false, fmt.Errorf("failed to find position-0 image: %w", err)
	}

	// No positioned image yet; fall back to the earliest created image that
	// already has a low-resolution rendition.
	img, err = s.images.FindEarliestWithFile(ctx, gallery.ID, domain.LowResSpecName)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to find thumbnail candidate: %w", err)
	}

	gallery.ThumbnailFiles = domain.CopyFiles(img.Files)
	return true, nil
}

// repairImageCount replaces the cached member count with the authoritative
// count query result.
func (s *galleryService) repairImageCount(ctx context.Context, gallery *domain.Gallery) (bool, error) {
	count, err := s.images.CountByGallery(ctx, gallery.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count gallery images: %w", err)
	}
	if int(count) == gallery.ImageCount {
		return false, nil
	}
	gallery.ImageCount = int(count)
	return true, nil
}
