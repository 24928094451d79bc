package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avetikov/GalleryWorker/internal/config"
	"github.com/avetikov/GalleryWorker/internal/domain"
	"github.com/avetikov/GalleryWorker/internal/metadata"
	"github.com/avetikov/GalleryWorker/internal/rendition"
	"github.com/avetikov/GalleryWorker/internal/repo"
)

// MetadataExtractor parses embedded photo metadata into a patch.
type MetadataExtractor interface {
	Extract(data []byte) *metadata.Patch
}

// RenditionGenerator produces one encoded rendition for a specification.
type RenditionGenerator interface {
	Generate(data []byte, spec domain.RenditionSpec) ([]byte, error)
}

// ProcessorService drives the full post-processing pass for one queued image:
// metadata extraction, concurrent rendition fan-out, and a single record
// replace at the end.
type ProcessorService interface {
	Process(ctx context.Context, task *domain.ProcessingTask) error
}

type processorService struct {
	images    repo.ImageRepository
	storage   repo.StorageRepository
	extractor MetadataExtractor
	generator RenditionGenerator

	specs           []domain.RenditionSpec
	originalsBucket string
	retryAttempts   int
	retryDelay      time.Duration

	logger *slog.Logger
}

func NewProcessorService(
	images repo.ImageRepository,
	storage repo.StorageRepository,
	extractor MetadataExtractor,
	generator RenditionGenerator,
	cfg *config.Config,
	logger *slog.Logger,
) ProcessorService {
	return &processorService{
		images:          images,
		storage:         storage,
		extractor:       extractor,
		generator:       generator,
		specs:           cfg.Renditions,
		originalsBucket: cfg.Storage.OriginalsBucket,
		retryAttempts:   cfg.Processing.ReadRetryAttempts,
		retryDelay:      cfg.Processing.ReadRetryDelay,
		logger:          logger,
	}
}

func (s *processorService) Process(ctx context.Context, task *domain.ProcessingTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid processing task: %w", err)
	}

	// The enqueueing write may not be visible yet in the eventually
	// consistent store; retry the point read before giving up on the item.
	img, err := s.getImageWithRetry(ctx, task)
	if err != nil {
		return err
	}

	data, err := s.storage.Get(ctx, s.originalsBucket, img.Files[domain.OriginalFileKey])
	if err != nil {
		return fmt.Errorf("failed to download original for image %s: %w", img.ID, err)
	}

	patch := s.extractor.Extract(data)
	patch.Apply(img, task.Overwrite, time.Now().UTC())

	results := s.generateRenditions(ctx, img, data)

	succeeded := 0
	failed := 0
	for i, spec := range s.specs {
		switch {
		case results[i].storageID != "":
			img.Files[spec.Name] = results[i].storageID
			succeeded++
		case results[i].fatal:
			failed++
		}
	}

	// A source that decoded for no spec at all is corrupt or unsupported;
	// abandon the item so the queue redelivers it.
	if succeeded == 0 && failed == len(s.specs) {
		return fmt.Errorf("all renditions failed for image %s", img.ID)
	}

	img.Updated = time.Now().UTC()
	if err := img.Validate(); err != nil {
		return fmt.Errorf("image %s invalid after processing: %w", img.ID, err)
	}

	// Exactly one replace per processing pass; skipped or failed specs
	// simply keep their slot empty for a later reprocessing run.
	if err := s.images.Replace(ctx, img); err != nil {
		return fmt.Errorf("failed to persist image %s: %w", img.ID, err)
	}

	s.logger.Info("processed image",
		"image_id", img.ID,
		"gallery_id", img.GalleryID,
		"renditions", succeeded,
	)
	return nil
}

type renditionResult struct {
	storageID string
	fatal     bool
}

// generateRenditions fans out one goroutine per specification. The goroutines
// share only the read-only original bytes and each writes a disjoint result
// slot, so no locking is needed.
func (s *processorService) generateRenditions(ctx context.Context, img *domain.Image, data []byte) []renditionResult {
	results := make([]renditionResult, len(s.specs))

	var wg sync.WaitGroup
	for i := range s.specs {
		wg.Add(1)
		go func(i int, spec domain.RenditionSpec) {
			defer wg.Done()

			encoded, err := s.generator.Generate(data, spec)
			if errors.Is(err, rendition.ErrSkipped) {
				s.logger.Debug("rendition skipped, source not larger than target",
					"image_id", img.ID, "spec", spec.Name)
				return
			}
			if err != nil {
				s.logger.Warn("rendition generation failed",
					"image_id", img.ID, "spec", spec.Name, "error", err)
				results[i].fatal = true
				return
			}

			storageID := spec.StorageID(img.ID)

			// Delete before upload so no stale bytes survive a partial or
			// differently-cased prior write.
			if err := s.storage.Delete(ctx, spec.Bucket, storageID); err != nil {
				s.logger.Warn("failed to delete prior rendition",
					"image_id", img.ID, "spec", spec.Name, "error", err)
			}
			if err := s.storage.Put(ctx, spec.Bucket, storageID, encoded, spec.Format.ContentType()); err != nil {
				s.logger.Warn("failed to upload rendition",
					"image_id", img.ID, "spec", spec.Name, "error", err)
				results[i].fatal = true
				return
			}

			results[i].storageID = storageID
		}(i, s.specs[i])
	}
	wg.Wait()

	return results
}

func (s *processorService) getImageWithRetry(ctx context.Context, task *domain.ProcessingTask) (*domain.Image, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		img, err := s.images.Get(ctx, task.GalleryID, task.ImageID)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("image %s not visible after %d attempts: %w",
		task.ImageID, s.retryAttempts, lastErr)
}
