package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/avetikov/GalleryWorker/internal/domain"
	"github.com/avetikov/GalleryWorker/internal/metadata"
	"github.com/avetikov/GalleryWorker/internal/rendition"
)

type fakeImageRepo struct {
	mu     sync.Mutex
	images map[string]*domain.Image

	// getFailures makes the first N Get calls miss, to exercise the
	// read-after-write retry loop.
	getFailures int
	getCalls    int
	replaces    int
}

func newFakeImageRepo(images ...*domain.Image) *fakeImageRepo {
	r := &fakeImageRepo{images: make(map[string]*domain.Image)}
	for _, img := range images {
		cp := *img
		r.images[img.ID] = &cp
	}
	return r
}

func (r *fakeImageRepo) Get(ctx context.Context, galleryID, id string) (*domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getCalls++
	if r.getCalls <= r.getFailures {
		return nil, domain.ErrImageNotFound
	}

	img, ok := r.images[id]
	if !ok || img.GalleryID != galleryID {
		return nil, domain.ErrImageNotFound
	}
	cp := *img
	cp.Files = domain.CopyFiles(img.Files)
	return &cp, nil
}

func (r *fakeImageRepo) Replace(ctx context.Context, img *domain.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.images[img.ID]
	if !ok || stored.GalleryID != img.GalleryID {
		return domain.ErrImageNotFound
	}
	if stored.Version != img.Version {
		return domain.ErrConflict
	}

	cp := *img
	cp.Files = domain.CopyFiles(img.Files)
	cp.Version = img.Version + 1
	r.images[img.ID] = &cp
	img.Version = cp.Version
	r.replaces++
	return nil
}

func (r *fakeImageRepo) ListByGallery(ctx context.Context, galleryID string) ([]domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Image
	for _, img := range r.images {
		if img.GalleryID == galleryID {
			cp := *img
			cp.Files = domain.CopyFiles(img.Files)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

func (r *fakeImageRepo) FindByPosition(ctx context.Context, galleryID string, position int) (*domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, img := range r.images {
		if img.GalleryID == galleryID && img.Position != nil && *img.Position == position {
			cp := *img
			cp.Files = domain.CopyFiles(img.Files)
			return &cp, nil
		}
	}
	return nil, domain.ErrImageNotFound
}

func (r *fakeImageRepo) FindEarliestWithFile(ctx context.Context, galleryID, fileKey string) (*domain.Image, error) {
	list, _ := r.ListByGallery(ctx, galleryID)
	for i := range list {
		if list[i].Files[fileKey] != "" {
			return &list[i], nil
		}
	}
	return nil, domain.ErrImageNotFound
}

func (r *fakeImageRepo) CountByGallery(ctx context.Context, galleryID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, img := range r.images {
		if img.GalleryID == galleryID {
			count++
		}
	}
	return count, nil
}

func (r *fakeImageRepo) BulkSetPositions(ctx context.Context, galleryID string, positions map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, position := range positions {
		img, ok := r.images[id]
		if !ok || img.GalleryID != galleryID {
			continue
		}
		p := position
		img.Position = &p
	}
	return nil
}

type fakeGalleryRepo struct {
	mu        sync.Mutex
	galleries map[string]*domain.Gallery
	replaces  int

	// conflictOnce fails the next Replace with ErrConflict.
	conflictOnce bool
}

func newFakeGalleryRepo(galleries ...*domain.Gallery) *fakeGalleryRepo {
	r := &fakeGalleryRepo{galleries: make(map[string]*domain.Gallery)}
	for _, g := range galleries {
		cp := *g
		r.galleries[g.ID] = &cp
	}
	return r
}

func (r *fakeGalleryRepo) Get(ctx context.Context, categoryID, id string) (*domain.Gallery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.galleries[id]
	if !ok || g.CategoryID != categoryID {
		return nil, domain.ErrGalleryNotFound
	}
	cp := *g
	cp.ThumbnailFiles = domain.CopyFiles(g.ThumbnailFiles)
	return &cp, nil
}

func (r *fakeGalleryRepo) Replace(ctx context.Context, gallery *domain.Gallery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflictOnce {
		r.conflictOnce = false
		return domain.ErrConflict
	}

	stored, ok := r.galleries[gallery.ID]
	if !ok || stored.CategoryID != gallery.CategoryID {
		return domain.ErrGalleryNotFound
	}
	if stored.Version != gallery.Version {
		return domain.ErrConflict
	}

	cp := *gallery
	cp.ThumbnailFiles = domain.CopyFiles(gallery.ThumbnailFiles)
	cp.Version = gallery.Version + 1
	r.galleries[gallery.ID] = &cp
	gallery.Version = cp.Version
	r.replaces++
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	// ops records the operation sequence per object key.
	ops map[string][]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: make(map[string][]byte),
		ops:     make(map[string][]string),
	}
}

func (s *fakeStorage) key(bucket, id string) string { return bucket + "/" + id }

func (s *fakeStorage) Get(ctx context.Context, bucket, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[s.key(bucket, id)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, id)
	}
	return data, nil
}

func (s *fakeStorage) Put(ctx context.Context, bucket, id string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.key(bucket, id)
	s.objects[k] = data
	s.ops[k] = append(s.ops[k], "put")
	return nil
}

func (s *fakeStorage) Delete(ctx context.Context, bucket, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.key(bucket, id)
	delete(s.objects, k)
	s.ops[k] = append(s.ops[k], "delete")
	return nil
}

type fakeExtractor struct {
	patch *metadata.Patch
}

func (e *fakeExtractor) Extract(data []byte) *metadata.Patch {
	if e.patch != nil {
		return e.patch
	}
	return &metadata.Patch{}
}

type fakeGenerator struct {
	// skip and fail select behavior per spec name; everything else yields
	// deterministic bytes.
	skip map[string]bool
	fail map[string]bool
}

func (g *fakeGenerator) Generate(data []byte, spec domain.RenditionSpec) ([]byte, error) {
	if g.skip[spec.Name] {
		return nil, fmt.Errorf("spec %s: %w", spec.Name, rendition.ErrSkipped)
	}
	if g.fail[spec.Name] {
		return nil, fmt.Errorf("spec %s: generation blew up", spec.Name)
	}
	return []byte("rendition-" + spec.Name), nil
}
