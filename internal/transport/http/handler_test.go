package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

type stubProducer struct {
	sent []*domain.ProcessingTask
	err  error
}

func (p *stubProducer) SendTask(ctx context.Context, task *domain.ProcessingTask) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, task)
	return nil
}

type stubGalleries struct {
	err   error
	calls int
}

func (g *stubGalleries) Reconcile(ctx context.Context, categoryID, galleryID string) error {
	g.calls++
	return g.err
}

type stubOrdering struct {
	err      error
	position int
	imageID  string
}

func (o *stubOrdering) SetPosition(ctx context.Context, categoryID, galleryID, imageID string, newPosition int) error {
	if o.err != nil {
		return o.err
	}
	o.imageID = imageID
	o.position = newPosition
	return nil
}

func newTestRouter(producer *stubProducer, galleries *stubGalleries, ordering *stubOrdering) chi.Router {
	r := chi.NewRouter()
	NewHandler(producer, galleries, ordering).RegisterRoutes(r)
	return r
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&stubProducer{}, &stubGalleries{}, &stubOrdering{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReprocessEnqueuesTask(t *testing.T) {
	producer := &stubProducer{}
	r := newTestRouter(producer, &stubGalleries{}, &stubOrdering{})

	body := `{"image_id":"img-1","gallery_id":"gal-1","category_id":"cat-1","overwrite":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/reprocess", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(producer.sent))
	}
	task := producer.sent[0]
	if task.ImageID != "img-1" || !task.Overwrite {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestReprocessRejectsInvalidBody(t *testing.T) {
	r := newTestRouter(&stubProducer{}, &stubGalleries{}, &stubOrdering{})

	req := httptest.NewRequest(http.MethodPost, "/api/reprocess", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/reprocess", strings.NewReader(`{"image_id":"img-1"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an incomplete task, got %d", rec.Code)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	galleries := &stubGalleries{}
	r := newTestRouter(&stubProducer{}, galleries, &stubOrdering{})

	req := httptest.NewRequest(http.MethodPost, "/api/galleries/gal-1/reconcile?categoryId=cat-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if galleries.calls != 1 {
		t.Errorf("expected one reconcile call, got %d", galleries.calls)
	}
}

func TestReconcileRequiresCategory(t *testing.T) {
	r := newTestRouter(&stubProducer{}, &stubGalleries{}, &stubOrdering{})

	req := httptest.NewRequest(http.MethodPost, "/api/galleries/gal-1/reconcile", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without categoryId, got %d", rec.Code)
	}
}

func TestReconcileUnknownGallery(t *testing.T) {
	r := newTestRouter(&stubProducer{}, &stubGalleries{err: domain.ErrGalleryNotFound}, &stubOrdering{})

	req := httptest.NewRequest(http.MethodPost, "/api/galleries/nope/reconcile?categoryId=cat-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSetPositionEndpoint(t *testing.T) {
	ordering := &stubOrdering{}
	r := newTestRouter(&stubProducer{}, &stubGalleries{}, ordering)

	body := `{"category_id":"cat-1","position":2}`
	req := httptest.NewRequest(http.MethodPut, "/api/galleries/gal-1/images/img-1/position", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if ordering.imageID != "img-1" || ordering.position != 2 {
		t.Errorf("unexpected call %+v", ordering)
	}
}

func TestSetPositionErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrImageNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
	}

	for _, tc := range cases {
		r := newTestRouter(&stubProducer{}, &stubGalleries{}, &stubOrdering{err: tc.err})

		body := `{"category_id":"cat-1","position":0}`
		req := httptest.NewRequest(http.MethodPut, "/api/galleries/gal-1/images/img-1/position", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != tc.code {
			t.Errorf("expected %d for %v, got %d", tc.code, tc.err, rec.Code)
		}
	}
}

func TestSetPositionRejectsNegativePosition(t *testing.T) {
	r := newTestRouter(&stubProducer{}, &stubGalleries{}, &stubOrdering{})

	body := `{"category_id":"cat-1","position":-1}`
	req := httptest.NewRequest(http.MethodPut, "/api/galleries/gal-1/images/img-1/position", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
