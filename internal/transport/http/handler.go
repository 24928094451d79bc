package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avetikov/GalleryWorker/internal/domain"
	"github.com/avetikov/GalleryWorker/internal/service"
	"github.com/avetikov/GalleryWorker/internal/transport/queue"
)

// Handler exposes the worker's small operational surface: health probes,
// re-enqueueing an image for processing, and manual gallery repair. The
// gallery application itself talks to the database, not to this server.
type Handler struct {
	producer  queue.Producer
	galleries service.GalleryService
	ordering  service.OrderingService
}

func NewHandler(producer queue.Producer, galleries service.GalleryService, ordering service.OrderingService) *Handler {
	return &Handler{
		producer:  producer,
		galleries: galleries,
		ordering:  ordering,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Health)

	r.Post("/api/reprocess", h.Reprocess)
	r.Post("/api/galleries/{galleryID}/reconcile", h.Reconcile)
	r.Put("/api/galleries/{galleryID}/images/{imageID}/position", h.SetPosition)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	var task domain.ProcessingTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := task.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.producer.SendTask(r.Context(), &task); err != nil {
		http.Error(w, fmt.Sprintf("failed to enqueue task: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	galleryID := chi.URLParam(r, "galleryID")
	categoryID := r.URL.Query().Get("categoryId")
	if galleryID == "" || categoryID == "" {
		http.Error(w, "gallery id and categoryId are required", http.StatusBadRequest)
		return
	}

	if err := h.galleries.Reconcile(r.Context(), categoryID, galleryID); err != nil {
		if errors.Is(err, domain.ErrGalleryNotFound) {
			http.Error(w, "gallery not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("failed to reconcile gallery: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setPositionRequest struct {
	CategoryID string `json:"category_id"`
	Position   int    `json:"position"`
}

func (h *Handler) SetPosition(w http.ResponseWriter, r *http.Request) {
	galleryID := chi.URLParam(r, "galleryID")
	imageID := chi.URLParam(r, "imageID")

	var req setPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if galleryID == "" || imageID == "" || req.CategoryID == "" {
		http.Error(w, "gallery, image and category ids are required", http.StatusBadRequest)
		return
	}
	if req.Position < 0 {
		http.Error(w, "position must be non-negative", http.StatusBadRequest)
		return
	}

	err := h.ordering.SetPosition(r.Context(), req.CategoryID, galleryID, imageID, req.Position)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrConflict) {
			http.Error(w, "gallery changed concurrently, retry", http.StatusConflict)
			return
		}
		http.Error(w, fmt.Sprintf("failed to set position: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
