package domain

import (
	"errors"
	"strings"
	"time"
)

// OriginalFileKey is the files-map entry that is always present: the storage
// id of the bytes the uploader stored before enqueueing the processing task.
const OriginalFileKey = "original"

// Image represents one uploaded photograph. Images are partitioned by
// GalleryID in the document store.
type Image struct {
	ID                string `bson:"_id" json:"id"`
	GalleryID         string `bson:"galleryId" json:"gallery_id"`
	GalleryCategoryID string `bson:"galleryCategoryId" json:"gallery_category_id"`
	Name              string `bson:"name" json:"name"`
	Caption           string `bson:"caption,omitempty" json:"caption,omitempty"`
	Credit            string `bson:"credit,omitempty" json:"credit,omitempty"`

	// Position is nil until any image in the gallery has been explicitly
	// ordered; once in use positions are dense 0..N-1.
	Position *int `bson:"position,omitempty" json:"position,omitempty"`

	// Files maps a rendition specification name to the storage id of the
	// generated artifact. Entries other than the original appear only after
	// a successful generation pass.
	Files map[string]string `bson:"files" json:"files"`

	// Tags is the comma-joined, lowercased, de-duplicated tag list.
	Tags string `bson:"tags,omitempty" json:"tags,omitempty"`

	Metadata Metadata `bson:"metadata" json:"metadata"`

	Created time.Time `bson:"created" json:"created"`
	Updated time.Time `bson:"updated" json:"updated"`

	// Version is the optimistic concurrency token checked on replace.
	Version int64 `bson:"version" json:"version"`
}

// Metadata holds the normalized record derived from embedded photo metadata.
type Metadata struct {
	Width  int `bson:"width,omitempty" json:"width,omitempty"`
	Height int `bson:"height,omitempty" json:"height,omitempty"`

	CapturedAt *time.Time `bson:"capturedAt,omitempty" json:"captured_at,omitempty"`

	CameraMake  string `bson:"cameraMake,omitempty" json:"camera_make,omitempty"`
	CameraModel string `bson:"cameraModel,omitempty" json:"camera_model,omitempty"`
	Lens        string `bson:"lens,omitempty" json:"lens,omitempty"`

	Aperture     string `bson:"aperture,omitempty" json:"aperture,omitempty"`
	ShutterSpeed string `bson:"shutterSpeed,omitempty" json:"shutter_speed,omitempty"`
	FocalLength  string `bson:"focalLength,omitempty" json:"focal_length,omitempty"`
	ISO          int    `bson:"iso,omitempty" json:"iso,omitempty"`

	Latitude  float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`

	Location string `bson:"location,omitempty" json:"location,omitempty"`
	City     string `bson:"city,omitempty" json:"city,omitempty"`
	State    string `bson:"state,omitempty" json:"state,omitempty"`
	Country  string `bson:"country,omitempty" json:"country,omitempty"`

	DateLastProcessed time.Time `bson:"dateLastProcessed,omitempty" json:"date_last_processed,omitempty"`
}

// Gallery is an ordered collection of images under a category. Galleries are
// partitioned by CategoryID in the document store.
type Gallery struct {
	ID         string `bson:"_id" json:"id"`
	CategoryID string `bson:"categoryId" json:"category_id"`
	Name       string `bson:"name" json:"name"`

	// ThumbnailFiles is a denormalized copy of the position-0 image's files
	// map. It is nil until at least one member image has a low-resolution
	// rendition; the consistency manager repairs drift.
	ThumbnailFiles map[string]string `bson:"thumbnailFiles,omitempty" json:"thumbnail_files,omitempty"`

	// ImageCount caches the member count to avoid a count query per read.
	ImageCount int `bson:"imageCount" json:"image_count"`

	Created time.Time `bson:"created" json:"created"`
	Updated time.Time `bson:"updated" json:"updated"`

	Version int64 `bson:"version" json:"version"`
}

// ProcessingTask is the queue message payload identifying one image to
// process or reprocess.
type ProcessingTask struct {
	// TaskID correlates log lines across redeliveries of the same enqueued
	// task; the producer mints it when absent.
	TaskID string `json:"task_id,omitempty"`

	ImageID    string `json:"image_id"`
	GalleryID  string `json:"gallery_id"`
	CategoryID string `json:"category_id"`

	// Overwrite lets a reprocessing pass replace manually curated
	// descriptive fields with extracted metadata.
	Overwrite bool `json:"overwrite,omitempty"`
}

// Validate validates image invariants.
func (i *Image) Validate() error {
	if i.ID == "" {
		return ErrInvalidImageID
	}
	if i.GalleryID == "" || i.GalleryCategoryID == "" {
		return ErrInvalidGalleryRef
	}
	if i.Name == "" {
		return ErrInvalidImageName
	}
	if i.Files[OriginalFileKey] == "" {
		return ErrMissingOriginal
	}
	return nil
}

// Validate validates task invariants before processing starts.
func (t *ProcessingTask) Validate() error {
	if t.ImageID == "" {
		return ErrInvalidImageID
	}
	if t.GalleryID == "" || t.CategoryID == "" {
		return ErrInvalidGalleryRef
	}
	return nil
}

// TagList splits the serialized tag field into its entries.
func (i *Image) TagList() []string {
	if i.Tags == "" {
		return nil
	}
	return strings.Split(i.Tags, ",")
}

// MergeTags merges incoming tags into the comma-joined existing set.
// Matching is case-insensitive, the stored form is lowercase, and existing
// entries are never removed.
func MergeTags(existing string, incoming []string) string {
	var out []string
	seen := make(map[string]struct{})

	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if existing != "" {
		for _, tag := range strings.Split(existing, ",") {
			add(tag)
		}
	}
	for _, tag := range incoming {
		add(tag)
	}

	return strings.Join(out, ",")
}

// CopyFiles returns a copy of a files map so gallery thumbnails do not alias
// the image record's map.
func CopyFiles(files map[string]string) map[string]string {
	if files == nil {
		return nil
	}
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

// Domain errors
var (
	ErrInvalidImageID    = errors.New("invalid image id")
	ErrInvalidGalleryRef = errors.New("invalid gallery reference")
	ErrInvalidImageName  = errors.New("image name is required")
	ErrMissingOriginal   = errors.New("image has no original file")
	ErrImageNotFound     = errors.New("image not found")
	ErrGalleryNotFound   = errors.New("gallery not found")
	ErrConflict          = errors.New("record was modified concurrently")
	ErrInvalidFormat     = errors.New("invalid rendition format")
)
