package metadata

import (
	"bytes"
	"image"
	"log/slog"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

// Patch is the normalized result of one extraction pass. The caller decides
// how it lands on the image record via Apply.
type Patch struct {
	Width  int
	Height int

	CapturedAt *time.Time

	CameraMake  string
	CameraModel string
	Lens        string

	Aperture     string
	ShutterSpeed string
	FocalLength  string
	ISO          int

	HasGPS    bool
	Latitude  float64
	Longitude float64

	Credit   string
	Caption  string
	Headline string
	Location string
	City     string
	State    string
	Country  string

	Keywords []string

	// LensProfile is the raw lens-profile identifier from XMP, kept for the
	// camera model inference fallback.
	LensProfile string
}

// directory is one metadata container kind found in the image bytes. Absence
// of a directory suppresses its fields; it is never an error.
type directory interface {
	name() string
	tryExtract(p *Patch)
}

// Extractor parses embedded EXIF/IPTC/XMP metadata into a Patch.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract decodes pixel dimensions from the container itself and then scans
// the known metadata directory kinds. Malformed metadata degrades to "no
// metadata extracted"; Extract never fails.
func (e *Extractor) Extract(data []byte) *Patch {
	p := &Patch{}

	// Dimensions come from the pixel data, not from metadata tags; tags are
	// frequently missing or stale after edits.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		p.Width = cfg.Width
		p.Height = cfg.Height
	} else {
		e.logger.Debug("failed to decode image dimensions", "error", err)
	}

	for _, dir := range e.directories(data) {
		e.logger.Debug("scanning metadata directory", "directory", dir.name())
		dir.tryExtract(p)
	}

	// Camera model inference fallback: synthesize a best-guess model from
	// the lens-profile identifier when no explicit camera fields exist.
	if p.CameraModel == "" && p.LensProfile != "" {
		if model, lens, ok := inferFromLensProfile(p.LensProfile); ok {
			p.CameraModel = model
			if p.Lens == "" {
				p.Lens = lens
			}
		}
	}

	return p
}

// directories enumerates the directory kinds present in the image bytes.
func (e *Extractor) directories(data []byte) []directory {
	var dirs []directory
	if d, ok := newExifDirectory(data, e.logger); ok {
		dirs = append(dirs, d)
	}
	if d, ok := newIPTCDirectory(data, e.logger); ok {
		dirs = append(dirs, d)
	}
	if d, ok := newXMPDirectory(data, e.logger); ok {
		dirs = append(dirs, d)
	}
	return dirs
}

// Apply writes the patch onto the image record. Derived fields (dimensions,
// camera, exposure, GPS) always win; curated fields (name, caption, credit,
// location) are only overwritten when empty or when the caller asked for an
// overwrite pass. Tags are merged, never removed.
func (p *Patch) Apply(img *domain.Image, overwrite bool, now time.Time) {
	m := &img.Metadata

	if p.Width > 0 && p.Height > 0 {
		m.Width = p.Width
		m.Height = p.Height
	}

	// Capture date takes precedence over the processing/upload date for
	// chronological ordering and display.
	if p.CapturedAt != nil {
		m.CapturedAt = p.CapturedAt
		img.Created = *p.CapturedAt
	}

	setString(&m.CameraMake, p.CameraMake, true)
	setString(&m.CameraModel, p.CameraModel, true)
	setString(&m.Lens, p.Lens, true)
	setString(&m.Aperture, p.Aperture, true)
	setString(&m.ShutterSpeed, p.ShutterSpeed, true)
	setString(&m.FocalLength, p.FocalLength, true)
	if p.ISO > 0 {
		m.ISO = p.ISO
	}
	if p.HasGPS {
		m.Latitude = p.Latitude
		m.Longitude = p.Longitude
	}

	setString(&img.Name, p.Headline, overwrite)
	setString(&img.Caption, p.Caption, overwrite)
	setString(&img.Credit, p.Credit, overwrite)
	setString(&m.Location, p.Location, overwrite)
	setString(&m.City, p.City, overwrite)
	setString(&m.State, p.State, overwrite)
	setString(&m.Country, p.Country, overwrite)

	if len(p.Keywords) > 0 {
		img.Tags = domain.MergeTags(img.Tags, p.Keywords)
	}

	m.DateLastProcessed = now
}

// setString assigns value unless the destination is already curated and the
// caller did not request an overwrite.
func setString(dst *string, value string, overwrite bool) {
	if value == "" {
		return
	}
	if *dst != "" && !overwrite {
		return
	}
	*dst = value
}
