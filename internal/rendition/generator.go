package rendition

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

var (
	// ErrSkipped means the source's longest edge is at or below the spec
	// target; renditions are never upscaled.
	ErrSkipped = errors.New("source smaller than rendition target")

	// ErrTooLarge rejects absurd frame dimensions before any allocation.
	ErrTooLarge = errors.New("source exceeds decode safety bounds")

	// ErrDecode marks corrupt or unsupported image bytes.
	ErrDecode = errors.New("undecodable image")
)

// Generator produces one encoded rendition from original image bytes.
type Generator struct {
	maxDimension int
	maxPixels    int64
	logger       *slog.Logger
}

func NewGenerator(maxDimension int, maxPixels int64, logger *slog.Logger) *Generator {
	return &Generator{
		maxDimension: maxDimension,
		maxPixels:    maxPixels,
		logger:       logger,
	}
}

// Generate decodes the original, resizes so the longer edge equals the spec
// target (aspect preserved), optionally sharpens, and encodes per the spec
// format. EXIF orientation is applied before resizing.
func (g *Generator) Generate(data []byte, spec domain.RenditionSpec) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 ||
		cfg.Width > g.maxDimension || cfg.Height > g.maxDimension ||
		int64(cfg.Width)*int64(cfg.Height) > g.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	longest := cfg.Width
	if cfg.Height > longest {
		longest = cfg.Height
	}
	if longest <= spec.PixelLength {
		return nil, ErrSkipped
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	var resized *image.NRGBA
	if bounds.Dx() >= bounds.Dy() {
		resized = imaging.Resize(src, spec.PixelLength, 0, filterFor(spec.Filter))
	} else {
		resized = imaging.Resize(src, 0, spec.PixelLength, filterFor(spec.Filter))
	}

	if spec.Sharpen > 0 && !spec.Format.Lossless() {
		resized = imaging.Sharpen(resized, spec.Sharpen)
	}

	return encode(resized, spec)
}

func encode(img image.Image, spec domain.RenditionSpec) ([]byte, error) {
	buf := new(bytes.Buffer)

	switch spec.Format {
	case domain.FormatJPEG:
		if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(spec.Quality)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case domain.FormatWebP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(spec.Quality))
		if err != nil {
			return nil, fmt.Errorf("failed to create webp encoder options: %w", err)
		}
		if err := webp.Encode(buf, img, opts); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	case domain.FormatWebPLossless:
		// quality factor is ignored for lossless output
		opts, err := encoder.NewLosslessEncoderOptions(encoder.PresetDefault, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create webp encoder options: %w", err)
		}
		if err := webp.Encode(buf, img, opts); err != nil {
			return nil, fmt.Errorf("failed to encode lossless webp: %w", err)
		}
	default:
		return nil, domain.ErrInvalidFormat
	}

	return buf.Bytes(), nil
}

func filterFor(name string) imaging.ResampleFilter {
	switch name {
	case "catmullrom":
		return imaging.CatmullRom
	case "mitchell":
		return imaging.MitchellNetravali
	case "linear":
		return imaging.Linear
	case "box":
		return imaging.Box
	case "nearest":
		return imaging.NearestNeighbor
	default:
		return imaging.Lanczos
	}
}
