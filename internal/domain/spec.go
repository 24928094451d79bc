package domain

// RenditionFormat selects the encoder for a generated rendition.
type RenditionFormat string

const (
	FormatJPEG         RenditionFormat = "jpeg"
	FormatWebP         RenditionFormat = "webp"
	FormatWebPLossless RenditionFormat = "webp-lossless"
)

// LowResSpecName is the specification whose artifact qualifies an image as a
// gallery thumbnail source.
const LowResSpecName = "lowres"

// Extension returns the storage file extension for the format.
func (f RenditionFormat) Extension() string {
	switch f {
	case FormatWebP, FormatWebPLossless:
		return ".webp"
	default:
		return ".jpg"
	}
}

// ContentType returns the MIME type for the format.
func (f RenditionFormat) ContentType() string {
	switch f {
	case FormatWebP, FormatWebPLossless:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Lossless reports whether the format ignores the quality factor.
func (f RenditionFormat) Lossless() bool {
	return f == FormatWebPLossless
}

// Valid reports whether the format is one of the known encoders.
func (f RenditionFormat) Valid() bool {
	switch f {
	case FormatJPEG, FormatWebP, FormatWebPLossless:
		return true
	}
	return false
}

// RenditionSpec is a named, fixed configuration for one derived output.
type RenditionSpec struct {
	Name string `mapstructure:"name" json:"name"`

	// PixelLength is the target long-edge size. Sources whose longest edge
	// is at or below it are skipped, never upscaled.
	PixelLength int `mapstructure:"pixelLength" json:"pixel_length"`

	Quality int             `mapstructure:"quality" json:"quality"`
	Format  RenditionFormat `mapstructure:"format" json:"format"`

	// Sharpen is the sharpening sigma; zero disables sharpening.
	Sharpen float64 `mapstructure:"sharpen" json:"sharpen"`

	// Filter names the resampling filter (lanczos, catmullrom, linear, box).
	Filter string `mapstructure:"filter" json:"filter"`

	// Bucket is the destination object-store bucket for the artifact.
	Bucket string `mapstructure:"bucket" json:"bucket"`
}

// StorageID is the deterministic artifact name for an image under this spec.
// Regeneration always lands on the same id so stale artifacts are replaced.
func (s RenditionSpec) StorageID(imageID string) string {
	return imageID + s.Format.Extension()
}

// DefaultRenditionSpecs is the static specification table, ordered largest to
// smallest. The lowres entry feeds gallery thumbnails.
func DefaultRenditionSpecs() []RenditionSpec {
	return []RenditionSpec{
		{Name: "w3840", PixelLength: 3840, Quality: 80, Format: FormatWebP, Sharpen: 0.3, Filter: "lanczos", Bucket: "renditions-3840"},
		{Name: "w2560", PixelLength: 2560, Quality: 80, Format: FormatWebP, Sharpen: 0.3, Filter: "lanczos", Bucket: "renditions-2560"},
		{Name: "w1920", PixelLength: 1920, Quality: 82, Format: FormatJPEG, Sharpen: 0.3, Filter: "lanczos", Bucket: "renditions-1920"},
		{Name: "w800", PixelLength: 800, Quality: 85, Format: FormatJPEG, Sharpen: 0.5, Filter: "catmullrom", Bucket: "renditions-800"},
		{Name: LowResSpecName, PixelLength: 400, Quality: 75, Format: FormatJPEG, Sharpen: 0.5, Filter: "catmullrom", Bucket: "renditions-lowres"},
	}
}
