package metadata

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// Maker-note parsers feed the vendor ISO fallback.
	exif.RegisterParsers(mknote.All...)
}

// exifDirectory reads the TIFF/EXIF directory, including GPS and maker notes.
type exifDirectory struct {
	x      *exif.Exif
	logger *slog.Logger
}

func newExifDirectory(data []byte, logger *slog.Logger) (*exifDirectory, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil || x == nil {
		return nil, false
	}
	return &exifDirectory{x: x, logger: logger}, true
}

func (d *exifDirectory) name() string { return "exif" }

func (d *exifDirectory) tryExtract(p *Patch) {
	if dt, err := d.x.DateTime(); err == nil {
		p.CapturedAt = &dt
	}

	if s, ok := d.stringTag(exif.Make); ok {
		p.CameraMake = s
	}
	if s, ok := d.stringTag(exif.Model); ok {
		p.CameraModel = s
	}
	if s, ok := d.stringTag(exif.FieldName("LensModel")); ok {
		p.Lens = s
	}

	if num, den, ok := d.ratTag(exif.FNumber); ok && den != 0 {
		p.Aperture = "f/" + strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
	}
	if num, den, ok := d.ratTag(exif.ExposureTime); ok && den != 0 {
		if num == 1 {
			p.ShutterSpeed = fmt.Sprintf("1/%ds", den)
		} else {
			p.ShutterSpeed = strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64) + "s"
		}
	}
	if num, den, ok := d.ratTag(exif.FocalLength); ok && den != 0 {
		p.FocalLength = strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64) + "mm"
	}

	p.ISO = d.extractISO()

	if lat, lon, err := d.x.LatLong(); err == nil {
		p.HasGPS = true
		p.Latitude = lat
		p.Longitude = lon
	}
}

// extractISO tries the standard rating tag first and falls back to the
// vendor maker-note tag. Unparseable values are logged and ignored.
func (d *exifDirectory) extractISO() int {
	if tag, err := d.x.Get(exif.ISOSpeedRatings); err == nil && tag != nil {
		if v, err := tag.Int(0); err == nil && v > 0 {
			return v
		}
	}

	// Nikon bodies write the rating into the maker note, sometimes as a
	// literal "ISO <value>" string.
	tag, err := d.x.Get(mknote.ISOSpeed)
	if err != nil || tag == nil {
		return 0
	}
	if v, ok := parseVendorISO(tag); ok {
		return v
	}
	d.logger.Debug("unparseable vendor iso tag", "value", tag.String())
	return 0
}

// vendorTag is the slice of a maker-note tag the ISO fallback reads.
type vendorTag interface {
	Int(i int) (int, error)
	StringVal() (string, error)
}

// parseVendorISO handles the vendor tag encodings seen in the wild: a short
// pair where the second entry is the rating, or a string carrying a literal
// "ISO" prefix.
func parseVendorISO(tag vendorTag) (int, bool) {
	if v, err := tag.Int(1); err == nil && v > 0 {
		return v, true
	}
	if v, err := tag.Int(0); err == nil && v > 0 {
		return v, true
	}
	if s, err := tag.StringVal(); err == nil {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "ISO"))
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

func (d *exifDirectory) stringTag(field exif.FieldName) (string, bool) {
	tag, err := d.x.Get(field)
	if err != nil || tag == nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	return s, s != ""
}

func (d *exifDirectory) ratTag(field exif.FieldName) (int64, int64, bool) {
	tag, err := d.x.Get(field)
	if err != nil || tag == nil {
		return 0, 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		return 0, 0, false
	}
	return num, den, true
}
