package metadata

import (
	"bytes"
	"encoding/binary"
	"log/slog"
)

// IPTC IIM lives inside the JPEG APP13 segment as a Photoshop 8BIM image
// resource. Nothing in the module's dependency set parses it, so the few
// record-2 datasets the gallery cares about are decoded here directly.

const iptcResourceID = 0x0404

// record 2 dataset numbers (IPTC IIM v4)
const (
	dsObjectName    = 5
	dsKeywords      = 25
	dsByline        = 80
	dsCity          = 90
	dsSubLocation   = 92
	dsProvinceState = 95
	dsCountryName   = 101
	dsHeadline      = 105
	dsCredit        = 110
	dsCaption       = 120
)

type iptcDirectory struct {
	datasets map[uint8][]string
	logger   *slog.Logger
}

func newIPTCDirectory(data []byte, logger *slog.Logger) (*iptcDirectory, bool) {
	block := findPhotoshopBlock(data)
	if block == nil {
		return nil, false
	}
	iim := findIPTCResource(block)
	if iim == nil {
		return nil, false
	}
	datasets := parseIIM(iim)
	if len(datasets) == 0 {
		return nil, false
	}
	return &iptcDirectory{datasets: datasets, logger: logger}, true
}

func (d *iptcDirectory) name() string { return "iptc" }

func (d *iptcDirectory) tryExtract(p *Patch) {
	p.Keywords = append(p.Keywords, d.datasets[dsKeywords]...)

	if v := d.first(dsCredit); v != "" {
		p.Credit = v
	} else if v := d.first(dsByline); v != "" {
		p.Credit = v
	}
	if v := d.first(dsCaption); v != "" {
		p.Caption = v
	}
	if v := d.first(dsHeadline); v != "" {
		p.Headline = v
	} else if v := d.first(dsObjectName); v != "" {
		p.Headline = v
	}
	if v := d.first(dsSubLocation); v != "" {
		p.Location = v
	}
	if v := d.first(dsCity); v != "" {
		p.City = v
	}
	if v := d.first(dsProvinceState); v != "" {
		p.State = v
	}
	if v := d.first(dsCountryName); v != "" {
		p.Country = v
	}
}

func (d *iptcDirectory) first(dataset uint8) string {
	if vs := d.datasets[dataset]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

var photoshopHeader = []byte("Photoshop 3.0\x00")

// findPhotoshopBlock walks the JPEG segment chain looking for the APP13
// segment carrying Photoshop image resources. Returns nil for non-JPEG input
// or truncated streams.
func findPhotoshopBlock(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return nil
		}
		marker := data[pos+1]
		// standalone markers without a length
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD9) {
			pos += 2
			continue
		}
		// metadata segments only precede the scan data
		if marker == 0xDA {
			return nil
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(data) {
			return nil
		}
		if marker == 0xED {
			payload := data[pos+4 : pos+2+length]
			if bytes.HasPrefix(payload, photoshopHeader) {
				return payload[len(photoshopHeader):]
			}
		}
		pos += 2 + length
	}
	return nil
}

// findIPTCResource walks the 8BIM resource blocks for the IPTC resource.
func findIPTCResource(block []byte) []byte {
	pos := 0
	for pos+12 <= len(block) {
		if !bytes.Equal(block[pos:pos+4], []byte("8BIM")) {
			return nil
		}
		resourceID := binary.BigEndian.Uint16(block[pos+4 : pos+6])
		pos += 6

		// pascal name, padded to an even total length
		nameLen := int(block[pos])
		pos += 1 + nameLen
		if (1+nameLen)%2 != 0 {
			pos++
		}
		if pos+4 > len(block) {
			return nil
		}

		size := int(binary.BigEndian.Uint32(block[pos : pos+4]))
		pos += 4
		if pos+size > len(block) {
			return nil
		}
		if resourceID == iptcResourceID {
			return block[pos : pos+size]
		}
		pos += size
		if size%2 != 0 {
			pos++
		}
	}
	return nil
}

// parseIIM decodes the record-2 datasets of an IIM byte stream. Extended
// (>32k) datasets are not expected in photo captions and abort the parse.
func parseIIM(iim []byte) map[uint8][]string {
	datasets := make(map[uint8][]string)
	pos := 0
	for pos+5 <= len(iim) {
		if iim[pos] != 0x1C {
			break
		}
		record := iim[pos+1]
		dataset := iim[pos+2]
		length := int(binary.BigEndian.Uint16(iim[pos+3 : pos+5]))
		pos += 5
		if length&0x8000 != 0 {
			break
		}
		if pos+length > len(iim) {
			break
		}
		if record == 2 && length > 0 {
			value := string(bytes.TrimRight(iim[pos:pos+length], "\x00"))
			if value != "" {
				datasets[dataset] = append(datasets[dataset], value)
			}
		}
		pos += length
	}
	return datasets
}
