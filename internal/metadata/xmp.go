package metadata

import (
	"bytes"
	"encoding/xml"
	"log/slog"
	"strings"
)

// XMP namespaces the extractor understands.
const (
	nsDC        = "http://purl.org/dc/elements/1.1/"
	nsPhotoshop = "http://ns.adobe.com/photoshop/1.0/"
	nsAux       = "http://ns.adobe.com/exif/1.0/aux/"
	nsCRS       = "http://ns.adobe.com/camera-raw-settings/1.0/"
)

var (
	xmpOpen  = []byte("<x:xmpmeta")
	xmpClose = []byte("</x:xmpmeta>")
)

// xmpDirectory scans the embedded XMP packet for the Dublin Core, Photoshop
// and aux/camera-raw properties the gallery uses.
type xmpDirectory struct {
	packet []byte
	logger *slog.Logger
}

func newXMPDirectory(data []byte, logger *slog.Logger) (*xmpDirectory, bool) {
	start := bytes.Index(data, xmpOpen)
	if start < 0 {
		return nil, false
	}
	end := bytes.Index(data[start:], xmpClose)
	if end < 0 {
		return nil, false
	}
	return &xmpDirectory{packet: data[start : start+end+len(xmpClose)], logger: logger}, true
}

func (d *xmpDirectory) name() string { return "xmp" }

func (d *xmpDirectory) tryExtract(p *Patch) {
	dec := xml.NewDecoder(bytes.NewReader(d.packet))

	// element path of namespace-qualified names, e.g. dc:subject > rdf:li
	var path []xml.Name

	inside := func(space, local string) bool {
		for _, n := range path {
			if n.Space == space && n.Local == local {
				return true
			}
		}
		return false
	}

	set := func(dst *string, value string) {
		value = strings.TrimSpace(value)
		if value != "" && *dst == "" {
			*dst = value
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			// Truncated or malformed packets surrender whatever was
			// already collected.
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			path = append(path, t.Name)
			// property-as-attribute form on rdf:Description
			if t.Name.Local == "Description" {
				for _, attr := range t.Attr {
					d.applyAttr(p, attr, set)
				}
			}
		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || len(path) == 0 {
				continue
			}
			leaf := path[len(path)-1]
			switch {
			case leaf.Local == "li" && inside(nsDC, "subject"):
				p.Keywords = append(p.Keywords, text)
			case leaf.Local == "li" && inside(nsDC, "description"):
				set(&p.Caption, text)
			case leaf.Local == "li" && inside(nsDC, "title"):
				set(&p.Headline, text)
			case leaf.Local == "li" && inside(nsDC, "creator"):
				set(&p.Credit, text)
			case leaf.Space == nsPhotoshop:
				d.applyPhotoshop(p, leaf.Local, text, set)
			case leaf.Space == nsAux && leaf.Local == "Lens":
				set(&p.Lens, text)
			case leaf.Space == nsCRS && leaf.Local == "LensProfileName":
				set(&p.LensProfile, text)
			case leaf.Space == nsAux && leaf.Local == "LensID":
				set(&p.LensProfile, text)
			}
		}
	}
}

func (d *xmpDirectory) applyAttr(p *Patch, attr xml.Attr, set func(*string, string)) {
	switch attr.Name.Space {
	case nsPhotoshop:
		d.applyPhotoshop(p, attr.Name.Local, attr.Value, set)
	case nsAux:
		if attr.Name.Local == "Lens" {
			set(&p.Lens, attr.Value)
		}
	case nsCRS:
		if attr.Name.Local == "LensProfileName" {
			set(&p.LensProfile, attr.Value)
		}
	}
}

func (d *xmpDirectory) applyPhotoshop(p *Patch, local, value string, set func(*string, string)) {
	switch local {
	case "Credit":
		set(&p.Credit, value)
	case "City":
		set(&p.City, value)
	case "State":
		set(&p.State, value)
	case "Country":
		set(&p.Country, value)
	case "Headline":
		set(&p.Headline, value)
	}
}

// inferFromLensProfile synthesizes a best-guess camera/lens description from
// a lens-profile identifier such as
// "Adobe (Canon EF 24-105mm f/4L IS USM)". The parenthesized section names
// the lens; its leading words name the maker and body family.
func inferFromLensProfile(profile string) (model, lens string, ok bool) {
	s := strings.TrimSpace(profile)
	if s == "" {
		return "", "", false
	}

	if open := strings.Index(s, "("); open >= 0 {
		if end := strings.LastIndex(s, ")"); end > open {
			s = strings.TrimSpace(s[open+1 : end])
		}
	}
	if s == "" {
		return "", "", false
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", "", false
	}
	n := len(fields)
	if n > 2 {
		n = 2
	}
	return strings.Join(fields[:n], " "), s, true
}
