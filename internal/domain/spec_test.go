package domain

import "testing"

func TestRenditionFormat(t *testing.T) {
	if FormatJPEG.Extension() != ".jpg" || FormatJPEG.ContentType() != "image/jpeg" {
		t.Error("unexpected jpeg format mapping")
	}
	if FormatWebP.Extension() != ".webp" || FormatWebP.ContentType() != "image/webp" {
		t.Error("unexpected webp format mapping")
	}
	if !FormatWebPLossless.Lossless() || FormatWebP.Lossless() {
		t.Error("unexpected lossless flags")
	}
	if RenditionFormat("png").Valid() {
		t.Error("expected unknown format to be invalid")
	}
}

func TestStorageIDIsDeterministic(t *testing.T) {
	spec := RenditionSpec{Name: "w800", Format: FormatJPEG}
	a := spec.StorageID("img-1")
	b := spec.StorageID("img-1")
	if a != b {
		t.Errorf("expected deterministic storage id, got '%s' and '%s'", a, b)
	}
	if a != "img-1.jpg" {
		t.Errorf("expected 'img-1.jpg', got '%s'", a)
	}
}

func TestDefaultRenditionSpecs(t *testing.T) {
	specs := DefaultRenditionSpecs()
	if len(specs) == 0 {
		t.Fatal("expected a non-empty default spec table")
	}

	hasLowRes := false
	for _, spec := range specs {
		if spec.Name == "" || spec.PixelLength <= 0 || spec.Bucket == "" {
			t.Errorf("spec '%s' is incomplete", spec.Name)
		}
		if !spec.Format.Valid() {
			t.Errorf("spec '%s' has invalid format '%s'", spec.Name, spec.Format)
		}
		if spec.Name == LowResSpecName {
			hasLowRes = true
		}
	}
	if !hasLowRes {
		t.Error("expected the default table to include the lowres spec")
	}
}
