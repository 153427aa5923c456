package imagegen

import (
	"bytes"
	"image/png"
	"testing"
)

func TestPlaceholderIsDecodablePNG(t *testing.T) {
	out, err := Placeholder("Dana's personality profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != canvasWidth || bounds.Dy() != canvasHeight {
		t.Errorf("unexpected dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}
}
