package faceservice

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestDownscale(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		scale         float64
		wantW, wantH  int
	}{
		{"quarter", 640, 480, 0.25, 160, 120},
		{"half", 100, 50, 0.5, 50, 25},
		{"unchanged at 1", 64, 48, 1, 64, 48},
		{"unchanged at 0", 64, 48, 0, 64, 48},
		{"never empty", 3, 3, 0.1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downscale(createTestImage(tt.width, tt.height, color.Gray{Y: 128}), tt.scale)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("Downscale() bounds = %dx%d, want %dx%d",
					got.Bounds().Dx(), got.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(createTestImage(20, 10, color.Black))
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}
