package exifmeta

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

type geocoderStub struct {
	calls int
}

func (g *geocoderStub) Reverse(_ context.Context, _, _ float64) (string, string, error) {
	g.calls++
	return "Iceland", "Reykjavik", nil
}

func TestExtractReadsIdentityAndDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "frame.png", 32, 24)

	meta, err := New(nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if meta.Filename != "frame.png" {
		t.Errorf("Filename = %s", meta.Filename)
	}
	if meta.Width != 32 || meta.Height != 24 {
		t.Errorf("dimensions = %dx%d, want 32x24", meta.Width, meta.Height)
	}
	if meta.Format != "PNG" {
		t.Errorf("Format = %s, want PNG", meta.Format)
	}
	if meta.FileHash == "" || meta.FileSize == 0 {
		t.Errorf("identity fields missing: hash=%q size=%d", meta.FileHash, meta.FileSize)
	}
	if meta.CameraMake != "" || meta.DateTaken != nil || meta.GPSLatitude != nil {
		t.Errorf("PNG without EXIF must leave camera fields empty: %+v", meta)
	}
}

func TestExtractSkipsGeocoderWithoutGPS(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "nogps.png", 8, 8)

	geo := &geocoderStub{}
	meta, err := New(geo).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if geo.calls != 0 {
		t.Fatalf("geocoder called %d times for a file without GPS", geo.calls)
	}
	if meta.LocationCountry != "" || meta.LocationName != "" {
		t.Fatalf("location fields set without GPS: %+v", meta)
	}
}

func TestExtractRejectsNonImagePayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.jpg")
	if err := os.WriteFile(path, []byte("definitely not image bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := New(nil).Extract(context.Background(), path)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Extract() error = %v, want ErrInvalidInput", err)
	}
}

func TestExtractRejectsMissingFile(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Extract() error = %v, want ErrInvalidInput", err)
	}
}
