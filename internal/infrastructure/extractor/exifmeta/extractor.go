// Package exifmeta reads technical metadata from image files: dimensions,
// camera EXIF fields, GPS coordinates, and a content hash. GPS coordinates
// are optionally resolved to a human location through an injected geocoder.
package exifmeta

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
	"github.com/mkorchagin/photostock/internal/core/usecase"
)

// Extractor implements ports.MetadataExtractor. A nil geocoder disables
// location resolution; EXIF absence is never an error.
type Extractor struct {
	geocoder ports.Geocoder
}

func New(geocoder ports.Geocoder) *Extractor {
	return &Extractor{geocoder: geocoder}
}

// Extract reads the file once for hashing and once for decoding. The
// identity fields (name, path, size, hash, dimensions, format) are
// mandatory; every EXIF-derived field is best effort.
func (e *Extractor) Extract(ctx context.Context, path string) (*domain.Metadata, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "exifmeta.Extract", err)
	}

	hash, err := usecase.HashFile(abs)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", abs, err)
	}

	meta := &domain.Metadata{
		Filename: filepath.Base(abs),
		Filepath: abs,
		FileSize: info.Size(),
		FileHash: hash,
	}

	if err := e.decodeDimensions(abs, meta); err != nil {
		return nil, err
	}
	e.readExif(abs, meta)

	if e.geocoder != nil && meta.GPSLatitude != nil && meta.GPSLongitude != nil {
		e.resolveLocation(ctx, meta)
	}

	return meta, nil
}

func (e *Extractor) decodeDimensions(path string, meta *domain.Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "exifmeta.decode", fmt.Errorf("%s: %w", path, err))
	}

	meta.Width = cfg.Width
	meta.Height = cfg.Height
	meta.Format = strings.ToUpper(format)
	return nil
}

// readExif fills camera, timestamp, and GPS fields. Files without EXIF
// (PNG, screenshots, stripped exports) simply yield none of them.
func (e *Extractor) readExif(path string, meta *domain.Metadata) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		slog.Debug("exif_absent", "path", path, "error", err)
		return
	}

	meta.CameraMake = tagString(x, exif.Make)
	meta.CameraModel = tagString(x, exif.Model)

	if taken, err := x.DateTime(); err == nil {
		utc := taken.UTC()
		meta.DateTaken = &utc
	}

	if lat, lon, err := x.LatLong(); err == nil {
		if lat != 0 || lon != 0 {
			meta.GPSLatitude = &lat
			meta.GPSLongitude = &lon
		}
	}
}

func (e *Extractor) resolveLocation(ctx context.Context, meta *domain.Metadata) {
	geoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	country, place, err := e.geocoder.Reverse(geoCtx, *meta.GPSLatitude, *meta.GPSLongitude)
	if err != nil {
		slog.Warn("geocode_failed",
			"path", meta.Filepath,
			"lat", *meta.GPSLatitude,
			"lon", *meta.GPSLongitude,
			"error", err)
		return
	}
	meta.LocationCountry = country
	meta.LocationName = place
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(val), "\x00")
}
