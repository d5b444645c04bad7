// Package thumbnail renders browsing previews with a fixed width and a
// hierarchical on-disk layout keyed by record ID, keeping any single
// directory from accumulating thousands of files.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

const (
	defaultWidth   = 300
	defaultQuality = 85
)

// Generator implements ports.ThumbnailGenerator. Output is always JPEG
// regardless of the source format.
type Generator struct {
	outputDir string
	width     int
	quality   int
}

func New(outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir %s: %w", outputDir, err)
	}
	return &Generator{
		outputDir: outputDir,
		width:     defaultWidth,
		quality:   defaultQuality,
	}, nil
}

// Generate writes a resized copy under ID-derived subdirectories:
// record 1234 lands in <out>/001/234/<stem>_thumb.jpg. Aspect ratio is
// preserved; EXIF orientation is applied before resizing.
func (g *Generator) Generate(ctx context.Context, path string, imageID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "thumbnail.Generate", fmt.Errorf("%s: %w", path, err))
	}

	thumbPath := g.thumbnailPath(path, imageID)
	if err := os.MkdirAll(filepath.Dir(thumbPath), 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail subdir: %w", err)
	}

	resized := imaging.Resize(src, g.width, 0, imaging.Lanczos)
	if err := imaging.Save(resized, thumbPath, imaging.JPEGQuality(g.quality)); err != nil {
		return "", fmt.Errorf("save thumbnail %s: %w", thumbPath, err)
	}

	slog.Debug("thumbnail_written", "image_id", imageID, "path", thumbPath)
	return thumbPath, nil
}

// Delete removes a previously generated thumbnail. A missing file is not
// an error.
func (g *Generator) Delete(thumbPath string) error {
	if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete thumbnail %s: %w", thumbPath, err)
	}
	return nil
}

func (g *Generator) thumbnailPath(sourcePath string, imageID int64) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	name := stem + "_thumb.jpg"

	if imageID > 0 {
		id := fmt.Sprintf("%06d", imageID)
		return filepath.Join(g.outputDir, id[:3], id[3:], name)
	}

	prefix := "xx"
	if len(stem) >= 2 {
		prefix = strings.ToLower(stem[:2])
	}
	return filepath.Join(g.outputDir, prefix, name)
}
