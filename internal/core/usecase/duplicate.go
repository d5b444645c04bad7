package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
)

const maxSuffixProbes = 9999

// DuplicateClassifier decides whether a candidate file matches stored
// records by content hash, exact filepath, or colliding filename.
type DuplicateClassifier struct {
	repo ports.ImageRepository
}

func NewDuplicateClassifier(repo ports.ImageRepository) *DuplicateClassifier {
	return &DuplicateClassifier{repo: repo}
}

// Check classifies path against storage. The content-hash check runs first
// because it is the authoritative same-photo signal and must win over path
// and name collisions; the filepath check always runs; the filename check
// is optional and only yields a suggested unique name, never a duplicate.
func (c *DuplicateClassifier) Check(
	ctx context.Context,
	path string,
	checkHash, checkFilename bool,
) (domain.DuplicateCheck, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.DuplicateCheck{}, fmt.Errorf("resolve path: %w", err)
	}
	filename := filepath.Base(abs)

	if checkHash {
		hash, err := HashFile(abs)
		if err != nil {
			return domain.DuplicateCheck{}, fmt.Errorf("hash file: %w", err)
		}
		existing, err := c.repo.GetByHash(ctx, hash)
		if err != nil && !domain.IsKind(err, domain.ErrImageNotFound) {
			return domain.DuplicateCheck{}, fmt.Errorf("lookup by hash: %w", err)
		}
		if existing != nil {
			slog.Info("duplicate_content_match", "filename", filename, "existing_id", existing.ID)
			return domain.DuplicateCheck{
				IsDuplicate:       true,
				Kind:              domain.DuplicateContent,
				ExistingID:        existing.ID,
				SuggestedFilename: filename,
			}, nil
		}
	}

	existing, err := c.repo.GetByFilepath(ctx, abs)
	if err != nil && !domain.IsKind(err, domain.ErrImageNotFound) {
		return domain.DuplicateCheck{}, fmt.Errorf("lookup by filepath: %w", err)
	}
	if existing != nil {
		slog.Info("duplicate_filepath_match", "filepath", abs, "existing_id", existing.ID)
		return domain.DuplicateCheck{
			IsDuplicate:       true,
			Kind:              domain.DuplicateFilepath,
			ExistingID:        existing.ID,
			SuggestedFilename: filename,
		}, nil
	}

	if checkFilename {
		matches, err := c.repo.GetByFilename(ctx, filename)
		if err != nil {
			return domain.DuplicateCheck{}, fmt.Errorf("lookup by filename: %w", err)
		}
		if len(matches) > 0 {
			suggested, err := c.uniqueFilename(ctx, filename)
			if err != nil {
				return domain.DuplicateCheck{}, err
			}
			slog.Info("filename_collision", "filename", filename, "suggested", suggested)
			return domain.DuplicateCheck{
				IsDuplicate:       false,
				Kind:              domain.DuplicateFilename,
				SuggestedFilename: suggested,
			}, nil
		}
	}

	return domain.DuplicateCheck{
		IsDuplicate:       false,
		Kind:              domain.DuplicateNone,
		SuggestedFilename: filename,
	}, nil
}

// uniqueFilename probes name_001.ext, name_002.ext, ... until an unused
// name is found. Past the probe cap it falls back to an epoch-timestamp
// suffix so the search always terminates.
func (c *DuplicateClassifier) uniqueFilename(ctx context.Context, filename string) (string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for counter := 1; counter <= maxSuffixProbes; counter++ {
		candidate := fmt.Sprintf("%s_%03d%s", stem, counter, ext)
		matches, err := c.repo.GetByFilename(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe filename %q: %w", candidate, err)
		}
		if len(matches) == 0 {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s_%d%s", stem, time.Now().Unix(), ext), nil
}

// HashFile computes the SHA-256 digest of a file's raw bytes, streaming in
// 8 KiB chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, 8192)); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
