package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

// imageExtensions is the allow-list of file extensions treated as images.
// Lookup keys are lowercase including the dot.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tiff": {},
	".tif":  {},
	".webp": {},
	".heic": {},
	".heif": {},
}

// Scanner walks a directory tree and returns candidate image files in a
// deterministic order. Hidden files and unreadable subtrees are skipped.
type Scanner struct{}

func New() *Scanner {
	return &Scanner{}
}

// Scan lists image files under root. With recursive set it descends into
// subdirectories, otherwise only direct children are considered. The result
// is sorted case-insensitively by base name so repeated runs visit files in
// the same order.
func (s *Scanner) Scan(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "scanner.Scan", fmt.Errorf("stat %s: %w", root, err))
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "scanner.Scan", fmt.Errorf("%s is not a directory", root))
	}

	var files []string
	if recursive {
		files, err = s.walk(root)
	} else {
		files, err = s.listDir(root)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		a := strings.ToLower(filepath.Base(files[i]))
		b := strings.ToLower(filepath.Base(files[j]))
		if a == b {
			return files[i] < files[j]
		}
		return a < b
	})

	slog.Debug("scan_finished", "root", root, "recursive", recursive, "found", len(files))
	return files, nil
}

func (s *Scanner) walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries do not abort the whole scan.
			slog.Warn("scan_entry_skipped", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// Only hidden files are excluded; a visible image inside a
			// hidden directory is still a candidate.
			return nil
		}
		if s.accepts(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func (s *Scanner) listDir(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", root, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.accepts(entry.Name()) {
			files = append(files, filepath.Join(root, entry.Name()))
		}
	}
	return files, nil
}

func (s *Scanner) accepts(name string) bool {
	if isHidden(name) {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
