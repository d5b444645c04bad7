package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

type statusCall struct {
	imageID int64
	status  domain.ProcessingStatus
	message string
}

type updateCall struct {
	imageID  int64
	fields   []string
	meta     *domain.Metadata
	keywords []string
}

// repoFake is an in-memory ImageRepository that records every mutating call.
type repoFake struct {
	nextID  int64
	images  map[int64]*domain.Image
	creates int

	statusCalls  []statusCall
	updateCalls  []updateCall
	updateResult *bool
	deleteCalls  int

	thumbnailPaths map[int64]string
}

func newRepoFake() *repoFake {
	return &repoFake{
		images:         make(map[int64]*domain.Image),
		thumbnailPaths: make(map[int64]string),
	}
}

func (f *repoFake) seed(img domain.Image) *domain.Image {
	f.nextID++
	img.ID = f.nextID
	stored := img
	f.images[img.ID] = &stored
	return &stored
}

func (f *repoFake) Create(_ context.Context, img *domain.Image) error {
	f.creates++
	f.nextID++
	img.ID = f.nextID
	stored := *img
	f.images[img.ID] = &stored
	return nil
}

func (f *repoFake) StoreComplete(_ context.Context, meta *domain.Metadata, keywords []string) (*domain.Image, error) {
	f.creates++
	f.nextID++
	if keywords == nil {
		keywords = []string{}
	}
	now := time.Now().UTC()
	img := &domain.Image{
		ID:          f.nextID,
		Filename:    meta.Filename,
		Filepath:    meta.Filepath,
		FileSize:    meta.FileSize,
		FileHash:    meta.FileHash,
		Format:      meta.Format,
		Width:       meta.Width,
		Height:      meta.Height,
		Keywords:    keywords,
		Categories:  []string{},
		Status:      domain.StatusCompleted,
		ProcessedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored := *img
	f.images[img.ID] = &stored
	return img, nil
}

func (f *repoFake) GetByID(_ context.Context, id int64) (*domain.Image, error) {
	img, ok := f.images[id]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	copied := *img
	return &copied, nil
}

func (f *repoFake) GetByFilepath(_ context.Context, path string) (*domain.Image, error) {
	for _, img := range f.images {
		if img.Filepath == path {
			copied := *img
			return &copied, nil
		}
	}
	return nil, domain.ErrImageNotFound
}

func (f *repoFake) GetByHash(_ context.Context, hash string) (*domain.Image, error) {
	for _, img := range f.images {
		if img.FileHash != "" && img.FileHash == hash {
			copied := *img
			return &copied, nil
		}
	}
	return nil, domain.ErrImageNotFound
}

func (f *repoFake) GetByFilename(_ context.Context, name string) ([]domain.Image, error) {
	var matches []domain.Image
	for _, img := range f.images {
		if img.Filename == name {
			matches = append(matches, *img)
		}
	}
	return matches, nil
}

func (f *repoFake) MarkProcessing(_ context.Context, id int64) error {
	return f.applyStatus(id, domain.StatusProcessing, "")
}

func (f *repoFake) MarkCompleted(_ context.Context, id int64, keywords []string) error {
	if img, ok := f.images[id]; ok && keywords != nil {
		img.Keywords = keywords
	}
	return f.applyStatus(id, domain.StatusCompleted, "")
}

func (f *repoFake) MarkFailed(_ context.Context, id int64, message string) error {
	return f.applyStatus(id, domain.StatusFailed, message)
}

func (f *repoFake) applyStatus(id int64, status domain.ProcessingStatus, message string) error {
	f.statusCalls = append(f.statusCalls, statusCall{imageID: id, status: status, message: message})
	img, ok := f.images[id]
	if !ok {
		return domain.ErrImageNotFound
	}
	img.Status = status
	img.ErrorMessage = message
	return nil
}

func (f *repoFake) UpdateFields(_ context.Context, id int64, fields []string, meta *domain.Metadata, keywords []string) (bool, error) {
	f.updateCalls = append(f.updateCalls, updateCall{imageID: id, fields: fields, meta: meta, keywords: keywords})
	if f.updateResult != nil {
		return *f.updateResult, nil
	}
	if _, ok := f.images[id]; !ok {
		return false, nil
	}
	modified := false
	for _, column := range domain.ExpandFields(fields) {
		if column == domain.ColKeywordList {
			if keywords != nil {
				f.images[id].Keywords = keywords
				modified = true
			}
			continue
		}
		if meta != nil {
			modified = true
		}
	}
	return modified, nil
}

func (f *repoFake) SetThumbnailPath(_ context.Context, id int64, path string) error {
	if _, ok := f.images[id]; !ok {
		return domain.ErrImageNotFound
	}
	f.thumbnailPaths[id] = path
	f.images[id].ThumbnailPath = path
	return nil
}

func (f *repoFake) DeleteAll(_ context.Context) (int64, error) {
	f.deleteCalls++
	count := int64(len(f.images))
	f.images = make(map[int64]*domain.Image)
	return count, nil
}

func (f *repoFake) GetFailed(_ context.Context) ([]domain.Image, error) {
	return f.listByStatus(domain.StatusFailed), nil
}

func (f *repoFake) GetUnprocessed(_ context.Context, limit int) ([]domain.Image, error) {
	pending := f.listByStatus(domain.StatusPending)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (f *repoFake) List(_ context.Context, limit, offset int, status domain.ProcessingStatus) ([]domain.Image, error) {
	var out []domain.Image
	if status == "" {
		for _, img := range f.images {
			out = append(out, *img)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	} else {
		out = f.listByStatus(status)
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *repoFake) CountByStatus(_ context.Context) (map[domain.ProcessingStatus]int, error) {
	counts := make(map[domain.ProcessingStatus]int)
	for _, img := range f.images {
		counts[img.Status]++
	}
	return counts, nil
}

func (f *repoFake) listByStatus(status domain.ProcessingStatus) []domain.Image {
	var out []domain.Image
	for _, img := range f.images {
		if img.Status == status {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// scannerStub returns a fixed, pre-ordered path list.
type scannerStub struct {
	paths []string
	err   error
}

func (s *scannerStub) Scan(string, bool) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.paths, nil
}

// extractorFake hashes real files so duplicate classification over the fake
// repo behaves like production; failPaths forces per-file extraction errors.
type extractorFake struct {
	calls     int
	failPaths map[string]bool
}

func (f *extractorFake) Extract(_ context.Context, path string) (*domain.Metadata, error) {
	f.calls++
	if f.failPaths[path] {
		return nil, errors.New("cannot decode image")
	}
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}
	return &domain.Metadata{
		Filename: filepath.Base(path),
		Filepath: path,
		FileHash: hash,
		Format:   "JPEG",
		Width:    1200,
		Height:   800,
		FileSize: 1024,
	}, nil
}

type taggerFake struct {
	calls int
	tags  []string
	err   error
}

func (f *taggerFake) Generate(context.Context, string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

type thumbsFake struct {
	calls int
	path  string
	err   error
}

func (f *thumbsFake) Generate(_ context.Context, _ string, imageID int64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type notifierFake struct {
	published []int64
}

func (f *notifierFake) PublishImageProcessed(_ context.Context, imageID int64) error {
	f.published = append(f.published, imageID)
	return nil
}
