package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

type pagedRepo struct {
	images []domain.Image
}

func (r *pagedRepo) List(_ context.Context, limit, offset int, status domain.ProcessingStatus) ([]domain.Image, error) {
	var filtered []domain.Image
	for _, img := range r.images {
		if status == "" || img.Status == status {
			filtered = append(filtered, img)
		}
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

func (r *pagedRepo) Create(context.Context, *domain.Image) error { return nil }
func (r *pagedRepo) StoreComplete(context.Context, *domain.Metadata, []string) (*domain.Image, error) {
	return nil, nil
}
func (r *pagedRepo) GetByID(context.Context, int64) (*domain.Image, error)       { return nil, nil }
func (r *pagedRepo) GetByFilepath(context.Context, string) (*domain.Image, error) { return nil, nil }
func (r *pagedRepo) GetByHash(context.Context, string) (*domain.Image, error)    { return nil, nil }
func (r *pagedRepo) GetByFilename(context.Context, string) ([]domain.Image, error) {
	return nil, nil
}
func (r *pagedRepo) MarkProcessing(context.Context, int64) error           { return nil }
func (r *pagedRepo) MarkCompleted(context.Context, int64, []string) error  { return nil }
func (r *pagedRepo) MarkFailed(context.Context, int64, string) error       { return nil }
func (r *pagedRepo) UpdateFields(context.Context, int64, []string, *domain.Metadata, []string) (bool, error) {
	return false, nil
}
func (r *pagedRepo) SetThumbnailPath(context.Context, int64, string) error { return nil }
func (r *pagedRepo) DeleteAll(context.Context) (int64, error)              { return 0, nil }
func (r *pagedRepo) GetFailed(context.Context) ([]domain.Image, error)     { return nil, nil }
func (r *pagedRepo) GetUnprocessed(context.Context, int) ([]domain.Image, error) {
	return nil, nil
}
func (r *pagedRepo) CountByStatus(context.Context) (map[domain.ProcessingStatus]int, error) {
	return nil, nil
}

func TestExportWritesHeaderAndRows(t *testing.T) {
	repo := &pagedRepo{images: []domain.Image{
		{
			ID: 1, Filename: "a.jpg", Status: domain.StatusCompleted,
			Format: "JPEG", Width: 4000, Height: 3000,
			CameraMake: "Canon", CameraModel: "R5",
			LocationCountry: "Iceland", LocationName: "Vik",
			Keywords: []string{"cliff", "surf"},
		},
		{
			ID: 2, Filename: "b.jpg", Status: domain.StatusFailed,
			ErrorMessage: "decode error",
		},
	}}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	count, err := NewExcelExporter(repo).Export(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("Export() = %d rows, want 2", count)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Catalog", "B1"); got != "Filename" {
		t.Errorf("B1 = %q, want Filename", got)
	}
	if got, _ := f.GetCellValue("Catalog", "B2"); got != "a.jpg" {
		t.Errorf("B2 = %q, want a.jpg", got)
	}
	if got, _ := f.GetCellValue("Catalog", "K2"); got != "cliff, surf" {
		t.Errorf("K2 = %q, want joined keywords", got)
	}
	if got, _ := f.GetCellValue("Catalog", "L3"); got != "decode error" {
		t.Errorf("L3 = %q, want decode error", got)
	}
}

func TestExportFiltersByStatus(t *testing.T) {
	repo := &pagedRepo{images: []domain.Image{
		{ID: 1, Filename: "done.jpg", Status: domain.StatusCompleted},
		{ID: 2, Filename: "broken.jpg", Status: domain.StatusFailed},
	}}

	path := filepath.Join(t.TempDir(), "failed.xlsx")
	count, err := NewExcelExporter(repo).Export(context.Background(), path, domain.StatusFailed)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Export() = %d rows, want 1", count)
	}
}
