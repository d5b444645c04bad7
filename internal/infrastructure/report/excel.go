// Package report exports the image catalog to an Excel workbook for
// editors who review keywording outside the pipeline.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
)

const sheetName = "Catalog"

var headers = []string{
	"ID", "Filename", "Status", "Format", "Width", "Height",
	"Camera", "Date Taken", "Country", "Location", "Keywords", "Error",
}

// ExcelExporter writes one row per image record, paging through the
// repository so large catalogs do not load into memory at once.
type ExcelExporter struct {
	repo     ports.ImageRepository
	pageSize int
}

func NewExcelExporter(repo ports.ImageRepository) *ExcelExporter {
	return &ExcelExporter{repo: repo, pageSize: 500}
}

// Export writes the workbook to path. An empty status exports every
// record; otherwise only the matching ones.
func (e *ExcelExporter) Export(ctx context.Context, path string, status domain.ProcessingStatus) (int, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return 0, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return 0, fmt.Errorf("write header %s: %w", header, err)
		}
	}

	row := 2
	for offset := 0; ; offset += e.pageSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		page, err := e.repo.List(ctx, e.pageSize, offset, status)
		if err != nil {
			return 0, fmt.Errorf("list images at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			if err := e.writeRow(f, row, &page[i]); err != nil {
				return 0, err
			}
			row++
		}
		if len(page) < e.pageSize {
			break
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save workbook %s: %w", path, err)
	}

	exported := row - 2
	slog.Info("catalog_exported", "path", path, "rows", exported)
	return exported, nil
}

func (e *ExcelExporter) writeRow(f *excelize.File, row int, img *domain.Image) error {
	camera := strings.TrimSpace(img.CameraMake + " " + img.CameraModel)
	var taken string
	if img.DateTaken != nil {
		taken = img.DateTaken.Format(time.DateTime)
	}

	values := []any{
		img.ID, img.Filename, string(img.Status), img.Format,
		img.Width, img.Height, camera, taken,
		img.LocationCountry, img.LocationName,
		strings.Join(img.Keywords, ", "), img.ErrorMessage,
	}
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name row=%d col=%d: %w", row, i+1, err)
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	return nil
}
