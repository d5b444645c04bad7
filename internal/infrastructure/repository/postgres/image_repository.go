package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

const maxErrorMessageLen = 1000

type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ImageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across pipeline/api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS images (
	id BIGSERIAL PRIMARY KEY,
	filename TEXT NOT NULL,
	filepath TEXT NOT NULL UNIQUE,
	file_size BIGINT NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT '',
	file_hash TEXT NOT NULL DEFAULT '',
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	camera_make TEXT NOT NULL DEFAULT '',
	camera_model TEXT NOT NULL DEFAULT '',
	gps_latitude DOUBLE PRECISION,
	gps_longitude DOUBLE PRECISION,
	date_taken TIMESTAMPTZ,
	location_country TEXT NOT NULL DEFAULT '',
	location_name TEXT NOT NULL DEFAULT '',
	thumbnail_path TEXT NOT NULL DEFAULT '',
	keyword_list JSONB NOT NULL DEFAULT '[]'::jsonb,
	categories JSONB NOT NULL DEFAULT '[]'::jsonb,
	editorial BOOLEAN NOT NULL DEFAULT FALSE,
	processing_status TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_images_file_hash ON images(file_hash);
CREATE INDEX IF NOT EXISTS idx_images_filename ON images(filename);
CREATE INDEX IF NOT EXISTS idx_images_status ON images(processing_status);
CREATE INDEX IF NOT EXISTS idx_images_created_at ON images(created_at);

CREATE TABLE IF NOT EXISTS submissions (
	id BIGSERIAL PRIMARY KEY,
	image_id BIGINT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	marketplace TEXT NOT NULL,
	remote_media_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	submitted_at TIMESTAMPTZ,
	reviewed_at TIMESTAMPTZ,
	rejection_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (image_id, marketplace)
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(marketplace, status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const imageColumns = `
id, filename, filepath, file_size, format, file_hash, width, height,
camera_make, camera_model, gps_latitude, gps_longitude, date_taken,
location_country, location_name, thumbnail_path, keyword_list, categories,
editorial, processing_status, error_message, processed_at, created_at, updated_at`

func (r *ImageRepository) Create(ctx context.Context, img *domain.Image) error {
	now := time.Now().UTC()
	status := img.Status
	if status == "" {
		status = domain.StatusPending
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO images (filename, filepath, file_size, file_hash, processing_status, keyword_list, categories, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,'[]'::jsonb,'[]'::jsonb,$6,$6)
RETURNING id
`, img.Filename, img.Filepath, img.FileSize, img.FileHash, string(status), now).Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	img.Status = status
	img.CreatedAt = now
	img.UpdatedAt = now
	return nil
}

// StoreComplete inserts a fully processed record in one statement: all
// extracted metadata, keywords, and the completed status with its
// processed_at timestamp.
func (r *ImageRepository) StoreComplete(ctx context.Context, meta *domain.Metadata, keywords []string) (*domain.Image, error) {
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}

	now := time.Now().UTC()
	img := &domain.Image{
		Filename:        meta.Filename,
		Filepath:        meta.Filepath,
		FileSize:        meta.FileSize,
		Format:          meta.Format,
		FileHash:        meta.FileHash,
		Width:           meta.Width,
		Height:          meta.Height,
		CameraMake:      meta.CameraMake,
		CameraModel:     meta.CameraModel,
		GPSLatitude:     meta.GPSLatitude,
		GPSLongitude:    meta.GPSLongitude,
		DateTaken:       meta.DateTaken,
		LocationCountry: meta.LocationCountry,
		LocationName:    meta.LocationName,
		Keywords:        keywords,
		Categories:      []string{},
		Status:          domain.StatusCompleted,
		ProcessedAt:     &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = r.db.QueryRowContext(ctx, `
INSERT INTO images (
	filename, filepath, file_size, format, file_hash, width, height,
	camera_make, camera_model, gps_latitude, gps_longitude, date_taken,
	location_country, location_name, keyword_list, processing_status,
	processed_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)
RETURNING id
`,
		meta.Filename, meta.Filepath, meta.FileSize, meta.Format, meta.FileHash,
		meta.Width, meta.Height, meta.CameraMake, meta.CameraModel,
		meta.GPSLatitude, meta.GPSLongitude, meta.DateTaken,
		meta.LocationCountry, meta.LocationName, keywordsJSON,
		string(domain.StatusCompleted), now, now,
	).Scan(&img.ID)
	if err != nil {
		return nil, fmt.Errorf("insert complete image: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrImageNotFound, "ImageRepository.GetByID", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) GetByFilepath(ctx context.Context, path string) (*domain.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE filepath = $1`, path)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrImageNotFound, "ImageRepository.GetByFilepath", fmt.Errorf("filepath=%s", path))
		}
		return nil, fmt.Errorf("get image by filepath: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) GetByHash(ctx context.Context, hash string) (*domain.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE file_hash = $1 ORDER BY id LIMIT 1`, hash)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrImageNotFound, "ImageRepository.GetByHash", fmt.Errorf("hash=%s", hash))
		}
		return nil, fmt.Errorf("get image by hash: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) GetByFilename(ctx context.Context, name string) ([]domain.Image, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images WHERE filename = $1 ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("get images by filename: %w", err)
	}
	defer rows.Close()
	return collectImages(rows)
}

func (r *ImageRepository) MarkProcessing(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, domain.StatusProcessing, "")
}

func (r *ImageRepository) MarkCompleted(ctx context.Context, id int64, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE images
SET processing_status = $2, keyword_list = $3, error_message = '', processed_at = $4, updated_at = $4
WHERE id = $1
`, id, string(domain.StatusCompleted), keywordsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark image completed: %w", err)
	}
	return requireRow(result, id)
}

// MarkFailed stores the failure reason truncated to the column budget so a
// pathological stack trace cannot blow up the row. The cut backs off to a
// rune boundary; postgres rejects TEXT values with a split multi-byte rune.
func (r *ImageRepository) MarkFailed(ctx context.Context, id int64, message string) error {
	if len(message) > maxErrorMessageLen {
		cut := maxErrorMessageLen
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut]
	}
	return r.setStatus(ctx, id, domain.StatusFailed, message)
}

func (r *ImageRepository) setStatus(ctx context.Context, id int64, status domain.ProcessingStatus, message string) error {
	query := `
UPDATE images
SET processing_status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`
	result, err := r.db.ExecContext(ctx, query, id, string(status), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set image status %s: %w", status, err)
	}
	return requireRow(result, id)
}

// columnSetters maps an updatable column to the value it takes from the
// supplied metadata.
var columnSetters = map[string]func(meta *domain.Metadata) any{
	domain.ColFileSize:        func(m *domain.Metadata) any { return m.FileSize },
	domain.ColFormat:          func(m *domain.Metadata) any { return m.Format },
	domain.ColWidth:           func(m *domain.Metadata) any { return m.Width },
	domain.ColHeight:          func(m *domain.Metadata) any { return m.Height },
	domain.ColCameraMake:      func(m *domain.Metadata) any { return m.CameraMake },
	domain.ColCameraModel:     func(m *domain.Metadata) any { return m.CameraModel },
	domain.ColGPSLatitude:     func(m *domain.Metadata) any { return m.GPSLatitude },
	domain.ColGPSLongitude:    func(m *domain.Metadata) any { return m.GPSLongitude },
	domain.ColDateTaken:       func(m *domain.Metadata) any { return m.DateTaken },
	domain.ColLocationCountry: func(m *domain.Metadata) any { return m.LocationCountry },
	domain.ColLocationName:    func(m *domain.Metadata) any { return m.LocationName },
}

// UpdateFields rewrites only the requested columns in one UPDATE. Group
// names expand to their columns first. A column is skipped when its source
// was not supplied: metadata columns need meta, keyword_list needs a
// non-nil keywords slice. Returns false when nothing could be written.
func (r *ImageRepository) UpdateFields(ctx context.Context, id int64, fields []string, meta *domain.Metadata, keywords []string) (bool, error) {
	if err := domain.ValidateFields(fields); err != nil {
		return false, err
	}

	var assignments []string
	args := []any{id}
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var written []string
	for _, column := range domain.ExpandFields(fields) {
		switch {
		case column == domain.ColKeywordList:
			if keywords == nil {
				continue
			}
			keywordsJSON, err := json.Marshal(keywords)
			if err != nil {
				return false, fmt.Errorf("marshal keywords: %w", err)
			}
			assignments = append(assignments, "keyword_list = "+place(keywordsJSON))
			written = append(written, column)
		default:
			setter, ok := columnSetters[column]
			if !ok || meta == nil {
				continue
			}
			assignments = append(assignments, column+" = "+place(setter(meta)))
			written = append(written, column)
		}
	}

	if len(assignments) == 0 {
		return false, nil
	}
	assignments = append(assignments, "updated_at = "+place(time.Now().UTC()))

	query := "UPDATE images SET " + strings.Join(assignments, ", ") + " WHERE id = $1"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update image fields: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update image fields rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("image_update_missing_row", "image_id", id)
		return false, nil
	}

	slog.Info("image_fields_updated", "image_id", id, "fields", strings.Join(written, ","))
	return true, nil
}

func (r *ImageRepository) SetThumbnailPath(ctx context.Context, id int64, path string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE images
SET thumbnail_path = $2, updated_at = $3
WHERE id = $1
`, id, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	return requireRow(result, id)
}

func (r *ImageRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images`)
	if err != nil {
		return 0, fmt.Errorf("delete all images: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all images rows affected: %w", err)
	}
	slog.Warn("images_deleted_all", "count", count)
	return count, nil
}

// GetFailed returns failed records oldest first so retries preserve the
// original discovery order.
func (r *ImageRepository) GetFailed(ctx context.Context) ([]domain.Image, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+imageColumns+`
FROM images
WHERE processing_status = $1
ORDER BY created_at, id
`, string(domain.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("get failed images: %w", err)
	}
	defer rows.Close()
	return collectImages(rows)
}

func (r *ImageRepository) GetUnprocessed(ctx context.Context, limit int) ([]domain.Image, error) {
	query := `
SELECT ` + imageColumns + `
FROM images
WHERE processing_status = $1
ORDER BY created_at, id
`
	args := []any{string(domain.StatusPending)}
	if limit > 0 {
		query += "LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get unprocessed images: %w", err)
	}
	defer rows.Close()
	return collectImages(rows)
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int, status domain.ProcessingStatus) ([]domain.Image, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + imageColumns + ` FROM images`
	args := []any{}
	if status != "" {
		args = append(args, string(status))
		query += " WHERE processing_status = $1"
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	return collectImages(rows)
}

func (r *ImageRepository) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT processing_status, COUNT(*)
FROM images
GROUP BY processing_status
`)
	if err != nil {
		return nil, fmt.Errorf("count images by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ProcessingStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[domain.ProcessingStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return out, nil
}

func requireRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrImageNotFound, "ImageRepository", fmt.Errorf("id=%d", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*domain.Image, error) {
	var img domain.Image
	var keywordsRaw, categoriesRaw []byte
	var status string

	err := row.Scan(
		&img.ID, &img.Filename, &img.Filepath, &img.FileSize, &img.Format,
		&img.FileHash, &img.Width, &img.Height, &img.CameraMake, &img.CameraModel,
		&img.GPSLatitude, &img.GPSLongitude, &img.DateTaken,
		&img.LocationCountry, &img.LocationName, &img.ThumbnailPath,
		&keywordsRaw, &categoriesRaw, &img.Editorial, &status,
		&img.ErrorMessage, &img.ProcessedAt, &img.CreatedAt, &img.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keywordsRaw, &img.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keyword_list: %w", err)
	}
	if err := json.Unmarshal(categoriesRaw, &img.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	img.Status = domain.ProcessingStatus(status)
	return &img, nil
}

func collectImages(rows *sql.Rows) ([]domain.Image, error) {
	out := make([]domain.Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return out, nil
}
