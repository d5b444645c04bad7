package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `
id, image_id, marketplace, remote_media_id, status, submitted_at,
reviewed_at, rejection_reason, created_at, updated_at`

func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	now := time.Now().UTC()
	status := sub.Status
	if status == "" {
		status = domain.SubmissionPending
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO submissions (image_id, marketplace, remote_media_id, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
RETURNING id
`, sub.ImageID, sub.Marketplace, sub.RemoteMediaID, string(status), now).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	sub.Status = status
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

func (r *SubmissionRepository) GetByImageAndMarketplace(ctx context.Context, imageID int64, marketplace string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+submissionColumns+`
FROM submissions
WHERE image_id = $1 AND marketplace = $2
`, imageID, marketplace)

	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "SubmissionRepository.GetByImageAndMarketplace",
				fmt.Errorf("image_id=%d marketplace=%s", imageID, marketplace))
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (r *SubmissionRepository) ListByStatus(ctx context.Context, marketplace string, status domain.SubmissionStatus) ([]domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+submissionColumns+`
FROM submissions
WHERE marketplace = $1 AND status = $2
ORDER BY created_at, id
`, marketplace, string(status))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (r *SubmissionRepository) MarkSubmitted(ctx context.Context, id int64, remoteMediaID string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2, remote_media_id = $3, submitted_at = $4, updated_at = $4
WHERE id = $1
`, id, string(domain.SubmissionSubmitted), remoteMediaID, now)
	if err != nil {
		return fmt.Errorf("mark submission submitted: %w", err)
	}
	return requireSubmissionRow(result, id)
}

func (r *SubmissionRepository) MarkApproved(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2, reviewed_at = $3, updated_at = $3
WHERE id = $1
`, id, string(domain.SubmissionApproved), now)
	if err != nil {
		return fmt.Errorf("mark submission approved: %w", err)
	}
	return requireSubmissionRow(result, id)
}

func (r *SubmissionRepository) MarkRejected(ctx context.Context, id int64, reason string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2, reviewed_at = $3, rejection_reason = $4, updated_at = $3
WHERE id = $1
`, id, string(domain.SubmissionRejected), now, reason)
	if err != nil {
		return fmt.Errorf("mark submission rejected: %w", err)
	}
	return requireSubmissionRow(result, id)
}

func requireSubmissionRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrSubmissionNotFound, "SubmissionRepository", fmt.Errorf("id=%d", id))
	}
	return nil
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var sub domain.Submission
	var status string

	err := row.Scan(
		&sub.ID, &sub.ImageID, &sub.Marketplace, &sub.RemoteMediaID, &status,
		&sub.SubmittedAt, &sub.ReviewedAt, &sub.RejectionReason,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionStatus(status)
	return &sub, nil
}
