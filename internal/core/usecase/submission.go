package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
)

// SubmissionWorkflow tracks completed images through a stock marketplace:
// upload, metadata push, submission, and review-status polling.
type SubmissionWorkflow struct {
	images      ports.ImageRepository
	submissions ports.SubmissionRepository
	client      ports.StockClient
	minKeywords int
}

func NewSubmissionWorkflow(
	images ports.ImageRepository,
	submissions ports.SubmissionRepository,
	client ports.StockClient,
	minKeywords int,
) *SubmissionWorkflow {
	if minKeywords <= 0 {
		minKeywords = 7
	}
	return &SubmissionWorkflow{
		images:      images,
		submissions: submissions,
		client:      client,
		minKeywords: minKeywords,
	}
}

// SubmitCompleted uploads qualifying completed images that have no
// submission on the given marketplace yet, pushes their keyword metadata,
// and submits them for review. Per-image failures are logged and skipped;
// the rest of the batch continues.
func (w *SubmissionWorkflow) SubmitCompleted(ctx context.Context, marketplace string, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	images, err := w.images.List(ctx, limit, 0, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed images: %w", err)
	}

	var submitted []domain.Submission
	var mediaIDs []string

	for i := range images {
		if ctx.Err() != nil {
			break
		}
		img := images[i]

		if len(img.Keywords) < w.minKeywords {
			slog.Debug("submission_skip_few_keywords", "image_id", img.ID, "keywords", len(img.Keywords))
			continue
		}

		existing, err := w.submissions.GetByImageAndMarketplace(ctx, img.ID, marketplace)
		if err != nil && !domain.IsKind(err, domain.ErrSubmissionNotFound) {
			return submitted, fmt.Errorf("lookup submission for image %d: %w", img.ID, err)
		}
		if existing != nil {
			continue
		}

		mediaID, err := w.client.Upload(ctx, img.Filepath)
		if err != nil {
			slog.Warn("submission_upload_failed", "image_id", img.ID, "error", err)
			continue
		}

		meta := domain.StockMetadata{
			Description: img.LocationName,
			Keywords:    img.Keywords,
			Categories:  img.Categories,
			Editorial:   img.Editorial,
		}
		if err := w.client.SetMetadata(ctx, mediaID, meta); err != nil {
			slog.Warn("submission_metadata_failed", "image_id", img.ID, "media_id", mediaID, "error", err)
			continue
		}

		sub := domain.Submission{
			ImageID:       img.ID,
			Marketplace:   marketplace,
			RemoteMediaID: mediaID,
			Status:        domain.SubmissionPending,
		}
		if err := w.submissions.Create(ctx, &sub); err != nil {
			return submitted, fmt.Errorf("create submission for image %d: %w", img.ID, err)
		}

		submitted = append(submitted, sub)
		mediaIDs = append(mediaIDs, mediaID)
	}

	if len(mediaIDs) == 0 {
		return submitted, nil
	}

	if err := w.client.Submit(ctx, mediaIDs); err != nil {
		return submitted, fmt.Errorf("submit batch of %d: %w", len(mediaIDs), err)
	}

	now := time.Now().UTC()
	for i := range submitted {
		if err := w.submissions.MarkSubmitted(ctx, submitted[i].ID, submitted[i].RemoteMediaID); err != nil {
			return submitted, fmt.Errorf("mark submission %d submitted: %w", submitted[i].ID, err)
		}
		submitted[i].Status = domain.SubmissionSubmitted
		submitted[i].SubmittedAt = &now
	}

	slog.Info("submission_batch_done", "marketplace", marketplace, "count", len(submitted))
	return submitted, nil
}

// SyncStatuses polls the marketplace for every submitted record and applies
// approved/rejected review outcomes. Returns how many records changed.
func (w *SubmissionWorkflow) SyncStatuses(ctx context.Context, marketplace string) (int, error) {
	pending, err := w.submissions.ListByStatus(ctx, marketplace, domain.SubmissionSubmitted)
	if err != nil {
		return 0, fmt.Errorf("list submitted records: %w", err)
	}

	changed := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		sub := pending[i]

		status, reason, err := w.client.Status(ctx, sub.RemoteMediaID)
		if err != nil {
			slog.Warn("submission_status_failed", "submission_id", sub.ID, "media_id", sub.RemoteMediaID, "error", err)
			continue
		}

		switch status {
		case domain.SubmissionApproved:
			if err := w.submissions.MarkApproved(ctx, sub.ID); err != nil {
				return changed, fmt.Errorf("mark submission %d approved: %w", sub.ID, err)
			}
			changed++
		case domain.SubmissionRejected:
			if err := w.submissions.MarkRejected(ctx, sub.ID, reason); err != nil {
				return changed, fmt.Errorf("mark submission %d rejected: %w", sub.ID, err)
			}
			changed++
		}
	}

	slog.Info("submission_sync_done", "marketplace", marketplace, "checked", len(pending), "changed", changed)
	return changed, nil
}
