package ports

import (
	"context"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

// DirectoryProcessor is the inbound contract for batch pipeline runs.
type DirectoryProcessor interface {
	ProcessDirectory(ctx context.Context, root string, recursive bool) (*domain.RunStats, error)
	RetryFailed(ctx context.Context) (*domain.RunStats, error)
}

// FileProcessor is the inbound contract for single-file processing.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) domain.FileResult
}

// DuplicateChecker is the inbound contract for standalone duplicate
// classification of a candidate file.
type DuplicateChecker interface {
	Check(ctx context.Context, path string, checkHash, checkFilename bool) (domain.DuplicateCheck, error)
}

// SubmissionService is the inbound contract for the marketplace
// submission-tracking workflow.
type SubmissionService interface {
	SubmitCompleted(ctx context.Context, marketplace string, limit int) ([]domain.Submission, error)
	SyncStatuses(ctx context.Context, marketplace string) (int, error)
}

// ImageReader is the inbound read model for the browse API.
type ImageReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Image, error)
	List(ctx context.Context, limit, offset int, status domain.ProcessingStatus) ([]domain.Image, error)
	CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error)
}
