package ports

import (
	"context"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

// ImageRepository is the persistence gateway consumed by the pipeline.
// UpdateFields applies the requested column set atomically: either every
// resolvable column is written in one transaction or none is, and the
// boolean reports whether anything was actually modified.
type ImageRepository interface {
	Create(ctx context.Context, img *domain.Image) error
	StoreComplete(ctx context.Context, meta *domain.Metadata, keywords []string) (*domain.Image, error)
	GetByID(ctx context.Context, id int64) (*domain.Image, error)
	GetByFilepath(ctx context.Context, path string) (*domain.Image, error)
	GetByHash(ctx context.Context, hash string) (*domain.Image, error)
	GetByFilename(ctx context.Context, name string) ([]domain.Image, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, keywords []string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	UpdateFields(ctx context.Context, id int64, fields []string, meta *domain.Metadata, keywords []string) (bool, error)
	SetThumbnailPath(ctx context.Context, id int64, path string) error
	DeleteAll(ctx context.Context) (int64, error)
	GetFailed(ctx context.Context) ([]domain.Image, error)
	GetUnprocessed(ctx context.Context, limit int) ([]domain.Image, error)
	List(ctx context.Context, limit, offset int, status domain.ProcessingStatus) ([]domain.Image, error)
	CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error)
}

// SubmissionRepository persists marketplace submission state.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByImageAndMarketplace(ctx context.Context, imageID int64, marketplace string) (*domain.Submission, error)
	ListByStatus(ctx context.Context, marketplace string, status domain.SubmissionStatus) ([]domain.Submission, error)
	MarkSubmitted(ctx context.Context, id int64, remoteMediaID string) error
	MarkApproved(ctx context.Context, id int64) error
	MarkRejected(ctx context.Context, id int64, reason string) error
}

// DirectoryScanner discovers candidate image files under a root path in
// deterministic order.
type DirectoryScanner interface {
	Scan(root string, recursive bool) ([]string, error)
}

// MetadataExtractor reads dimensions, EXIF, hash, and resolved location
// from an image file on disk.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) (*domain.Metadata, error)
}

// TagGenerator produces a bounded list of lowercase descriptive keywords.
type TagGenerator interface {
	Generate(ctx context.Context, path string) ([]string, error)
}

// TagCache stores generated keywords content-addressed by file hash.
type TagCache interface {
	Get(hash string) ([]string, bool)
	Put(hash string, tags []string) error
}

// ThumbnailGenerator renders a browsing preview for a stored record and
// returns where it was written.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, path string, imageID int64) (string, error)
}

// Geocoder resolves GPS coordinates to a country and place name.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (country, place string, err error)
}

// StockClient talks to one stock-photography marketplace.
type StockClient interface {
	Upload(ctx context.Context, path string) (mediaID string, err error)
	SetMetadata(ctx context.Context, mediaID string, meta domain.StockMetadata) error
	Submit(ctx context.Context, mediaIDs []string) error
	Status(ctx context.Context, mediaID string) (domain.SubmissionStatus, string, error)
}

// Notifier announces processed images to downstream consumers.
type Notifier interface {
	PublishImageProcessed(ctx context.Context, imageID int64) error
}
