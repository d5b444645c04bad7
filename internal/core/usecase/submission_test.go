package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

type submissionRepoFake struct {
	nextID int64
	subs   map[int64]*domain.Submission
}

func newSubmissionRepoFake() *submissionRepoFake {
	return &submissionRepoFake{subs: make(map[int64]*domain.Submission)}
}

func (f *submissionRepoFake) Create(_ context.Context, sub *domain.Submission) error {
	f.nextID++
	sub.ID = f.nextID
	stored := *sub
	f.subs[sub.ID] = &stored
	return nil
}

func (f *submissionRepoFake) GetByImageAndMarketplace(_ context.Context, imageID int64, marketplace string) (*domain.Submission, error) {
	for _, sub := range f.subs {
		if sub.ImageID == imageID && sub.Marketplace == marketplace {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, domain.ErrSubmissionNotFound
}

func (f *submissionRepoFake) ListByStatus(_ context.Context, marketplace string, status domain.SubmissionStatus) ([]domain.Submission, error) {
	var out []domain.Submission
	for _, sub := range f.subs {
		if sub.Marketplace == marketplace && sub.Status == status {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *submissionRepoFake) MarkSubmitted(_ context.Context, id int64, remoteMediaID string) error {
	sub, ok := f.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	now := time.Now().UTC()
	sub.Status = domain.SubmissionSubmitted
	sub.RemoteMediaID = remoteMediaID
	sub.SubmittedAt = &now
	return nil
}

func (f *submissionRepoFake) MarkApproved(_ context.Context, id int64) error {
	sub, ok := f.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	now := time.Now().UTC()
	sub.Status = domain.SubmissionApproved
	sub.ReviewedAt = &now
	return nil
}

func (f *submissionRepoFake) MarkRejected(_ context.Context, id int64, reason string) error {
	sub, ok := f.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	now := time.Now().UTC()
	sub.Status = domain.SubmissionRejected
	sub.ReviewedAt = &now
	sub.RejectionReason = reason
	return nil
}

type stockClientFake struct {
	uploads     []string
	metadata    map[string]domain.StockMetadata
	submitted   [][]string
	statuses    map[string]domain.SubmissionStatus
	rejectNotes map[string]string
}

func newStockClientFake() *stockClientFake {
	return &stockClientFake{
		metadata:    make(map[string]domain.StockMetadata),
		statuses:    make(map[string]domain.SubmissionStatus),
		rejectNotes: make(map[string]string),
	}
}

func (f *stockClientFake) Upload(_ context.Context, path string) (string, error) {
	f.uploads = append(f.uploads, path)
	return "media-" + path, nil
}

func (f *stockClientFake) SetMetadata(_ context.Context, mediaID string, meta domain.StockMetadata) error {
	f.metadata[mediaID] = meta
	return nil
}

func (f *stockClientFake) Submit(_ context.Context, mediaIDs []string) error {
	f.submitted = append(f.submitted, mediaIDs)
	return nil
}

func (f *stockClientFake) Status(_ context.Context, mediaID string) (domain.SubmissionStatus, string, error) {
	return f.statuses[mediaID], f.rejectNotes[mediaID], nil
}

func TestSubmitCompletedUploadsOnlyQualifyingImages(t *testing.T) {
	images := newRepoFake()
	rich := images.seed(domain.Image{
		Filename: "rich.jpg", Filepath: "/photos/rich.jpg",
		Status:   domain.StatusCompleted,
		Keywords: []string{"beach", "sunset", "waves", "sand", "sky", "sea", "coast", "dusk"},
	})
	images.seed(domain.Image{
		Filename: "sparse.jpg", Filepath: "/photos/sparse.jpg",
		Status:   domain.StatusCompleted,
		Keywords: []string{"blur"},
	})
	images.seed(domain.Image{
		Filename: "broken.jpg", Filepath: "/photos/broken.jpg",
		Status: domain.StatusFailed,
	})

	subs := newSubmissionRepoFake()
	client := newStockClientFake()
	w := NewSubmissionWorkflow(images, subs, client, 7)

	submitted, err := w.SubmitCompleted(context.Background(), "shutterstock", 50)
	if err != nil {
		t.Fatalf("SubmitCompleted() error = %v", err)
	}

	if len(submitted) != 1 {
		t.Fatalf("submitted = %d records, want 1", len(submitted))
	}
	if submitted[0].ImageID != rich.ID {
		t.Fatalf("submitted image = %d, want %d", submitted[0].ImageID, rich.ID)
	}
	if len(client.uploads) != 1 || client.uploads[0] != "/photos/rich.jpg" {
		t.Fatalf("uploads = %v, want only the qualifying image", client.uploads)
	}
	if len(client.submitted) != 1 {
		t.Fatalf("submit batches = %d, want 1", len(client.submitted))
	}
	if got := client.metadata["media-/photos/rich.jpg"]; len(got.Keywords) != 8 {
		t.Fatalf("pushed metadata keywords = %v", got.Keywords)
	}
}

func TestSubmitCompletedSkipsAlreadySubmittedImages(t *testing.T) {
	images := newRepoFake()
	img := images.seed(domain.Image{
		Filename: "done.jpg", Filepath: "/photos/done.jpg",
		Status:   domain.StatusCompleted,
		Keywords: []string{"a", "b", "c", "d", "e", "f", "g"},
	})

	subs := newSubmissionRepoFake()
	_ = subs.Create(context.Background(), &domain.Submission{
		ImageID: img.ID, Marketplace: "shutterstock", Status: domain.SubmissionSubmitted,
	})

	client := newStockClientFake()
	w := NewSubmissionWorkflow(images, subs, client, 7)

	submitted, err := w.SubmitCompleted(context.Background(), "shutterstock", 50)
	if err != nil {
		t.Fatalf("SubmitCompleted() error = %v", err)
	}
	if len(submitted) != 0 || len(client.uploads) != 0 {
		t.Fatalf("already-submitted image re-uploaded: %v", client.uploads)
	}
}

func TestSyncStatusesAppliesReviewOutcomes(t *testing.T) {
	images := newRepoFake()
	subs := newSubmissionRepoFake()

	_ = subs.Create(context.Background(), &domain.Submission{
		ImageID: 1, Marketplace: "shutterstock", RemoteMediaID: "m-approved",
	})
	_ = subs.Create(context.Background(), &domain.Submission{
		ImageID: 2, Marketplace: "shutterstock", RemoteMediaID: "m-rejected",
	})
	_ = subs.Create(context.Background(), &domain.Submission{
		ImageID: 3, Marketplace: "shutterstock", RemoteMediaID: "m-waiting",
	})
	for id := int64(1); id <= 3; id++ {
		if err := subs.MarkSubmitted(context.Background(), id, subs.subs[id].RemoteMediaID); err != nil {
			t.Fatalf("seed MarkSubmitted: %v", err)
		}
	}

	client := newStockClientFake()
	client.statuses["m-approved"] = domain.SubmissionApproved
	client.statuses["m-rejected"] = domain.SubmissionRejected
	client.rejectNotes["m-rejected"] = "out of focus"
	client.statuses["m-waiting"] = domain.SubmissionSubmitted

	w := NewSubmissionWorkflow(images, subs, client, 7)
	changed, err := w.SyncStatuses(context.Background(), "shutterstock")
	if err != nil {
		t.Fatalf("SyncStatuses() error = %v", err)
	}

	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	if subs.subs[1].Status != domain.SubmissionApproved {
		t.Fatalf("submission 1 status = %v, want approved", subs.subs[1].Status)
	}
	if subs.subs[2].Status != domain.SubmissionRejected || subs.subs[2].RejectionReason != "out of focus" {
		t.Fatalf("submission 2 = %+v, want rejected with reason", subs.subs[2])
	}
	if subs.subs[3].Status != domain.SubmissionSubmitted {
		t.Fatalf("submission 3 status = %v, must stay submitted", subs.subs[3].Status)
	}
}
