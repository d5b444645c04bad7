package domain

import "time"

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
)

// Submission tracks one image on one stock marketplace. A given image has
// at most one submission per marketplace.
type Submission struct {
	ID              int64            `json:"id"`
	ImageID         int64            `json:"image_id"`
	Marketplace     string           `json:"marketplace"`
	RemoteMediaID   string           `json:"remote_media_id,omitempty"`
	Status          SubmissionStatus `json:"status"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// StockMetadata is the field set pushed to a marketplace for a submission.
type StockMetadata struct {
	Description string
	Keywords    []string
	Categories  []string
	Editorial   bool
}
