package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type RunMode string

const (
	ModeDefault RunMode = "default"
	ModeInit    RunMode = "init"
	ModeUpdate  RunMode = "update"
)

// FileResult is the terminal outcome for one file in a run. Exactly one of
// Success, Skipped, or a non-empty Error describes the outcome; Updated
// refines Success for update-mode runs.
type FileResult struct {
	Filepath      string        `json:"filepath"`
	Success       bool          `json:"success"`
	ImageID       int64         `json:"image_id,omitempty"`
	Skipped       bool          `json:"skipped"`
	SkipReason    string        `json:"skip_reason,omitempty"`
	Updated       bool          `json:"updated"`
	UpdatedFields []string      `json:"updated_fields,omitempty"`
	Error         string        `json:"error,omitempty"`
	TagCount      int           `json:"tag_count"`
	Elapsed       time.Duration `json:"elapsed"`
}

// RunStats accumulates per-file outcomes for a single pipeline invocation.
type RunStats struct {
	RunID        string       `json:"run_id"`
	Mode         RunMode      `json:"mode"`
	UpdateFields []string     `json:"update_fields,omitempty"`
	TotalFound   int          `json:"total_found"`
	Processed    int          `json:"processed"`
	Updated      int          `json:"updated"`
	Skipped      int          `json:"skipped"`
	Failed       int          `json:"failed"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Results      []FileResult `json:"results"`
}

// Record appends a file outcome and bumps the matching counter.
func (s *RunStats) Record(r FileResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Success && r.Updated:
		s.Updated++
	case r.Success:
		s.Processed++
	case r.Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Duration is derived from the start/end timestamps and is zero until the
// run completes.
func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summary renders the deterministic human-readable run report, including
// the filename and error text of every failed file.
func (s *RunStats) Summary() string {
	divider := strings.Repeat("=", 50)
	lines := []string{
		divider,
		"Pipeline Run Complete",
		divider,
		fmt.Sprintf("Mode: %s", s.Mode),
	}

	if s.Mode == ModeUpdate {
		lines = append(lines, fmt.Sprintf("Updated fields: %s", strings.Join(s.UpdateFields, ", ")))
	}

	lines = append(lines,
		fmt.Sprintf("Total images found: %d", s.TotalFound),
		fmt.Sprintf("Successfully processed: %d", s.Processed),
	)
	if s.Updated > 0 {
		lines = append(lines, fmt.Sprintf("Updated existing: %d", s.Updated))
	}
	lines = append(lines,
		fmt.Sprintf("Skipped: %d", s.Skipped),
		fmt.Sprintf("Failed: %d", s.Failed),
		fmt.Sprintf("Duration: %.1f seconds", s.Duration().Seconds()),
	)

	if s.Failed > 0 {
		lines = append(lines, "", "Failed images:")
		for _, r := range s.Results {
			if !r.Success && !r.Skipped {
				lines = append(lines, fmt.Sprintf("  - %s: %s", filepath.Base(r.Filepath), r.Error))
			}
		}
	}

	return strings.Join(lines, "\n")
}
