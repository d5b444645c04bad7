package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
)

// ProgressFunc reports per-file progress as (current, total, filename).
type ProgressFunc func(current, total int, filename string)

// PipelineOptions selects the run mode and skip semantics for a Pipeline.
//
// SkipExisting and SkipDuplicates apply to default mode only: SkipDuplicates
// toggles the content-hash check, SkipExisting the filepath check. The
// filename-collision check is never consulted during ingest; it is reachable
// only through the standalone DuplicateClassifier API.
type PipelineOptions struct {
	Mode           domain.RunMode
	UpdateFields   []string
	SkipExisting   bool
	SkipDuplicates bool
	Progress       ProgressFunc

	// Observer sees every finished FileResult. Instrumentation hangs off
	// this hook so the pipeline itself stays metrics-agnostic.
	Observer func(domain.FileResult)
}

// Pipeline orchestrates directory-level and single-file processing. The
// tagger, thumbnailer, and notifier collaborators are optional; a nil value
// disables that stage.
type Pipeline struct {
	repo       ports.ImageRepository
	scanner    ports.DirectoryScanner
	classifier ports.DuplicateChecker
	extractor  ports.MetadataExtractor
	tagger     ports.TagGenerator
	thumbs     ports.ThumbnailGenerator
	notifier   ports.Notifier
	opts       PipelineOptions
}

func NewPipeline(
	repo ports.ImageRepository,
	scanner ports.DirectoryScanner,
	classifier ports.DuplicateChecker,
	extractor ports.MetadataExtractor,
	tagger ports.TagGenerator,
	thumbs ports.ThumbnailGenerator,
	notifier ports.Notifier,
	opts PipelineOptions,
) (*Pipeline, error) {
	if opts.Mode == "" {
		opts.Mode = domain.ModeDefault
	}
	if opts.Mode == domain.ModeUpdate {
		if err := domain.ValidateFields(opts.UpdateFields); err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		repo:       repo,
		scanner:    scanner,
		classifier: classifier,
		extractor:  extractor,
		tagger:     tagger,
		thumbs:     thumbs,
		notifier:   notifier,
		opts:       opts,
	}, nil
}

// ProcessDirectory runs the pipeline over every image under root. Files are
// processed strictly in scan order, one at a time; a failure in one file
// never aborts the run. Interrupt via ctx stops the loop between files.
func (p *Pipeline) ProcessDirectory(ctx context.Context, root string, recursive bool) (*domain.RunStats, error) {
	stats := &domain.RunStats{
		RunID:        uuid.NewString(),
		Mode:         p.opts.Mode,
		UpdateFields: p.opts.UpdateFields,
		StartedAt:    time.Now().UTC(),
	}

	slog.Info("pipeline_start", "run_id", stats.RunID, "root", root, "mode", string(p.opts.Mode))

	if p.opts.Mode == domain.ModeInit {
		deleted, err := p.repo.DeleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("clear existing records: %w", err)
		}
		slog.Warn("init_mode_cleared_records", "run_id", stats.RunID, "deleted", deleted)
	}

	paths, err := p.scanner.Scan(root, recursive)
	if err != nil {
		return nil, err
	}
	stats.TotalFound = len(paths)

	if len(paths) == 0 {
		slog.Info("pipeline_no_images", "run_id", stats.RunID, "root", root)
		stats.FinishedAt = time.Now().UTC()
		return stats, nil
	}

	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if p.opts.Progress != nil {
			p.opts.Progress(i+1, len(paths), filepath.Base(path))
		}

		var result domain.FileResult
		if p.opts.Mode == domain.ModeUpdate {
			result = p.updateSingle(ctx, path)
		} else {
			result = p.ProcessFile(ctx, path)
		}
		p.record(stats, result)
	}

	stats.FinishedAt = time.Now().UTC()
	slog.Info("pipeline_done",
		"run_id", stats.RunID,
		"processed", stats.Processed,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration_s", stats.Duration().Seconds(),
	)
	return stats, nil
}

// ProcessFile runs the full ingest sequence for one file: duplicate check,
// metadata extraction, keyword tagging (best-effort), one-step completed
// store, thumbnail generation (best-effort). Any error other than a
// controlled skip yields a failed result for this file only.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) domain.FileResult {
	start := time.Now()
	result := domain.FileResult{Filepath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		result.Error = fmt.Sprintf("resolve path: %v", err)
		result.Elapsed = time.Since(start)
		return result
	}
	result.Filepath = abs

	if p.opts.Mode == domain.ModeDefault && (p.opts.SkipExisting || p.opts.SkipDuplicates) {
		check, err := p.classifier.Check(ctx, abs, p.opts.SkipDuplicates, false)
		if err != nil {
			result.Error = err.Error()
			result.Elapsed = time.Since(start)
			return result
		}
		if check.IsDuplicate {
			result.Skipped = true
			result.SkipReason = fmt.Sprintf("duplicate (%s)", check.Kind)
			result.ImageID = check.ExistingID
			result.Elapsed = time.Since(start)
			slog.Debug("pipeline_skip_duplicate", "filepath", abs, "kind", string(check.Kind))
			return result
		}
	}

	meta, err := p.extractor.Extract(ctx, abs)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		slog.Error("pipeline_extract_failed", "filepath", abs, "error", err)
		return result
	}

	keywords := p.generateTags(ctx, abs, &result)

	img, err := p.repo.StoreComplete(ctx, meta, keywords)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		slog.Error("pipeline_store_failed", "filepath", abs, "error", err)
		return result
	}

	result.Success = true
	result.ImageID = img.ID

	p.generateThumbnail(ctx, abs, img.ID)
	p.notifyProcessed(ctx, img.ID)

	result.Elapsed = time.Since(start)
	slog.Info("pipeline_file_processed",
		"filepath", abs,
		"image_id", img.ID,
		"tags", result.TagCount,
		"elapsed_s", result.Elapsed.Seconds(),
	)
	return result
}

// updateSingle refreshes the requested field set for an already-registered
// file. Files with no stored record are skipped, never created. Only the
// extraction work the requested columns actually need is performed.
func (p *Pipeline) updateSingle(ctx context.Context, path string) domain.FileResult {
	start := time.Now()
	result := domain.FileResult{Filepath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		result.Error = fmt.Sprintf("resolve path: %v", err)
		result.Elapsed = time.Since(start)
		return result
	}
	result.Filepath = abs

	existing, err := p.repo.GetByFilepath(ctx, abs)
	if err != nil {
		if domain.IsKind(err, domain.ErrImageNotFound) {
			result.Skipped = true
			result.SkipReason = "not in database"
			result.Elapsed = time.Since(start)
			slog.Debug("pipeline_skip_unregistered", "filepath", abs)
			return result
		}
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	result.ImageID = existing.ID

	needsMetadata, needsKeywords := requiredWork(p.opts.UpdateFields)

	var meta *domain.Metadata
	if needsMetadata {
		meta, err = p.extractor.Extract(ctx, abs)
		if err != nil {
			result.Error = err.Error()
			result.Elapsed = time.Since(start)
			slog.Error("pipeline_extract_failed", "filepath", abs, "error", err)
			return result
		}
	}

	// A nil keyword slice means "not supplied": the gateway leaves the
	// keyword column untouched rather than erasing it.
	var keywords []string
	if needsKeywords && p.tagger != nil {
		tags, err := p.tagger.Generate(ctx, abs)
		if err != nil {
			slog.Warn("pipeline_tagging_failed", "filepath", abs, "error", err)
		} else {
			keywords = tags
			result.TagCount = len(tags)
		}
	}

	modified, err := p.repo.UpdateFields(ctx, existing.ID, p.opts.UpdateFields, meta, keywords)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	if !modified {
		result.Error = "Update failed"
		result.Elapsed = time.Since(start)
		return result
	}

	result.Success = true
	result.Updated = true
	result.UpdatedFields = append([]string(nil), p.opts.UpdateFields...)
	result.Elapsed = time.Since(start)
	slog.Info("pipeline_file_updated", "filepath", abs, "image_id", existing.ID, "fields", p.opts.UpdateFields)
	return result
}

// RetryFailed re-runs every failed record, oldest first. A record whose
// source file is gone counts as failed without any write to the record;
// everything else goes through explicit processing/completed/failed status
// transitions since the record already exists.
func (p *Pipeline) RetryFailed(ctx context.Context) (*domain.RunStats, error) {
	stats := &domain.RunStats{
		RunID:     uuid.NewString(),
		Mode:      domain.ModeDefault,
		StartedAt: time.Now().UTC(),
	}

	failed, err := p.repo.GetFailed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list failed records: %w", err)
	}
	stats.TotalFound = len(failed)

	if len(failed) == 0 {
		slog.Info("retry_nothing_to_do", "run_id", stats.RunID)
		stats.FinishedAt = time.Now().UTC()
		return stats, nil
	}

	slog.Info("retry_start", "run_id", stats.RunID, "count", len(failed))

	for i := range failed {
		if ctx.Err() != nil {
			break
		}
		img := failed[i]
		if p.opts.Progress != nil {
			p.opts.Progress(i+1, len(failed), img.Filename)
		}

		if _, err := os.Stat(img.Filepath); err != nil {
			slog.Warn("retry_source_missing", "filepath", img.Filepath, "image_id", img.ID)
			p.record(stats, domain.FileResult{
				Filepath: img.Filepath,
				ImageID:  img.ID,
				Error:    "file no longer exists",
			})
			continue
		}

		p.record(stats, p.reprocessExisting(ctx, &img))
	}

	stats.FinishedAt = time.Now().UTC()
	return stats, nil
}

func (p *Pipeline) reprocessExisting(ctx context.Context, img *domain.Image) domain.FileResult {
	start := time.Now()
	result := domain.FileResult{Filepath: img.Filepath, ImageID: img.ID}

	err := func() error {
		if err := p.repo.MarkProcessing(ctx, img.ID); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}

		// Extraction validates the file is still processable.
		if _, err := p.extractor.Extract(ctx, img.Filepath); err != nil {
			return err
		}

		keywords := []string{}
		if p.tagger != nil {
			tags, err := p.tagger.Generate(ctx, img.Filepath)
			if err != nil {
				return err
			}
			keywords = tags
			result.TagCount = len(tags)
		}

		if err := p.repo.MarkCompleted(ctx, img.ID, keywords); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		return nil
	}()
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		if markErr := p.repo.MarkFailed(ctx, img.ID, err.Error()); markErr != nil {
			slog.Error("retry_mark_failed_error", "image_id", img.ID, "error", markErr)
		}
		return result
	}

	p.generateThumbnail(ctx, img.Filepath, img.ID)

	result.Success = true
	result.Elapsed = time.Since(start)
	return result
}

// generateTags runs the tagging stage best-effort: a tagging failure leaves
// the file with zero keywords and is never fatal. The returned slice is
// never nil.
func (p *Pipeline) generateTags(ctx context.Context, path string, result *domain.FileResult) []string {
	keywords := []string{}
	if p.tagger == nil {
		return keywords
	}

	tags, err := p.tagger.Generate(ctx, path)
	if err != nil {
		slog.Warn("pipeline_tagging_failed", "filepath", path, "error", err)
		return keywords
	}
	result.TagCount = len(tags)
	return tags
}

// generateThumbnail runs the thumbnailing stage best-effort; an absent
// thumbnail is acceptable, a missing record is not.
func (p *Pipeline) generateThumbnail(ctx context.Context, path string, imageID int64) {
	if p.thumbs == nil {
		return
	}

	thumbPath, err := p.thumbs.Generate(ctx, path, imageID)
	if err != nil {
		slog.Warn("pipeline_thumbnail_failed", "filepath", path, "image_id", imageID, "error", err)
		return
	}
	if thumbPath == "" {
		return
	}
	if err := p.repo.SetThumbnailPath(ctx, imageID, thumbPath); err != nil {
		slog.Warn("pipeline_thumbnail_store_failed", "image_id", imageID, "error", err)
	}
}

func (p *Pipeline) record(stats *domain.RunStats, result domain.FileResult) {
	stats.Record(result)
	if p.opts.Observer != nil {
		p.opts.Observer(result)
	}
}

func (p *Pipeline) notifyProcessed(ctx context.Context, imageID int64) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishImageProcessed(ctx, imageID); err != nil {
		slog.Warn("pipeline_notify_failed", "image_id", imageID, "error", err)
	}
}

// requiredWork computes which expensive extraction operations the requested
// field set actually needs: metadata extraction for any column outside the
// keyword list, keyword generation only when keyword_list is requested.
func requiredWork(fields []string) (needsMetadata, needsKeywords bool) {
	for _, column := range domain.ExpandFields(fields) {
		if column == domain.ColKeywordList {
			needsKeywords = true
		} else {
			needsMetadata = true
		}
	}
	return needsMetadata, needsKeywords
}
