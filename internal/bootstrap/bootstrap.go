package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkorchagin/photostock/internal/config"
	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
	"github.com/mkorchagin/photostock/internal/core/usecase"
	"github.com/mkorchagin/photostock/internal/infrastructure/extractor/exifmeta"
	"github.com/mkorchagin/photostock/internal/infrastructure/geocode"
	natsnotifier "github.com/mkorchagin/photostock/internal/infrastructure/notifier/nats"
	"github.com/mkorchagin/photostock/internal/infrastructure/report"
	"github.com/mkorchagin/photostock/internal/infrastructure/repository/postgres"
	"github.com/mkorchagin/photostock/internal/infrastructure/resilience"
	"github.com/mkorchagin/photostock/internal/infrastructure/scanner"
	"github.com/mkorchagin/photostock/internal/infrastructure/stock/shutterstock"
	"github.com/mkorchagin/photostock/internal/infrastructure/tagging"
	"github.com/mkorchagin/photostock/internal/infrastructure/tagging/fscache"
	"github.com/mkorchagin/photostock/internal/infrastructure/tagging/openaivision"
	"github.com/mkorchagin/photostock/internal/infrastructure/thumbnail"
	"github.com/mkorchagin/photostock/internal/observability/metrics"
)

const serviceName = "photostock"

// App holds the wired dependency graph. Tagger, Notifier, and Workflow
// are nil when their configuration is absent; the pipeline treats nil
// collaborators as disabled stages.
type App struct {
	Config config.Config

	Images      ports.ImageRepository
	Submissions ports.SubmissionRepository
	Scanner     ports.DirectoryScanner
	Classifier  ports.DuplicateChecker
	Extractor   ports.MetadataExtractor
	Tagger      ports.TagGenerator
	Thumbnails  ports.ThumbnailGenerator
	Notifier    ports.Notifier
	Workflow    ports.SubmissionService
	Exporter    *report.ExcelExporter

	Metrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	images := postgres.NewImageRepository(db)
	if err := images.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	submissions := postgres.NewSubmissionRepository(db)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffSec) * time.Second,
		BreakerEnabled:      cfg.BreakerEnabled,
	})

	geocoder := geocode.New(cfg.GeocoderURL, cfg.GeocoderUserAgent)

	thumbs, err := thumbnail.New(cfg.ThumbnailDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init thumbnail dir: %w", err)
	}

	app := &App{
		Config:      cfg,
		Images:      images,
		Submissions: submissions,
		Scanner:     scanner.New(),
		Classifier:  usecase.NewDuplicateClassifier(images),
		Extractor:   exifmeta.New(geocoder),
		Thumbnails:  thumbs,
		Exporter:    report.NewExcelExporter(images),
		Metrics:     metrics.NewPipelineMetrics(serviceName),
	}

	var closers []func()
	closers = append(closers, func() { _ = db.Close() })

	if cfg.VisionAPIKey != "" {
		cache, err := fscache.New(cfg.TagCacheDir)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init tag cache: %w", err)
		}
		vision := openaivision.New(cfg.VisionAPIURL, cfg.VisionAPIKey, executor,
			openaivision.WithModel(cfg.VisionModel),
			openaivision.WithMaxTags(cfg.VisionMaxTags),
		)
		app.Tagger = tagging.NewCachedGenerator(vision, cache)
	} else {
		slog.Info("tagging_disabled", "reason", "no vision api key")
	}

	if cfg.NotificationsEnabled {
		notifier, err := natsnotifier.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsnotifier.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		app.Notifier = notifier
		closers = append(closers, notifier.Close)
	}

	if cfg.StockSessionCookie != "" {
		stock := shutterstock.New(cfg.StockAPIURL, cfg.StockSessionCookie, executor)
		app.Workflow = usecase.NewSubmissionWorkflow(images, submissions, stock, cfg.StockMinKeywords)
	}

	app.closeFn = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return app, nil
}

// Pipeline assembles a run with the requested options and hangs the
// metrics instrumentation off the progress and observer hooks.
func (a *App) Pipeline(opts usecase.PipelineOptions) (*usecase.Pipeline, error) {
	mode := string(opts.Mode)
	if mode == "" {
		mode = string(domain.ModeDefault)
	}

	callerProgress := opts.Progress
	opts.Progress = func(current, total int, filename string) {
		a.Metrics.StartFile()
		if callerProgress != nil {
			callerProgress(current, total, filename)
		}
	}

	callerObserver := opts.Observer
	opts.Observer = func(result domain.FileResult) {
		a.Metrics.FinishFile(serviceName, mode, resultOutcome(result), result.Elapsed)
		if result.TagCount > 0 {
			a.Metrics.ObserveTagCount(serviceName, result.TagCount)
		}
		if callerObserver != nil {
			callerObserver(result)
		}
	}

	return usecase.NewPipeline(
		a.Images,
		a.Scanner,
		a.Classifier,
		a.Extractor,
		a.Tagger,
		a.Thumbnails,
		a.Notifier,
		opts,
	)
}

func resultOutcome(result domain.FileResult) string {
	switch {
	case result.Skipped:
		return "skipped"
	case !result.Success:
		return "failed"
	case result.Updated:
		return "updated"
	default:
		return "processed"
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
