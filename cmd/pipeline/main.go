package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mkorchagin/photostock/internal/bootstrap"
	"github.com/mkorchagin/photostock/internal/config"
	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/usecase"
	"github.com/mkorchagin/photostock/internal/observability/logging"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130

	serviceLabel = "photostock"
)

type cliFlags struct {
	recursive      bool
	initMode       bool
	updateFields   string
	retryFailed    bool
	noAI           bool
	noThumbnails   bool
	skipExisting   bool
	skipDuplicates bool
	maxTags        int
	exportPath     string
	submit         bool
	syncStatus     bool
	verbose        bool
	yes            bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var flags cliFlags
	flag.BoolVar(&flags.recursive, "recursive", false, "descend into subdirectories")
	flag.BoolVar(&flags.initMode, "init", false, "delete all existing records before processing (asks for confirmation)")
	flag.StringVar(&flags.updateFields, "update", "", "comma-separated fields or groups to refresh on known images")
	flag.BoolVar(&flags.retryFailed, "retry-failed", false, "reprocess previously failed images instead of scanning")
	flag.BoolVar(&flags.noAI, "no-ai", false, "skip keyword generation")
	flag.BoolVar(&flags.noThumbnails, "no-thumbnails", false, "skip thumbnail rendering")
	flag.BoolVar(&flags.skipExisting, "skip-existing", true, "skip files already stored under the same path")
	flag.BoolVar(&flags.skipDuplicates, "skip-duplicates", true, "skip files whose content hash is already stored")
	flag.IntVar(&flags.maxTags, "max-tags", 0, "override the keyword count limit")
	flag.StringVar(&flags.exportPath, "export", "", "write the catalog to this XLSX path and exit")
	flag.BoolVar(&flags.submit, "submit", false, "upload and submit completed images to the marketplace")
	flag.BoolVar(&flags.syncStatus, "sync-status", false, "poll marketplace review outcomes and exit")
	flag.BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&flags.yes, "yes", false, "answer confirmation prompts with yes")
	flag.Parse()

	cfg := config.Load()
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	if flags.maxTags > 0 {
		cfg.VisionMaxTags = flags.maxTags
	}
	slog.SetDefault(logging.NewTextLogger(os.Stderr, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		return exitFailure
	}
	defer app.Close()

	switch {
	case flags.exportPath != "":
		return exportCatalog(ctx, app, flags.exportPath)
	case flags.submit:
		return submitCompleted(ctx, app)
	case flags.syncStatus:
		return syncStatuses(ctx, app)
	case flags.retryFailed:
		return retryFailed(ctx, app, flags)
	default:
		return processDirectory(ctx, app, flags)
	}
}

func processDirectory(ctx context.Context, app *bootstrap.App, flags cliFlags) int {
	root := flag.Arg(0)
	if root == "" {
		fmt.Fprintln(os.Stderr, "usage: pipeline [flags] <directory>")
		return exitFailure
	}

	opts, code := buildOptions(flags)
	if code != exitOK {
		return code
	}
	if opts.Mode == domain.ModeInit && !confirmInit(flags.yes) {
		fmt.Println("Aborted.")
		return exitOK
	}

	pipeline, err := newPipeline(app, flags, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return exitFailure
	}

	start := time.Now()
	stats, err := pipeline.ProcessDirectory(ctx, root, flags.recursive)
	app.Metrics.FinishRun(serviceLabel, string(opts.Mode), time.Since(start), err)
	return report(ctx, stats, err)
}

func retryFailed(ctx context.Context, app *bootstrap.App, flags cliFlags) int {
	opts, code := buildOptions(flags)
	if code != exitOK {
		return code
	}

	pipeline, err := newPipeline(app, flags, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return exitFailure
	}

	start := time.Now()
	stats, err := pipeline.RetryFailed(ctx)
	app.Metrics.FinishRun(serviceLabel, "retry", time.Since(start), err)
	return report(ctx, stats, err)
}

func exportCatalog(ctx context.Context, app *bootstrap.App, path string) int {
	rows, err := app.Exporter.Export(ctx, path, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return exitFailure
	}
	fmt.Printf("Exported %d images to %s\n", rows, path)
	return exitOK
}

func submitCompleted(ctx context.Context, app *bootstrap.App) int {
	if app.Workflow == nil {
		fmt.Fprintln(os.Stderr, "marketplace submission is not configured; set STOCK_SESSION_COOKIE")
		return exitFailure
	}
	submitted, err := app.Workflow.SubmitCompleted(ctx, app.Config.StockMarketplace, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		return exitFailure
	}
	fmt.Printf("Submitted %d images to %s\n", len(submitted), app.Config.StockMarketplace)
	return exitOK
}

func syncStatuses(ctx context.Context, app *bootstrap.App) int {
	if app.Workflow == nil {
		fmt.Fprintln(os.Stderr, "marketplace submission is not configured; set STOCK_SESSION_COOKIE")
		return exitFailure
	}
	changed, err := app.Workflow.SyncStatuses(ctx, app.Config.StockMarketplace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync: %v\n", err)
		return exitFailure
	}
	fmt.Printf("Review outcomes changed for %d submissions\n", changed)
	return exitOK
}

func buildOptions(flags cliFlags) (usecase.PipelineOptions, int) {
	opts := usecase.PipelineOptions{
		Mode:           domain.ModeDefault,
		SkipExisting:   flags.skipExisting,
		SkipDuplicates: flags.skipDuplicates,
		Progress: func(current, total int, filename string) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, filename)
		},
	}

	if flags.initMode && flags.updateFields != "" {
		fmt.Fprintln(os.Stderr, "-init and -update are mutually exclusive")
		return opts, exitFailure
	}
	if flags.initMode {
		opts.Mode = domain.ModeInit
	}
	if flags.updateFields != "" {
		opts.Mode = domain.ModeUpdate
		for _, field := range strings.Split(flags.updateFields, ",") {
			if field = strings.TrimSpace(field); field != "" {
				opts.UpdateFields = append(opts.UpdateFields, field)
			}
		}
	}
	return opts, exitOK
}

func newPipeline(app *bootstrap.App, flags cliFlags, opts usecase.PipelineOptions) (*usecase.Pipeline, error) {
	if flags.noAI {
		app.Tagger = nil
	}
	if flags.noThumbnails {
		app.Thumbnails = nil
	}
	return app.Pipeline(opts)
}

func confirmInit(assumeYes bool) bool {
	if assumeYes {
		return true
	}
	fmt.Print("Init mode deletes every stored image record. Type 'yes' to continue: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

func report(ctx context.Context, stats *domain.RunStats, err error) int {
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "interrupted")
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return exitFailure
	}

	fmt.Println(stats.Summary())

	if ctx.Err() != nil {
		return exitInterrupted
	}
	if stats.Failed > 0 {
		return exitFailure
	}
	return exitOK
}
