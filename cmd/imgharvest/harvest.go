package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"imgharvest/pkg/config"
	imgerrors "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/metrics"
	"imgharvest/pkg/pipeline"
	"imgharvest/pkg/ui"
	"imgharvest/pkg/ui/tui"
)

var (
	// Harvest command flags
	selector       string
	rendererName   string
	headless       bool
	respectRobots  bool
	outputDir      string
	targetCount    int
	maxIterations  int
	stabilityLimit int
	scrollDelay    time.Duration
	fetchTimeout   time.Duration
	saveManifest   bool
	metricsListen  string
	useTUI         bool
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest [search-url]",
	Short: "Scroll a results page and download the images it shows",
	Long: `Open the results page in a browser session, scroll until the set of image
URLs stops growing and download the first target-count images.

Files are written as image_001.jpg, image_002.png and so on. A non-200
response is skipped and a failed download is reported without stopping
the batch.`,
	Example: `  # Harvest the default search into ./profilePhotos
  imgharvest harvest

  # Harvest a different query and keep 50 images
  imgharvest harvest "https://duckduckgo.com/?q=cats&ia=images&iax=images" --target-count 50

  # Parse the page without a browser and write a manifest
  imgharvest harvest --renderer static --manifest

  # Expose Prometheus metrics while running
  imgharvest harvest --metrics-listen :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	for _, cmd := range []*cobra.Command{harvestCmd, rootCmd} {
		f := cmd.Flags()
		f.StringVar(&selector, "selector", "", "CSS selector for result images")
		f.StringVar(&rendererName, "renderer", "", "page renderer: chrome or static")
		f.BoolVar(&headless, "headless", false, "run the browser without a window")
		f.BoolVar(&respectRobots, "respect-robots", false, "refuse pages disallowed by the host's robots.txt")
		f.StringVarP(&outputDir, "output", "o", "", "folder to save images into (default: profilePhotos)")
		f.IntVarP(&targetCount, "target-count", "n", 0, "number of images to download")
		f.IntVar(&maxIterations, "max-iterations", 0, "upper bound on scroll iterations")
		f.IntVar(&stabilityLimit, "stability-limit", 0, "consecutive iterations without growth before stopping")
		f.DurationVar(&scrollDelay, "scroll-delay", 0, "pause after each scroll")
		f.DurationVar(&fetchTimeout, "fetch-timeout", 0, "timeout for each image download")
		f.BoolVar(&saveManifest, "manifest", false, "write a manifest of the run into the output folder")
		f.StringVar(&metricsListen, "metrics-listen", "", "address to serve Prometheus metrics on")
		f.BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	}

	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.RunE = runHarvest
}

// harvestFlags collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects them
func harvestFlags(cmd *cobra.Command, args []string) map[string]interface{} {
	flags := make(map[string]interface{})
	if len(args) > 0 {
		flags["url"] = args[0]
	}

	f := cmd.Flags()
	set := func(name string, value interface{}) {
		if f.Changed(name) {
			flags[name] = value
		}
	}
	set("selector", selector)
	set("renderer", rendererName)
	set("headless", headless)
	set("respect-robots", respectRobots)
	set("output", outputDir)
	set("target-count", targetCount)
	set("max-iterations", maxIterations)
	set("stability-limit", stabilityLimit)
	set("scroll-delay", scrollDelay)
	set("fetch-timeout", fetchTimeout)
	set("manifest", saveManifest)
	set("notifications", notifications)
	set("metrics-listen", metricsListen)

	if f.Changed("log-level") || logLevel != "info" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, harvestFlags(cmd, args))
	if err != nil {
		return imgerrors.New(imgerrors.ErrorTypeConfig, "failed to load configuration", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return imgerrors.New(imgerrors.ErrorTypeConfig, "failed to initialize logger", err)
	}
	if useTUI && cfg.Logging.File == "" {
		// console logging would tear the alternate screen
		logger.SetLogger(logger.NewNopLogger())
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("imgharvest starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		shutdown := serveMetrics(cfg.Metrics, m, log)
		defer shutdown()
	}

	opts := []pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
	}

	if !quiet && !useTUI {
		ui.PrintInfo("Search", cfg.Search.URL)
		ui.PrintInfo("Output", cfg.Output.TargetFolder)
	}

	if useTUI {
		return runWithTUI(ctx, cfg, opts, log)
	}

	opts = append(opts, pipeline.WithReporter(ui.NewConsole(os.Stdout, quiet)))
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	return finishRun(res, err, log)
}

func runWithTUI(ctx context.Context, cfg *config.Config, opts []pipeline.Option, log logger.Logger) error {
	terminal := tui.New(cfg.Harvest.TargetCount)
	p, err := pipeline.New(cfg, append(opts, pipeline.WithReporter(terminal))...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res *pipeline.Result
		err error
	}
	runDone := make(chan outcome, 1)
	go func() {
		res, err := p.Run(ctx)
		runDone <- outcome{res, err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	// The screen stays up after a successful run until the user quits,
	// quitting early cancels the run.
	select {
	case out := <-runDone:
		if out.err != nil {
			// nothing left to watch
			terminal.Stop()
		}
		if err := <-tuiDone; err != nil {
			log.WithError(err).Error("TUI failed")
		}
		return finishRun(out.res, out.err, log)
	case err := <-tuiDone:
		cancel()
		out := <-runDone
		if err != nil {
			log.WithError(err).Error("TUI failed")
		}
		return finishRun(out.res, out.err, log)
	}
}

func finishRun(res *pipeline.Result, err error, log logger.Logger) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Run interrupted", nil)
			if res != nil {
				log.WithField("downloaded", res.Report.Succeeded).Warn("Run interrupted")
			}
			return err
		}
		log.WithError(err).WithFields(map[string]interface{}{
			"error_type": string(imgerrors.TypeOf(err)),
			"fatal":      imgerrors.IsFatal(imgerrors.TypeOf(err)),
		}).Error("Run failed")
		return err
	}

	fields := map[string]interface{}{
		"run_id":     res.RunID,
		"downloaded": res.Report.Succeeded,
		"skipped":    res.Report.Skipped,
		"failed":     res.Report.Failed,
	}
	if res.Harvest != nil {
		fields["harvest_state"] = string(res.Harvest.State)
		fields["discovered"] = len(res.Harvest.URLs)
	}
	log.InfoWithFields("Run completed", fields)
	if res.ManifestPath != "" && !quiet && !useTUI {
		ui.PrintInfo("Manifest", res.ManifestPath)
	}
	return nil
}

// serveMetrics exposes m on cfg.Listen and returns a function that stops the server
func serveMetrics(cfg config.MetricsConfig, m *metrics.Metrics, log logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, m.Handler())
	srv := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("listen", cfg.Listen).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("Metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// exitCode maps a run error to a process status: 2 for bad configuration,
// 3 for any other fatal error, 130 when interrupted and 1 otherwise
func exitCode(err error) int {
	errType := imgerrors.TypeOf(err)
	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case errType == imgerrors.ErrorTypeConfig:
		return 2
	case imgerrors.IsFatal(errType):
		return 3
	default:
		return 1
	}
}
