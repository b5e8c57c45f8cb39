package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"imgharvest/internal/downloader"
	"imgharvest/pkg/config"
	"imgharvest/pkg/errors"
	"imgharvest/pkg/harvester"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/manifest"
	"imgharvest/pkg/metrics"
	"imgharvest/pkg/renderer"
	"imgharvest/pkg/storage"
	"imgharvest/pkg/ui"
)

// Pipeline runs one harvest followed by one download batch
type Pipeline struct {
	config   *config.Config
	renderer renderer.PageRenderer
	robots   *renderer.RobotsChecker
	fetcher  downloader.FetchClient
	reporter ui.Reporter
	notifier *ui.Notifier
	metrics  *metrics.Metrics
	logger   logger.Logger
	sleep    harvester.SleepFunc
}

// Result of a run
type Result struct {
	RunID        string
	OutputDir    string
	Harvest      *harvester.Result
	Report       downloader.Report
	ManifestPath string
}

// Option customizes a Pipeline
type Option func(*Pipeline)

func WithRenderer(r renderer.PageRenderer) Option { return func(p *Pipeline) { p.renderer = r } }

// WithRobotsChecker replaces the robots.txt checker used when
// search.respect_robots is set
func WithRobotsChecker(c *renderer.RobotsChecker) Option { return func(p *Pipeline) { p.robots = c } }

func WithFetchClient(c downloader.FetchClient) Option { return func(p *Pipeline) { p.fetcher = c } }

func WithReporter(r ui.Reporter) Option { return func(p *Pipeline) { p.reporter = r } }

func WithNotifier(n *ui.Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

func WithLogger(l logger.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithSleep replaces the pause between scrolls
func WithSleep(fn harvester.SleepFunc) Option { return func(p *Pipeline) { p.sleep = fn } }

// New validates cfg and wires the default collaborators for anything not
// supplied through options
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ErrorTypeConfig, "invalid configuration", err)
	}

	p := &Pipeline{config: cfg}
	for _, o := range opts {
		o(p)
	}

	if p.logger == nil {
		p.logger = logger.GetLogger()
	}
	if p.renderer == nil {
		r, err := renderer.New(&cfg.Search)
		if err != nil {
			return nil, err
		}
		p.renderer = r
	}
	if p.robots == nil && cfg.Search.RespectRobots {
		p.robots = renderer.NewRobotsChecker(&http.Client{Timeout: cfg.Search.WaitTimeout}, cfg.Search.UserAgent)
	}
	if p.fetcher == nil {
		ua := cfg.Download.UserAgent
		if ua == "" {
			ua = cfg.Search.UserAgent
		}
		p.fetcher = downloader.NewHTTPClient(cfg.Download.FetchTimeout, ua, p.logger)
	}
	if p.reporter == nil {
		p.reporter = ui.NewConsole(os.Stdout, false)
	}
	if p.notifier == nil {
		p.notifier = ui.NewNotifier(cfg.Notifications.Enabled && cfg.Notifications.OnComplete)
	}
	return p, nil
}

// Run prepares the output folder, harvests candidate URLs, releases the
// renderer and downloads the first target_count of them. Only failing to
// prepare the folder or to open the session is returned as an error; a
// cancelled ctx returns the partial result together with ctx's error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.config
	run := manifest.New(cfg.Search.URL, cfg.Harvest.TargetCount)
	log := p.logger.WithField("run_id", run.RunID)
	res := &Result{RunID: run.RunID, OutputDir: cfg.Output.TargetFolder}

	store, err := storage.NewManager(cfg.Output.TargetFolder)
	if err != nil {
		log.WithError(err).Error("Cannot prepare output folder")
		return res, errors.New(errors.ErrorTypeWrite, "cannot prepare output folder", err)
	}
	res.OutputDir = store.GetOutputDir()
	p.reporter.FolderReady(res.OutputDir, store.Created())

	hres, err := p.harvest(ctx, log)
	if err != nil {
		res.Harvest = hres
		return res, err
	}
	res.Harvest = hres
	p.reporter.HarvestDone(string(hres.State), len(hres.URLs), hres.Iterations)
	log.InfoWithFields("Harvest finished", map[string]interface{}{
		"state":         string(hres.State),
		"discovered":    len(hres.URLs),
		"iterations":    hres.Iterations,
		"render_errors": hres.RenderErrors,
	})

	res.Report = p.download(ctx, store, hres.URLs, log)
	log.WithField("files_written", store.GetSavedCount()).Debug("Download stage finished")

	if cfg.Output.SaveManifest {
		run.SetHarvest(string(hres.State), hres.Iterations, len(hres.URLs))
		run.AddReport(res.Report)
		path, err := p.writeManifest(store, run)
		if err != nil {
			p.reporter.Warn("Could not write manifest", err)
			log.WithError(err).Warn("Manifest not written")
		}
		res.ManifestPath = path
	}

	p.reporter.Summary(res.Report.Succeeded, cfg.Output.TargetFolder)
	p.notifier.RunComplete(res.Report.Succeeded, cfg.Output.TargetFolder)
	return res, nil
}

// harvest owns the renderer session: it is closed on every path before
// harvest returns, so the download stage never overlaps with it.
func (p *Pipeline) harvest(ctx context.Context, log logger.Logger) (*harvester.Result, error) {
	var closeOnce sync.Once
	closeRenderer := func() {
		closeOnce.Do(func() {
			if err := p.renderer.Close(); err != nil {
				log.WithError(err).Warn("Failed to close renderer")
			}
		})
	}
	defer closeRenderer()

	if p.config.Search.RespectRobots && p.robots != nil {
		allowed, err := p.robots.Allowed(ctx, p.config.Search.URL)
		if err != nil {
			log.WithError(err).Warn("robots.txt unavailable, continuing")
		}
		if !allowed {
			log.WithField("url", p.config.Search.URL).Error("Results page disallowed by robots.txt")
			return nil, errors.New(errors.ErrorTypeSession, "results page disallowed by robots.txt", err)
		}
	}

	if err := p.renderer.Open(ctx, p.config.Search.URL); err != nil {
		if !errors.Is(err, renderer.ErrWaitTimeout) {
			log.WithError(err).Error("Failed to open results page")
			return nil, err
		}
		p.reporter.Warn("Result images did not appear in time, continuing", nil)
		log.WithError(err).Warn("Initial selector wait timed out")
	}

	opts := []harvester.Option{
		harvester.WithLogger(log),
		harvester.WithMetrics(p.metrics),
		harvester.WithProgress(func(s harvester.Step) {
			if s.Err != nil {
				p.reporter.Warn(fmt.Sprintf("Scroll %d: snapshot failed", s.Iteration), s.Err)
				return
			}
			p.reporter.HarvestProgress(s.Iteration, s.Found, s.Total)
		}),
	}
	if p.sleep != nil {
		opts = append(opts, harvester.WithSleep(p.sleep))
	}

	h := harvester.New(p.renderer, harvester.OptionsFromConfig(&p.config.Harvest), opts...)
	hres, err := h.Run(ctx)
	closeRenderer()
	return hres, err
}

func (p *Pipeline) download(ctx context.Context, store *storage.Manager, urls []string, log logger.Logger) downloader.Report {
	cfg := p.config
	d := downloader.New(p.fetcher, store, downloader.Options{
		TargetCount:      cfg.Harvest.TargetCount,
		ProgressInterval: cfg.Download.ProgressInterval,
	}, log)
	d.SetMetrics(p.metrics)
	d.OnProgress(p.reporter.DownloadMilestone)
	d.OnOutcome(func(o downloader.Outcome) {
		p.reporter.DownloadOutcome(o.Index, o.URL, string(o.Status), o.Err)
	})

	p.reporter.DownloadStarted(len(downloader.Truncate(urls, cfg.Harvest.TargetCount)))
	return d.Download(ctx, urls)
}

func (p *Pipeline) writeManifest(store *storage.Manager, m *manifest.Manifest) (string, error) {
	format := p.config.Output.ManifestFormat
	data, err := m.Marshal(format)
	if err != nil {
		return "", err
	}
	return store.WriteFile(manifest.FileName(format), data)
}
