// Package harvester runs the scroll-driven discovery loop over a results page.
package harvester

import (
	"context"
	"time"

	"imgharvest/pkg/config"
	"imgharvest/pkg/extractor"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/metrics"
)

// State of a harvest
type State string

const (
	StateRunning    State = "RUNNING"
	StateTargetMet  State = "STOPPED_TARGET_MET"
	StateStable     State = "STOPPED_STABLE"
	StateCapReached State = "STOPPED_CAP_REACHED"
)

// Stopped reports whether s is terminal
func (s State) Stopped() bool {
	return s == StateTargetMet || s == StateStable || s == StateCapReached
}

// Page is the part of a renderer the loop needs
type Page interface {
	Elements(ctx context.Context) ([]extractor.Element, error)
	Scroll(ctx context.Context, fraction float64) error
}

// Options is the termination and pacing policy
type Options struct {
	TargetCount    int
	MaxIterations  int
	StabilityLimit int
	ScrollFraction float64
	ScrollDelay    time.Duration
}

// OptionsFromConfig copies the harvest section
func OptionsFromConfig(cfg *config.HarvestConfig) Options {
	return Options{
		TargetCount:    cfg.TargetCount,
		MaxIterations:  cfg.MaxIterations,
		StabilityLimit: cfg.StabilityLimit,
		ScrollFraction: cfg.ScrollFraction,
		ScrollDelay:    cfg.ScrollDelay,
	}
}

// Session holds the policy and the counters of one run
type Session struct {
	Options
	State           State
	Iteration       int
	StagnationCount int
	PreviousSize    int
}

// Step is the outcome of one iteration. Err is set when the element query
// failed; ScrollErr when the scroll that followed it failed.
type Step struct {
	Iteration  int
	Found      int
	New        int
	Total      int
	Stagnation int
	Err        error
	ScrollErr  error
}

// Result is what a finished harvest hands to the download stage
type Result struct {
	State        State
	URLs         []string
	Iterations   int
	RenderErrors int
	Steps        []Step
}

// SleepFunc pauses between scrolls; it returns early when ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Harvester drives a Page until one of the stopping conditions holds
type Harvester struct {
	page     Page
	opts     Options
	logger   logger.Logger
	metrics  *metrics.Metrics
	sleep    SleepFunc
	progress func(Step)
}

// Option customizes a Harvester
type Option func(*Harvester)

func WithLogger(l logger.Logger) Option { return func(h *Harvester) { h.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Harvester) { h.metrics = m } }

// WithSleep replaces the pause between scrolls, tests pass a no-op
func WithSleep(fn SleepFunc) Option { return func(h *Harvester) { h.sleep = fn } }

// WithProgress registers a callback invoked after every iteration
func WithProgress(fn func(Step)) Option { return func(h *Harvester) { h.progress = fn } }

// New creates a harvester over page
func New(page Page, opts Options, options ...Option) *Harvester {
	if opts.StabilityLimit < 1 {
		opts.StabilityLimit = 1
	}
	h := &Harvester{
		page:   page,
		opts:   opts,
		logger: logger.GetLogger(),
		sleep:  sleepContext,
	}
	for _, o := range options {
		o(h)
	}
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the loop. Render failures never escape it; the returned
// error is non-nil only when ctx is cancelled, in which case the result
// holds what was collected and its State is still RUNNING.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	sess := &Session{Options: h.opts, State: StateRunning}
	set := NewHarvestSet()
	res := &Result{}

	log := h.logger.WithField("component", "harvester")
	logger.LogComponentStart(log, "harvester", map[string]interface{}{
		"target_count":    h.opts.TargetCount,
		"max_iterations":  h.opts.MaxIterations,
		"stability_limit": h.opts.StabilityLimit,
	})

	finish := func() *Result {
		res.State = sess.State
		res.URLs = set.URLs()
		res.Iterations = sess.Iteration
		if sess.State.Stopped() {
			h.metrics.ObserveHarvestStop(string(sess.State))
			logger.LogComponentStop(log, "harvester", string(sess.State))
		}
		return res
	}

	for sess.State == StateRunning {
		if set.Len() >= sess.TargetCount {
			sess.State = StateTargetMet
			break
		}
		if sess.Iteration >= sess.MaxIterations {
			sess.State = StateCapReached
			break
		}
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		step := h.iterate(ctx, sess, set, log)
		if step.Err != nil {
			res.RenderErrors++
		}

		switch {
		case sess.State != StateRunning:
		case set.Len() >= sess.TargetCount:
			sess.State = StateTargetMet
		case sess.Iteration >= sess.MaxIterations:
			sess.State = StateCapReached
		}

		if sess.State == StateRunning {
			if err := h.page.Scroll(ctx, sess.ScrollFraction); err != nil {
				step.ScrollErr = err
				res.RenderErrors++
				h.metrics.IncRenderError("scroll")
				log.WithError(err).WithField("iteration", sess.Iteration).Warn("Scroll failed")
			}
		}

		res.Steps = append(res.Steps, step)
		if h.progress != nil {
			h.progress(step)
		}

		if sess.State == StateRunning {
			if err := h.sleep(ctx, sess.ScrollDelay); err != nil {
				return finish(), err
			}
		}
	}

	return finish(), nil
}

// iterate takes one snapshot, merges it and updates the stagnation counter
func (h *Harvester) iterate(ctx context.Context, sess *Session, set *HarvestSet, log logger.Logger) Step {
	sess.Iteration++
	step := Step{Iteration: sess.Iteration}

	elements, err := h.page.Elements(ctx)
	if err != nil {
		step.Err = err
		step.Total = set.Len()
		step.Stagnation = sess.StagnationCount
		h.metrics.IncRenderError("elements")
		log.WithError(err).WithField("iteration", sess.Iteration).Warn("Element query failed")
		return step
	}

	urls := extractor.Extract(elements)
	step.Found = len(urls)
	step.New = set.Merge(urls)
	step.Total = set.Len()

	if set.Len() == sess.PreviousSize {
		sess.StagnationCount++
		if sess.StagnationCount >= sess.StabilityLimit {
			sess.State = StateStable
		}
	} else {
		sess.StagnationCount = 0
		sess.PreviousSize = set.Len()
	}
	step.Stagnation = sess.StagnationCount

	h.metrics.ObserveIteration(step.Total, sess.StagnationCount)
	logger.LogHarvestProgress(log, step.Iteration, step.Found, step.New, step.Total)
	return step
}
