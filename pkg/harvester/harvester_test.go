package harvester

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imgharvest/pkg/extractor"
	"imgharvest/pkg/logger"
)

// fakePage replays scripted snapshots; after the script runs out it keeps
// returning the last one.
type fakePage struct {
	snapshots  [][]extractor.Element
	elemErrs   map[int]error
	scrollErrs map[int]error

	queries int
	scrolls int
}

func (p *fakePage) Elements(ctx context.Context) ([]extractor.Element, error) {
	p.queries++
	if err := p.elemErrs[p.queries]; err != nil {
		return nil, err
	}
	if len(p.snapshots) == 0 {
		return nil, nil
	}
	i := p.queries - 1
	if i >= len(p.snapshots) {
		i = len(p.snapshots) - 1
	}
	return p.snapshots[i], nil
}

func (p *fakePage) Scroll(ctx context.Context, fraction float64) error {
	p.scrolls++
	return p.scrollErrs[p.scrolls]
}

func noSleep(context.Context, time.Duration) error { return nil }

func imgs(urls ...string) []extractor.Element {
	out := make([]extractor.Element, len(urls))
	for i, u := range urls {
		out[i] = extractor.Element{Src: u}
	}
	return out
}

func seq(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("https://img.example/%d.jpg", i))
	}
	return out
}

func defaultOptions() Options {
	return Options{TargetCount: 500, MaxIterations: 1000, StabilityLimit: 5, ScrollFraction: 0.8}
}

func run(t *testing.T, page Page, opts Options) *Result {
	t.Helper()
	res, err := New(page, opts, WithSleep(noSleep), WithLogger(logger.NewNopLogger())).Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestDedupAcrossSnapshots(t *testing.T) {
	page := &fakePage{snapshots: [][]extractor.Element{
		imgs(seq(1, 3)...),
		append(imgs(seq(2, 5)...), extractor.Element{Src: "//img.example/1.jpg"}),
		imgs(seq(1, 5)...),
		{{DataSrc: "https://img.example/6.jpg"}, {Src: "data:image/gif;base64,AA"}},
	}}

	res := run(t, page, defaultOptions())

	assert.Equal(t, StateStable, res.State)
	assert.Equal(t, seq(1, 6), res.URLs)
	assert.Equal(t, 3, res.Steps[0].New)
	assert.Equal(t, 2, res.Steps[1].New)
	assert.Equal(t, 0, res.Steps[2].New)
	assert.Equal(t, 1, res.Steps[3].New)
}

func TestStabilityStopsAfterLimit(t *testing.T) {
	page := &fakePage{snapshots: [][]extractor.Element{
		imgs(seq(1, 10)...),
		imgs(seq(1, 20)...),
	}}

	res := run(t, page, defaultOptions())

	require.Equal(t, StateStable, res.State)
	// two growing snapshots, then five flat ones
	assert.Equal(t, 7, res.Iterations)
	assert.Len(t, res.URLs, 20)
	for _, s := range res.Steps[2:] {
		assert.Equal(t, 20, s.Total)
	}
	assert.Equal(t, 5, res.Steps[len(res.Steps)-1].Stagnation)
	assert.Equal(t, 6, page.scrolls, "no scroll after the stopping iteration")
}

func TestEmptyPageEndsStable(t *testing.T) {
	page := &fakePage{}
	res := run(t, page, defaultOptions())

	assert.Equal(t, StateStable, res.State)
	assert.Equal(t, 5, res.Iterations)
	assert.Empty(t, res.URLs)
}

func TestCapReached(t *testing.T) {
	page := &growingPage{}
	opts := defaultOptions()
	opts.MaxIterations = 25

	res := run(t, page, opts)

	assert.Equal(t, StateCapReached, res.State)
	assert.Equal(t, 25, res.Iterations)
	assert.Equal(t, 24, page.scrolls)
	assert.Len(t, res.URLs, 25)
}

func TestTargetMetShortCircuit(t *testing.T) {
	page := &fakePage{snapshots: [][]extractor.Element{imgs(seq(1, 12)...)}}
	opts := defaultOptions()
	opts.TargetCount = 10

	res := run(t, page, opts)

	assert.Equal(t, StateTargetMet, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, page.scrolls)
	assert.Len(t, res.URLs, 12, "the set keeps everything seen; truncation happens downstream")
}

func TestZeroTargetDoesNothing(t *testing.T) {
	page := &fakePage{snapshots: [][]extractor.Element{imgs(seq(1, 3)...)}}
	opts := defaultOptions()
	opts.TargetCount = 0

	res := run(t, page, opts)

	assert.Equal(t, StateTargetMet, res.State)
	assert.Equal(t, 0, page.queries)
	assert.Empty(t, res.Steps)
}

func TestRenderFailuresAreIsolated(t *testing.T) {
	page := &fakePage{
		snapshots: [][]extractor.Element{
			imgs(seq(1, 2)...),
			nil,
			imgs(seq(1, 4)...),
		},
		elemErrs:   map[int]error{2: errors.New("target closed")},
		scrollErrs: map[int]error{1: errors.New("evaluate failed")},
	}

	tl := logger.NewTestLogger()
	res, err := New(page, defaultOptions(), WithSleep(noSleep), WithLogger(tl)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateStable, res.State)
	assert.Equal(t, seq(1, 4), res.URLs)
	assert.Equal(t, 2, res.RenderErrors)
	assert.Error(t, res.Steps[0].ScrollErr)
	assert.Error(t, res.Steps[1].Err)
	assert.Equal(t, 0, res.Steps[1].Stagnation, "a failed query does not count as stagnation")
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
}

func TestFailuresStillBoundedByCap(t *testing.T) {
	failing := map[int]error{}
	for i := 1; i <= 10; i++ {
		failing[i] = errors.New("gone")
	}
	page := &fakePage{elemErrs: failing}
	opts := defaultOptions()
	opts.MaxIterations = 10

	res := run(t, page, opts)
	assert.Equal(t, StateCapReached, res.State)
	assert.Equal(t, 10, res.RenderErrors)
}

func TestProgressAndDelay(t *testing.T) {
	page := &fakePage{snapshots: [][]extractor.Element{imgs(seq(1, 2)...)}}
	opts := defaultOptions()
	opts.StabilityLimit = 2
	opts.ScrollDelay = 250 * time.Millisecond

	var steps []Step
	var delays []time.Duration
	h := New(page, opts,
		WithLogger(logger.NewNopLogger()),
		WithProgress(func(s Step) { steps = append(steps, s) }),
		WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Steps, steps)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, delays)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := &fakePage{snapshots: [][]extractor.Element{imgs(seq(1, 2)...)}}

	h := New(page, defaultOptions(), WithLogger(logger.NewNopLogger()), WithSleep(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}))

	res, err := h.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateRunning, res.State)
	assert.Len(t, res.URLs, 2)
}

func TestTerminationIsTotal(t *testing.T) {
	for limit := 1; limit <= 6; limit++ {
		for max := 0; max <= 8; max++ {
			opts := Options{TargetCount: 7, MaxIterations: max, StabilityLimit: limit}
			res := run(t, &growingPage{every: 2}, opts)
			assert.True(t, res.State.Stopped(), "limit=%d max=%d", limit, max)
			assert.LessOrEqual(t, res.Iterations, max)
		}
	}
}

// growingPage reveals one new image on every call, or every n-th call
type growingPage struct {
	every   int
	calls   int
	scrolls int
}

func (p *growingPage) Elements(ctx context.Context) ([]extractor.Element, error) {
	p.calls++
	n := p.calls
	if p.every > 1 {
		n = p.calls / p.every
	}
	return imgs(seq(1, n)...), nil
}

func (p *growingPage) Scroll(ctx context.Context, fraction float64) error {
	p.scrolls++
	return nil
}

func TestHarvestSet(t *testing.T) {
	s := NewHarvestSet()
	assert.True(t, s.Add("https://a"))
	assert.False(t, s.Add("https://a"))
	assert.Equal(t, 1, s.Merge([]string{"https://a", "https://b"}))
	assert.False(t, s.Add("https://b"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"https://a", "https://b"}, s.URLs())

	urls := s.URLs()
	urls[0] = "mutated"
	assert.Equal(t, "https://a", s.URLs()[0])
}
