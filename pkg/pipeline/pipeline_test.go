package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imgharvest/internal/downloader"
	"imgharvest/pkg/config"
	imgerrors "imgharvest/pkg/errors"
	"imgharvest/pkg/extractor"
	"imgharvest/pkg/harvester"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/manifest"
	"imgharvest/pkg/renderer"
	"imgharvest/pkg/ui"
)

// events is a shared timeline the fakes append to
type events struct{ list []string }

func (e *events) add(format string, args ...interface{}) {
	e.list = append(e.list, fmt.Sprintf(format, args...))
}

func (e *events) index(prefix string) int {
	for i, ev := range e.list {
		if strings.HasPrefix(ev, prefix) {
			return i
		}
	}
	return -1
}

type fakeRenderer struct {
	ev        *events
	openErr   error
	snapshots [][]extractor.Element
	calls     int
	closed    int
}

func (r *fakeRenderer) Open(ctx context.Context, url string) error {
	r.ev.add("open %s", url)
	return r.openErr
}

func (r *fakeRenderer) Elements(ctx context.Context) ([]extractor.Element, error) {
	r.ev.add("elements")
	if len(r.snapshots) == 0 {
		return nil, nil
	}
	i := r.calls
	if i >= len(r.snapshots) {
		i = len(r.snapshots) - 1
	}
	r.calls++
	return r.snapshots[i], nil
}

func (r *fakeRenderer) Scroll(ctx context.Context, fraction float64) error {
	r.ev.add("scroll")
	return nil
}

func (r *fakeRenderer) Close() error {
	r.ev.add("close")
	r.closed++
	return nil
}

type fakeFetcher struct {
	ev      *events
	failing map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*downloader.Response, error) {
	f.ev.add("fetch %s", url)
	if f.failing[url] {
		return nil, errors.New("connection reset")
	}
	return &downloader.Response{
		StatusCode:  200,
		ContentType: "image/png",
		Body:        io.NopCloser(strings.NewReader("png-bytes")),
	}, nil
}

func imgs(urls ...string) []extractor.Element {
	out := make([]extractor.Element, len(urls))
	for i, u := range urls {
		out[i] = extractor.Element{Src: u}
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Search.URL = "https://search.example/?q=faces"
	cfg.Output.TargetFolder = filepath.Join(t.TempDir(), "profilePhotos")
	cfg.Harvest.TargetCount = 3
	cfg.Notifications.Enabled = false
	return cfg
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestPipeline(t *testing.T, cfg *config.Config, r renderer.PageRenderer, f downloader.FetchClient, out *bytes.Buffer) *Pipeline {
	t.Helper()
	p, err := New(cfg,
		WithRenderer(r),
		WithFetchClient(f),
		WithReporter(ui.NewConsole(out, false)),
		WithLogger(logger.NewNopLogger()),
		WithSleep(noSleep),
	)
	require.NoError(t, err)
	return p
}

func TestRunEndToEnd(t *testing.T) {
	ev := &events{}
	r := &fakeRenderer{ev: ev, snapshots: [][]extractor.Element{
		imgs("https://img.example/1", "//img.example/2"),
		imgs("https://img.example/1", "https://img.example/2", "https://img.example/3", "https://img.example/4"),
	}}
	f := &fakeFetcher{ev: ev, failing: map[string]bool{"https://img.example/2": true}}
	cfg := testConfig(t)
	var out bytes.Buffer

	res, err := newTestPipeline(t, cfg, r, f, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, harvester.StateTargetMet, res.Harvest.State)
	assert.Equal(t, cfg.Output.TargetFolder, res.OutputDir)
	assert.Equal(t, 2, res.Report.Succeeded)
	assert.Equal(t, 1, res.Report.Failed)
	assert.Len(t, res.Report.Outcomes, 3, "truncated to target_count")

	// the session is closed exactly once and before the first download
	assert.Equal(t, 1, r.closed)
	assert.Less(t, ev.index("close"), ev.index("fetch"))
	assert.Equal(t, []string{"open https://search.example/?q=faces", "elements", "scroll", "elements", "close"}, ev.list[:5])

	entries, err := os.ReadDir(cfg.Output.TargetFolder)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"image_001.png", "image_003.png"}, names)

	text := out.String()
	assert.Contains(t, text, "Scroll 1: Found 1 unique images so far")
	assert.Contains(t, text, "Scroll 2: Found 4 unique images so far")
	assert.Contains(t, text, "Error downloading image 2")
	assert.Contains(t, text, "Successfully downloaded 2 images")
}

func TestWaitTimeoutIsOnlyAWarning(t *testing.T) {
	ev := &events{}
	r := &fakeRenderer{ev: ev, openErr: fmt.Errorf("%w: deadline exceeded", renderer.ErrWaitTimeout)}
	cfg := testConfig(t)
	var out bytes.Buffer

	res, err := newTestPipeline(t, cfg, r, &fakeFetcher{ev: ev}, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, harvester.StateStable, res.Harvest.State)
	assert.Zero(t, res.Report.Succeeded)
	assert.Contains(t, out.String(), "did not appear in time")
	assert.Contains(t, out.String(), "Successfully downloaded 0 images")
	assert.Equal(t, -1, ev.index("fetch"))
}

func TestSessionFailureIsFatal(t *testing.T) {
	ev := &events{}
	openErr := imgerrors.New(imgerrors.ErrorTypeSession, "chrome not found", nil)
	r := &fakeRenderer{ev: ev, openErr: openErr}
	cfg := testConfig(t)

	res, err := newTestPipeline(t, cfg, r, &fakeFetcher{ev: ev}, &bytes.Buffer{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, imgerrors.IsFatal(imgerrors.TypeOf(err)))
	assert.Nil(t, res.Harvest)
	assert.Equal(t, 1, r.closed, "session is released even when opening fails")
	assert.Equal(t, -1, ev.index("elements"))
}

func TestExistingFolderIsReused(t *testing.T) {
	ev := &events{}
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Output.TargetFolder, 0755))
	var out bytes.Buffer

	_, err := newTestPipeline(t, cfg, &fakeRenderer{ev: ev}, &fakeFetcher{ev: ev}, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Folder already exists")
}

func TestOutputFolderFailureIsFatal(t *testing.T) {
	ev := &events{}
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.Output.TargetFolder = blocker

	r := &fakeRenderer{ev: ev}
	_, err := newTestPipeline(t, cfg, r, &fakeFetcher{ev: ev}, &bytes.Buffer{}).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, ev.list, "nothing runs without an output folder")
}

func TestManifestIsWritten(t *testing.T) {
	ev := &events{}
	cfg := testConfig(t)
	cfg.Output.SaveManifest = true
	cfg.Output.ManifestFormat = "yaml"
	r := &fakeRenderer{ev: ev, snapshots: [][]extractor.Element{imgs("https://img.example/a")}}

	res, err := newTestPipeline(t, cfg, r, &fakeFetcher{ev: ev}, &bytes.Buffer{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.Output.TargetFolder, "manifest.yaml"), res.ManifestPath)

	m, err := manifest.Load(res.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, m.RunID)
	assert.Equal(t, "STOPPED_STABLE", m.HarvestState)
	assert.Equal(t, 1, m.Succeeded)
	require.Len(t, m.Items, 1)
	assert.Equal(t, "image_001.png", m.Items[0].File)
}

func TestRunWithHTTPClient(t *testing.T) {
	ev := &events{}
	cfg := testConfig(t)
	cfg.Harvest.TargetCount = 2
	r := &fakeRenderer{ev: ev, snapshots: [][]extractor.Element{
		imgs("https://img.example/x", "https://img.example/y", "https://img.example/z"),
	}}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://img.example/x", httpmock.NewStringResponder(200, "x"))
	transport.RegisterResponder("GET", "https://img.example/y", httpmock.NewStringResponder(404, ""))
	client := downloader.NewHTTPClient(time.Second, cfg.Download.UserAgent, logger.NewNopLogger())
	client.SetTransport(transport)

	res, err := newTestPipeline(t, cfg, r, client, &bytes.Buffer{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Succeeded)
	assert.Equal(t, 1, res.Report.Skipped)
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Harvest.StabilityLimit = 0

	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, imgerrors.ErrorTypeConfig, imgerrors.TypeOf(err))
}

func TestRobotsDisallowIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /search\n"))
	}))
	defer srv.Close()

	ev := &events{}
	cfg := testConfig(t)
	cfg.Search.URL = srv.URL + "/search?q=faces"
	cfg.Search.RespectRobots = true
	r := &fakeRenderer{ev: ev}

	p, err := New(cfg,
		WithRenderer(r),
		WithRobotsChecker(renderer.NewRobotsChecker(srv.Client(), "")),
		WithFetchClient(&fakeFetcher{ev: ev}),
		WithReporter(ui.NewConsole(io.Discard, true)),
		WithLogger(logger.NewNopLogger()),
		WithSleep(noSleep),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, imgerrors.ErrorTypeSession, imgerrors.TypeOf(err))
	assert.Equal(t, []string{"close"}, ev.list)
}
