package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	imgerrors "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/storage"
)

func imageResponder(contentType, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return httpmock.ResponderFromResponse(resp)
}

func newTestDownloader(t *testing.T, target int) (*Downloader, *httpmock.MockTransport, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	client := NewHTTPClient(0, "test-agent", logger.NewNopLogger())
	client.SetTransport(transport)

	d := New(client, store, Options{TargetCount: target, ProgressInterval: 50}, logger.NewNopLogger())
	return d, transport, dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", ".png"},
		{"image/webp", ".webp"},
		{"image/jpeg", ".jpg"},
		{"", ".jpg"},
		{"IMAGE/PNG", ".png"},
		{"image/gif", ".jpg"},
		{"application/octet-stream; name=a.webp", ".webp"},
		{"image/png+webp", ".png"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionFor(tt.contentType))
		})
	}
}

func TestFailureIsolation(t *testing.T) {
	d, transport, dir := newTestDownloader(t, 500)
	transport.RegisterResponder("GET", "https://img.example/1", imageResponder("image/jpeg", "one"))
	transport.RegisterResponder("GET", "https://img.example/2", httpmock.NewErrorResponder(errors.New("connection refused")))
	transport.RegisterResponder("GET", "https://img.example/3", imageResponder("image/png", "three"))

	report := d.Download(context.Background(), []string{
		"https://img.example/1",
		"https://img.example/2",
		"https://img.example/3",
	})

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Outcomes, 3)

	assert.Equal(t, StatusStored, report.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
	assert.Equal(t, 2, report.Outcomes[1].Index)
	assert.Equal(t, imgerrors.ErrorTypeNetwork, imgerrors.TypeOf(report.Outcomes[1].Err))
	assert.Equal(t, StatusStored, report.Outcomes[2].Status)

	assert.ElementsMatch(t, []string{"image_001.jpg", "image_003.png"}, listDir(t, dir))
	got, err := os.ReadFile(filepath.Join(dir, "image_003.png"))
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))
}

func TestTruncation(t *testing.T) {
	d, transport, dir := newTestDownloader(t, 2)
	transport.RegisterNoResponder(imageResponder("image/webp", "img"))

	urls := []string{
		"https://img.example/a", "https://img.example/b", "https://img.example/c",
		"https://img.example/d", "https://img.example/e",
	}
	report := d.Download(context.Background(), urls)

	assert.Equal(t, 2, report.Succeeded)
	assert.Len(t, report.Outcomes, 2)
	assert.Equal(t, 2, transport.GetTotalCallCount())
	assert.ElementsMatch(t, []string{"image_001.webp", "image_002.webp"}, listDir(t, dir))
}

func TestNonOKStatusIsSkipped(t *testing.T) {
	d, transport, dir := newTestDownloader(t, 10)
	transport.RegisterResponder("GET", "https://img.example/gone", httpmock.NewStringResponder(http.StatusNotFound, "nope"))
	transport.RegisterResponder("GET", "https://img.example/moved", httpmock.NewStringResponder(http.StatusNoContent, ""))
	transport.RegisterResponder("GET", "https://img.example/ok", imageResponder("", "bytes"))

	report := d.Download(context.Background(), []string{
		"https://img.example/gone",
		"https://img.example/moved",
		"https://img.example/ok",
	})

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, http.StatusNotFound, report.Outcomes[0].StatusCode)
	assert.Equal(t, imgerrors.ErrorTypeStatus, imgerrors.TypeOf(report.Outcomes[0].Err))

	// the index follows the position in the batch, not the success count
	assert.Equal(t, []string{"image_003.jpg"}, listDir(t, dir))
}

func TestUserAgentIsSent(t *testing.T) {
	d, transport, _ := newTestDownloader(t, 1)
	var ua string
	transport.RegisterResponder("GET", "https://img.example/ua", func(req *http.Request) (*http.Response, error) {
		ua = req.Header.Get("User-Agent")
		return httpmock.NewStringResponse(http.StatusOK, "x"), nil
	})

	d.Download(context.Background(), []string{"https://img.example/ua"})
	assert.Equal(t, "test-agent", ua)
}

// recordingStore drains every body and fails the write at index failOn
type recordingStore struct {
	failOn  int
	indexes []int
}

func (s *recordingStore) SaveImage(r io.Reader, index int, ext string) (string, int64, error) {
	s.indexes = append(s.indexes, index)
	n, _ := io.Copy(io.Discard, r)
	if index == s.failOn {
		return "", n, errors.New("disk full")
	}
	return fmt.Sprintf("image_%03d%s", index, ext), n, nil
}

func TestWriteFailureIsIsolated(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(imageResponder("image/png", "img"))
	client := NewHTTPClient(0, "", logger.NewNopLogger())
	client.SetTransport(transport)

	store := &recordingStore{failOn: 1}
	d := New(client, store, Options{TargetCount: 3}, logger.NewNopLogger())

	report := d.Download(context.Background(), []string{"https://a/1", "https://a/2", "https://a/3"})

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, imgerrors.ErrorTypeWrite, imgerrors.TypeOf(report.Outcomes[0].Err))
	assert.Equal(t, []int{1, 2, 3}, store.indexes)
}

func TestBodyReadFailureIsNetworkError(t *testing.T) {
	d, transport, dir := newTestDownloader(t, 2)
	transport.RegisterResponder("GET", "https://img.example/cut", func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"image/png"}},
			Body:       io.NopCloser(io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("connection reset by peer")))),
			Request:    req,
		}, nil
	})
	transport.RegisterResponder("GET", "https://img.example/ok", imageResponder("image/png", "whole"))

	report := d.Download(context.Background(), []string{"https://img.example/cut", "https://img.example/ok"})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, imgerrors.ErrorTypeNetwork, imgerrors.TypeOf(report.Outcomes[0].Err))
	assert.ErrorContains(t, report.Outcomes[0].Err, "connection reset by peer")
	assert.Equal(t, StatusStored, report.Outcomes[1].Status)
	assert.Equal(t, []string{"image_002.png"}, listDir(t, dir), "no partial file is left behind")
}

func TestProgressMilestones(t *testing.T) {
	d, transport, _ := newTestDownloader(t, 120)
	transport.RegisterNoResponder(imageResponder("image/jpeg", "x"))

	var milestones []int
	d.OnProgress(func(stored, total int) {
		assert.Equal(t, 120, total)
		milestones = append(milestones, stored)
	})

	urls := make([]string, 130)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://img.example/%d", i)
	}
	report := d.Download(context.Background(), urls)

	assert.Equal(t, 120, report.Succeeded)
	assert.Equal(t, []int{50, 100}, milestones)
}

func TestEmptyBatch(t *testing.T) {
	d, transport, dir := newTestDownloader(t, 500)
	report := d.Download(context.Background(), nil)

	assert.Empty(t, report.Outcomes)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, transport.GetTotalCallCount())
	assert.Empty(t, listDir(t, dir))
}

func TestTruncate(t *testing.T) {
	urls := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b"}, Truncate(urls, 2))
	assert.Equal(t, urls, Truncate(urls, 10))
	assert.Empty(t, Truncate(urls, 0))
	assert.Empty(t, Truncate(urls, -1))
}
