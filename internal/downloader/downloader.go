// Package downloader fetches harvested image URLs one at a time and stores
// every 200 response, isolating each item's failure from the rest.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/metrics"
)

// Status of one download
type Status string

const (
	StatusStored  Status = "stored"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to the candidate at Index (1-based)
type Outcome struct {
	Index      int           `json:"index" yaml:"index"`
	URL        string        `json:"url" yaml:"url"`
	Status     Status        `json:"status" yaml:"status"`
	Path       string        `json:"path,omitempty" yaml:"path,omitempty"`
	Ext        string        `json:"ext,omitempty" yaml:"ext,omitempty"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Bytes      int64         `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Err        error         `json:"-" yaml:"-"`
}

// Report is the ordered list of outcomes plus their tallies
type Report struct {
	Outcomes  []Outcome
	Succeeded int
	Skipped   int
	Failed    int
}

// ImageStore persists one image body
type ImageStore interface {
	SaveImage(r io.Reader, index int, ext string) (string, int64, error)
}

// Options controls truncation and progress reporting
type Options struct {
	TargetCount      int
	ProgressInterval int
}

// Downloader runs the sequential download stage
type Downloader struct {
	client   FetchClient
	store    ImageStore
	opts     Options
	logger   logger.Logger
	metrics  *metrics.Metrics
	progress func(stored, total int)
	outcome  func(Outcome)
}

// New creates a Downloader. A nil log uses the global logger.
func New(client FetchClient, store ImageStore, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{client: client, store: store, opts: opts, logger: log}
}

// SetMetrics attaches Prometheus collectors
func (d *Downloader) SetMetrics(m *metrics.Metrics) { d.metrics = m }

// OnProgress registers fn to be called each time the stored count reaches
// a multiple of the progress interval
func (d *Downloader) OnProgress(fn func(stored, total int)) { d.progress = fn }

// OnOutcome registers fn to be called after every item
func (d *Downloader) OnOutcome(fn func(Outcome)) { d.outcome = fn }

// Truncate returns the first n urls
func Truncate(urls []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(urls) > n {
		return urls[:n]
	}
	return urls
}

// Download fetches the first TargetCount urls in order. It never returns
// early: every item ends up in the report as stored, skipped or failed.
func (d *Downloader) Download(ctx context.Context, urls []string) Report {
	batch := Truncate(urls, d.opts.TargetCount)
	report := Report{Outcomes: make([]Outcome, 0, len(batch))}

	log := d.logger.WithField("component", "downloader")
	logger.LogComponentStart(log, "downloader", map[string]interface{}{
		"candidates": len(urls),
		"batch":      len(batch),
	})

	for i, url := range batch {
		out := d.fetchOne(ctx, i+1, url)
		report.Outcomes = append(report.Outcomes, out)

		switch out.Status {
		case StatusStored:
			report.Succeeded++
			if d.progress != nil && d.opts.ProgressInterval > 0 && report.Succeeded%d.opts.ProgressInterval == 0 {
				d.progress(report.Succeeded, len(batch))
			}
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}

		if d.outcome != nil {
			d.outcome(out)
		}
		d.metrics.ObserveDownload(string(out.Status), out.Bytes, out.Duration)
		logger.LogDownload(log, out.Index, out.URL, string(out.Status), failure(out))
	}

	logger.LogComponentStop(log, "downloader", fmt.Sprintf("%d/%d stored", report.Succeeded, len(batch)))
	return report
}

// failure returns the error worth logging at warning level; skips are expected
func failure(out Outcome) error {
	if out.Status == StatusFailed {
		return out.Err
	}
	return nil
}

func (d *Downloader) fetchOne(ctx context.Context, index int, url string) (out Outcome) {
	out = Outcome{Index: index, URL: url}
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	resp, err := d.client.Fetch(ctx, url)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		out.Status = StatusSkipped
		out.Err = &errors.Error{
			Type:    errors.ErrorTypeStatus,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
		return out
	}

	out.Ext = ExtensionFor(resp.ContentType)
	body := &bodyReader{r: resp.Body}
	path, n, err := d.store.SaveImage(body, index, out.Ext)
	out.Bytes = n
	if err != nil {
		out.Status = StatusFailed
		if body.err != nil {
			out.Err = errors.New(errors.ErrorTypeNetwork, "failed to read image body", body.err)
		} else {
			out.Err = errors.New(errors.ErrorTypeWrite, "failed to store image", err)
		}
		return out
	}

	out.Status = StatusStored
	out.Path = path
	return out
}

// bodyReader keeps the first read error so a failed save can be told apart
// from a failed write
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}
