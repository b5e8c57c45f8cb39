// Package renderer drives the results page: it opens a session, reports the
// result-card images currently present and scrolls the viewport.
package renderer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"imgharvest/pkg/config"
	"imgharvest/pkg/errors"
	"imgharvest/pkg/extractor"
)

// ErrWaitTimeout is returned by Open when the result selector did not show up
// in time. The page is still usable; callers log it and carry on.
var ErrWaitTimeout = stderrors.New("timed out waiting for result images")

// PageRenderer is a live view of one results page.
type PageRenderer interface {
	// Open navigates to url and waits for the result selector.
	Open(ctx context.Context, url string) error
	// Elements returns the result-card images currently in the document.
	Elements(ctx context.Context) ([]extractor.Element, error)
	// Scroll moves the viewport down by fraction of its height.
	Scroll(ctx context.Context, fraction float64) error
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Options configures a renderer session
type Options struct {
	Selector       string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Headless       bool
	WaitTimeout    time.Duration
}

// OptionsFromConfig builds Options from the search section
func OptionsFromConfig(cfg *config.SearchConfig) Options {
	return Options{
		Selector:       cfg.Selector,
		UserAgent:      cfg.UserAgent,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Headless:       cfg.Headless,
		WaitTimeout:    cfg.WaitTimeout,
	}
}

// New returns the renderer named by cfg.Renderer
func New(cfg *config.SearchConfig) (PageRenderer, error) {
	opts := OptionsFromConfig(cfg)
	switch strings.ToLower(cfg.Renderer) {
	case "", "chrome":
		return NewChrome(opts), nil
	case "static":
		return NewStatic(opts, nil), nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown renderer %q", cfg.Renderer), nil)
	}
}
