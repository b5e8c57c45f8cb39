package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"imgharvest/pkg/errors"
	"imgharvest/pkg/extractor"
)

// Chrome renders the page in a real Chrome instance through the DevTools protocol
type Chrome struct {
	opts Options

	mu          sync.Mutex
	browserCtx  context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChrome creates a Chrome renderer. No browser is started until Open.
func NewChrome(opts Options) *Chrome {
	return &Chrome{opts: opts}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.UserAgent(c.opts.UserAgent),
		chromedp.WindowSize(c.opts.ViewportWidth, c.opts.ViewportHeight),
	)
	return opts
}

// Open launches the browser, navigates to url and waits for the selector
func (c *Chrome) Open(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil {
		return errors.New(errors.ErrorTypeSession, "session already open", nil)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(c.opts.ViewportWidth), int64(c.opts.ViewportHeight)),
		chromedp.Navigate(url),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return errors.New(errors.ErrorTypeSession, "failed to open results page", err)
	}

	c.browserCtx = browserCtx
	c.cancelTab = cancelTab
	c.cancelAlloc = cancelAlloc

	if c.opts.Selector == "" || c.opts.WaitTimeout <= 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(browserCtx, c.opts.WaitTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(c.opts.Selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: %v", ErrWaitTimeout, err)
	}
	return nil
}

// elementScript reads the raw src and data-src attributes and the
// currentSrc property of every match without touching the page. The src
// property is not used: it resolves against the page URL, turning an empty
// src into the page itself.
func elementScript(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(function (img) {
	return {
		src: img.getAttribute("src") || "",
		dataSrc: img.getAttribute("data-src") || "",
		currentSrc: img.currentSrc || ""
	};
})`, quoted)
}

// Elements evaluates the read-only element query in the page
func (c *Chrome) Elements(ctx context.Context) ([]extractor.Element, error) {
	runCtx, cancel, err := c.runContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var elements []extractor.Element
	if err := chromedp.Run(runCtx, chromedp.Evaluate(elementScript(c.opts.Selector), &elements)); err != nil {
		return nil, errors.New(errors.ErrorTypeRender, "element query failed", err)
	}
	return elements, nil
}

// Scroll scrolls the window by fraction of its inner height
func (c *Chrome) Scroll(ctx context.Context, fraction float64) error {
	runCtx, cancel, err := c.runContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	script := fmt.Sprintf("window.scrollBy(0, window.innerHeight * %g)", fraction)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, nil)); err != nil {
		return errors.New(errors.ErrorTypeRender, "scroll failed", err)
	}
	return nil
}

// runContext derives a chromedp context from the open tab that is also
// cancelled when the caller's ctx is.
func (c *Chrome) runContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	browserCtx := c.browserCtx
	c.mu.Unlock()
	if browserCtx == nil {
		return nil, nil, errors.New(errors.ErrorTypeRender, "session is not open", nil)
	}

	runCtx, cancel := context.WithCancel(browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

// Close shuts the tab and the browser process down
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelTab != nil {
		c.cancelTab()
		c.cancelTab = nil
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
		c.cancelAlloc = nil
	}
	c.browserCtx = nil
	return nil
}
