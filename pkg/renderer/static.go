package renderer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"imgharvest/pkg/errors"
	"imgharvest/pkg/extractor"
)

// Static fetches the page once and answers queries from the parsed document.
// It cannot execute scripts, so scrolling never reveals anything new and a
// harvest against it ends by stability.
type Static struct {
	opts      Options
	transport http.RoundTripper

	mu  sync.Mutex
	doc *goquery.Document
}

// NewStatic creates a static renderer. A nil transport uses colly's default.
func NewStatic(opts Options, transport http.RoundTripper) *Static {
	return &Static{opts: opts, transport: transport}
}

func (s *Static) collector() *colly.Collector {
	c := colly.NewCollector(colly.AllowURLRevisit())
	if s.opts.UserAgent != "" {
		c.UserAgent = s.opts.UserAgent
	}
	// non-2xx responses reach OnResponse so Open can report the status code
	c.ParseHTTPErrorResponse = true
	if s.opts.WaitTimeout > 0 {
		c.SetRequestTimeout(s.opts.WaitTimeout)
	}
	if s.transport != nil {
		c.WithTransport(s.transport)
	}
	return c
}

// Open downloads and parses url
func (s *Static) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var resp *colly.Response
	c := s.collector()
	c.OnResponse(func(r *colly.Response) {
		resp = r
	})
	if err := c.Visit(url); err != nil {
		return errors.New(errors.ErrorTypeSession, "failed to fetch results page", err)
	}
	if resp == nil {
		return errors.New(errors.ErrorTypeSession, "results page returned no response", nil)
	}

	if resp.StatusCode != http.StatusOK {
		return &errors.Error{
			Type:    errors.ErrorTypeSession,
			Message: fmt.Sprintf("results page returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return errors.New(errors.ErrorTypeSession, "failed to parse results page", err)
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	if s.opts.Selector != "" && doc.Find(s.opts.Selector).Length() == 0 {
		return ErrWaitTimeout
	}
	return nil
}

// Elements returns the matches of the selector in the fetched document
func (s *Static) Elements(ctx context.Context) ([]extractor.Element, error) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return nil, errors.New(errors.ErrorTypeRender, "page is not open", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return extractor.ElementsFromDocument(doc, s.opts.Selector), nil
}

// Scroll is a no-op
func (s *Static) Scroll(ctx context.Context, fraction float64) error {
	return ctx.Err()
}

func (s *Static) Close() error {
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()
	return nil
}
