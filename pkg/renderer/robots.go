package renderer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// RobotsChecker decides whether a results page may be fetched according to
// the robots.txt of its host.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
}

// NewRobotsChecker creates a checker. A nil client uses http.DefaultClient.
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsChecker{client: client, userAgent: userAgent}
}

// Allowed reports whether pageURL may be fetched. A robots.txt that cannot be
// downloaded allows everything and is returned as the error; 4xx allows
// everything and 5xx disallows everything.
func (r *RobotsChecker) Allowed(ctx context.Context, pageURL string) (bool, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("invalid page URL %q", pageURL)
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true, err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to fetch %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", robotsURL, err)
	}

	return data.TestAgent(u.RequestURI(), r.userAgent), nil
}
