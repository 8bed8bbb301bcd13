// Package fetch retrieves job listing pages and turns them into raw listing tuples.
package fetch

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodySize caps how much of a page is read.
const maxBodySize = 5 << 20

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Client    *http.Client
}

// DefaultOptions returns browser-like request defaults.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
	}
}

// Page is a fetched search results page.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
}

// GetPage downloads one results page. Anything other than 200 is an *Error carrying the
// status; the partial Page is still returned so callers can log it.
func GetPage(ctx context.Context, pageURL string, opts *Options) (*Page, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if u, err := url.Parse(pageURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{URL: pageURL, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &Error{URL: pageURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", cmp.Or(opts.UserAgent, DefaultUserAgent))
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: pageURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{URL: pageURL, Message: "failed to read body", Cause: err}
	}
	page := &Page{URL: pageURL, HTML: string(body), StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return page, &Error{URL: pageURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}
	return page, nil
}

// cleanWhitespace collapses all runs of whitespace to single spaces.
func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
