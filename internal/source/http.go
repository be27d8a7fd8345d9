package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/wesm/borderstat/internal/table"
)

// StatusError is returned for a non-200 HTTP response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.Code, e.Body)
	}
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// HTTPFetcher fetches CSV files relative to a base URL.
type HTTPFetcher struct {
	baseURL    *url.URL
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ table.Fetcher = (*HTTPFetcher)(nil)

// NewHTTP creates a fetcher for an http(s) base URL.
func NewHTTP(cfg Config) (*HTTPFetcher, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base := cfg.Location
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("source URL must include a host")
	}

	f := &HTTPFetcher{
		baseURL:    parsed,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimitQPS > 0 {
		burst := int(cfg.RateLimitQPS)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), burst)
	}
	return f, nil
}

// FetchSummary downloads the summary CSV.
func (f *HTTPFetcher) FetchSummary(ctx context.Context) (io.ReadCloser, error) {
	return f.get(ctx, f.resolve(f.cfg.Summary))
}

// FetchGroup downloads the child CSV for key.
func (f *HTTPFetcher) FetchGroup(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	name := childName(f.cfg.ChildPattern, url.PathEscape(key))
	return f.get(ctx, f.resolve(name))
}

func (f *HTTPFetcher) resolve(name string) string {
	ref, err := url.Parse(name)
	if err != nil {
		return f.baseURL.String() + name
	}
	return f.baseURL.ResolveReference(ref).String()
}

func (f *HTTPFetcher) get(ctx context.Context, reqURL string) (io.ReadCloser, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: reqURL, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return utf8Body(resp.Body)
}
