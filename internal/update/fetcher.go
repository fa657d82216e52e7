package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "updatekit/internal/errors"
)

// Default configuration values.
const (
	DefaultTimeout   = 60 * time.Second
	DefaultUserAgent = "updatekit-feed-fetcher"
	// maxFeedSize caps how much of a feed response is read.
	maxFeedSize = 8 << 20
)

// Error variables for specific fetch conditions. Returned errors wrap one of
// these inside an apperrors.Error.
var (
	ErrNetworkFailure = fmt.Errorf("network request failed")
	ErrNoResponseBody = fmt.Errorf("feed response had no body")
	ErrBadStatus      = fmt.Errorf("unexpected feed response status")
)

// FeedFetcher retrieves a feed document. One attempt, no caching.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches feeds over HTTP.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client for the fetcher.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.httpClient.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// NewHTTPFetcher creates a fetcher with the transport defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a single GET of url and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, apperrors.New(apperrors.CodeConfigurationMissing, "fetch appcast", ErrFeedURLMissing)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "create request", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.New(apperrors.CodeFetchCanceled, "fetch appcast", err)
		}
		return nil, apperrors.New(apperrors.CodeFetchNetwork, "fetch appcast", fmt.Errorf("%w: %v", ErrNetworkFailure, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.CodeFetchBadStatus, "fetch appcast", fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeFetchNetwork, "read appcast", fmt.Errorf("%w: %v", ErrNetworkFailure, err))
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeFetchNoBody, "fetch appcast", ErrNoResponseBody)
	}
	return data, nil
}
