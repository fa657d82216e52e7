package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "updatekit/internal/errors"
)

func TestNewHTTPFetcher(t *testing.T) {
	f := NewHTTPFetcher()
	if f.httpClient == nil {
		t.Fatal("httpClient should not be nil")
	}
	if f.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", f.httpClient.Timeout, DefaultTimeout)
	}
	if f.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %q", f.userAgent)
	}
}

func TestNewHTTPFetcherWithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 10 * time.Second}
	f := NewHTTPFetcher(WithHTTPClient(customClient), WithTimeout(3*time.Second), WithUserAgent("demo/1.0"))

	if f.httpClient != customClient {
		t.Error("custom HTTP client not applied")
	}
	if customClient.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", customClient.Timeout)
	}
	if f.userAgent != "demo/1.0" {
		t.Errorf("userAgent = %q", f.userAgent)
	}
}

func TestFetchReturnsBody(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write(feedXML("1.1", "101"))
	}))
	defer server.Close()

	data, err := NewHTTPFetcher().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(data) != string(feedXML("1.1", "101")) {
		t.Errorf("Fetch() body = %q", data)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestFetchErrors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer empty.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		url      string
		wantErr  error
		wantCode apperrors.Code
	}{
		{name: "bad status", url: notFound.URL, wantErr: ErrBadStatus, wantCode: apperrors.CodeFetchBadStatus},
		{name: "empty body", url: empty.URL, wantErr: ErrNoResponseBody, wantCode: apperrors.CodeFetchNoBody},
		{name: "network failure", url: closedURL, wantErr: ErrNetworkFailure, wantCode: apperrors.CodeFetchNetwork},
		{name: "missing url", url: "", wantErr: ErrFeedURLMissing, wantCode: apperrors.CodeConfigurationMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPFetcher().Fetch(context.Background(), tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if code := apperrors.CodeOf(err); code != tt.wantCode {
				t.Fatalf("CodeOf() = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestFetchCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPFetcher().Fetch(ctx, server.URL)
	if !apperrors.IsCode(err, apperrors.CodeFetchCanceled) {
		t.Fatalf("Fetch() error = %v, want fetch_canceled", err)
	}
}
