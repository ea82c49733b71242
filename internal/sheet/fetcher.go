package sheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// FetchError reports a non-2xx response from the export URL.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Fetch error: %d", e.Status)
}

// Options allows overriding HTTP behavior.
type Options struct {
	HTTPClient *http.Client
}

// Fetcher downloads and parses a published CSV export.
type Fetcher struct {
	logger     *slog.Logger
	url        string
	httpClient *http.Client
}

// NewFetcher constructs a Fetcher for url.
func NewFetcher(logger *slog.Logger, url string, opts *Options) *Fetcher {
	if opts == nil {
		opts = &Options{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 20 * time.Second,
		}
	}
	return &Fetcher{
		logger:     logger,
		url:        url,
		httpClient: httpClient,
	}
}

// Fetch downloads the export and returns its rows.
func (f *Fetcher) Fetch(ctx context.Context) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}

	rows := Parse(string(body))
	f.logger.Debug("sheet fetched",
		slog.Int("bytes", len(body)),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}
