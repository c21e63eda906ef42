//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of CromGraph.
//
// CromGraph is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// CromGraph is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with CromGraph. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aaronlmathis/cromgraph"
)

// This file implements the HTTP metadata source: it fetches a metadata
// document from a workflow server or any URL serving metadata JSON, with
// basic-auth support for private endpoints, retries with exponential backoff,
// and an injectable client.

// HTTPSourceError provides structured error information for HTTP source operations.
type HTTPSourceError struct {
	Op         string // Operation that failed (e.g., "request", "decode")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when the error occurred
	Err        error  // Underlying error
}

// Error returns the error string for HTTPSourceError.
func (e *HTTPSourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http source %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http source %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error for HTTPSourceError.
func (e *HTTPSourceError) Unwrap() error {
	return e.Err
}

// HTTPSourceStats holds statistics about the HTTP source's performance.
type HTTPSourceStats struct {
	RequestCount  int64         // Total HTTP requests made
	RetryCount    int64         // Number of retries performed
	BytesRead     int64         // Total response bytes consumed
	FetchDuration time.Duration // Total time spent fetching
	LastFetchTime time.Time     // Time of the last fetch
}

// HTTPSourceOptions configures the HTTP source.
type HTTPSourceOptions struct {
	Headers       map[string]string // Additional request headers
	Username      string            // Basic-auth username for private URLs
	Password      string            // Basic-auth password for private URLs
	Timeout       time.Duration     // Request timeout
	RetryAttempts int               // Number of retry attempts after the first request
	RetryDelay    time.Duration     // Base delay between retries (doubled per attempt)
	UserAgent     string            // User agent string
	CustomClient  *http.Client      // Custom HTTP client (overrides Timeout)
}

// SourceOptionHTTP is a functional option for HTTPSourceOptions.
type SourceOptionHTTP func(*HTTPSourceOptions)

// WithHTTPHeaders merges additional request headers.
func WithHTTPHeaders(headers map[string]string) SourceOptionHTTP {
	return func(opts *HTTPSourceOptions) {
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

// WithHTTPBasicAuth sets basic-auth credentials for private metadata URLs.
func WithHTTPBasicAuth(username, password string) SourceOptionHTTP {
	return func(opts *HTTPSourceOptions) {
		opts.Username = username
		opts.Password = password
	}
}

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(timeout time.Duration) SourceOptionHTTP {
	return func(opts *HTTPSourceOptions) {
		opts.Timeout = timeout
	}
}

// WithHTTPRetries sets the retry attempt count and base delay.
func WithHTTPRetries(attempts int, delay time.Duration) SourceOptionHTTP {
	return func(opts *HTTPSourceOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client *http.Client) SourceOptionHTTP {
	return func(opts *HTTPSourceOptions) {
		opts.CustomClient = client
	}
}

// HTTPSource fetches a metadata document over HTTP(S).
type HTTPSource struct {
	url    string
	client *http.Client
	opts   *HTTPSourceOptions
	stats  HTTPSourceStats
}

// NewHTTPSource creates an HTTP source for the given metadata URL.
func NewHTTPSource(rawURL string, options ...SourceOptionHTTP) (*HTTPSource, error) {
	if rawURL == "" {
		return nil, &HTTPSourceError{Op: "configure", Err: fmt.Errorf("url is required")}
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, &HTTPSourceError{Op: "configure", URL: rawURL, Err: err}
	}

	opts := &HTTPSourceOptions{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		UserAgent:     "CromGraph-HTTPSource/1.0",
	}
	for _, option := range options {
		option(opts)
	}

	client := opts.CustomClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPSource{
		url:    rawURL,
		client: client,
		opts:   opts,
	}, nil
}

// MetadataURL builds the workflow server's metadata endpoint for a run, with
// sub-workflow records expanded inline so the whole call tree parses in one
// document.
func MetadataURL(server, workflowID string) string {
	return fmt.Sprintf("%s/api/workflows/v1/%s/metadata?expandSubWorkflows=true",
		strings.TrimRight(server, "/"), workflowID)
}

// Fetch implements the cromgraph.Source interface. Server errors and rate
// limits are retried with exponential backoff; other client errors fail
// immediately.
func (h *HTTPSource) Fetch(ctx context.Context) (cromgraph.Document, error) {
	start := time.Now()
	defer func() {
		h.stats.FetchDuration += time.Since(start)
		h.stats.LastFetchTime = time.Now()
	}()

	var lastErr error
	for attempt := 0; attempt <= h.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := h.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &HTTPSourceError{Op: "request", URL: h.url, Err: ctx.Err()}
			}
			h.stats.RetryCount++
		}

		doc, err := h.fetchOnce(ctx)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if httpErr, ok := err.(*HTTPSourceError); ok {
			if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
				continue
			}
		}
		break
	}

	return nil, lastErr
}

func (h *HTTPSource) fetchOnce(ctx context.Context) (cromgraph.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, &HTTPSourceError{Op: "create_request", URL: h.url, Err: err}
	}

	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range h.opts.Headers {
		req.Header.Set(k, v)
	}
	if h.opts.Username != "" || h.opts.Password != "" {
		req.SetBasicAuth(h.opts.Username, h.opts.Password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &HTTPSourceError{Op: "request", URL: h.url, Err: err}
	}
	defer resp.Body.Close()
	h.stats.RequestCount++

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPSourceError{
			Op:         "request",
			StatusCode: resp.StatusCode,
			URL:        h.url,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	counting := &countingReader{r: resp.Body}
	doc, err := decodeDocument(counting)
	if err != nil {
		return nil, &HTTPSourceError{Op: "decode", URL: h.url, Err: err}
	}
	h.stats.BytesRead += counting.n
	return doc, nil
}

// Close implements the cromgraph.Source interface.
func (h *HTTPSource) Close() error {
	return nil
}

// Stats returns HTTP source performance statistics.
func (h *HTTPSource) Stats() HTTPSourceStats {
	return h.stats
}
