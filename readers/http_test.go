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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHTTPSource_Fetch tests a successful metadata fetch
func TestHTTPSource_Fetch(t *testing.T) {
	var gotUserAgent, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(sampleMetadataJSON))
	}))
	defer server.Close()

	source, err := NewHTTPSource(server.URL)
	require.NoError(t, err)
	defer source.Close()

	doc, err := source.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "wf-0001", doc["id"])
	assert.Equal(t, "CromGraph-HTTPSource/1.0", gotUserAgent)
	assert.Equal(t, "application/json", gotAccept)

	stats := source.Stats()
	assert.Equal(t, int64(1), stats.RequestCount)
	assert.Equal(t, int64(0), stats.RetryCount)
	assert.Equal(t, int64(len(sampleMetadataJSON)), stats.BytesRead)
	assert.False(t, stats.LastFetchTime.IsZero())
}

// TestHTTPSource_AuthAndHeaders tests credential and header injection
func TestHTTPSource_AuthAndHeaders(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		gotHeader = r.Header.Get("X-Request-Source")
		w.Write([]byte(sampleMetadataJSON))
	}))
	defer server.Close()

	source, err := NewHTTPSource(server.URL,
		WithHTTPBasicAuth("operator", "hunter2"),
		WithHTTPHeaders(map[string]string{"X-Request-Source": "cromgraph"}),
	)
	require.NoError(t, err)

	_, err = source.Fetch(context.Background())
	require.NoError(t, err)

	assert.True(t, gotOK)
	assert.Equal(t, "operator", gotUser)
	assert.Equal(t, "hunter2", gotPass)
	assert.Equal(t, "cromgraph", gotHeader)
}

// TestHTTPSource_Retries tests backoff on server errors and rate limits
func TestHTTPSource_Retries(t *testing.T) {
	t.Run("server_error_then_success", func(t *testing.T) {
		var calls int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt64(&calls, 1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(sampleMetadataJSON))
		}))
		defer server.Close()

		source, err := NewHTTPSource(server.URL, WithHTTPRetries(3, time.Millisecond))
		require.NoError(t, err)

		doc, err := source.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "wf-0001", doc["id"])

		stats := source.Stats()
		assert.Equal(t, int64(3), stats.RequestCount)
		assert.Equal(t, int64(2), stats.RetryCount)
	})

	t.Run("rate_limited_then_success", func(t *testing.T) {
		var calls int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt64(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(sampleMetadataJSON))
		}))
		defer server.Close()

		source, err := NewHTTPSource(server.URL, WithHTTPRetries(2, time.Millisecond))
		require.NoError(t, err)

		_, err = source.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
	})

	t.Run("retries_exhausted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		source, err := NewHTTPSource(server.URL, WithHTTPRetries(2, time.Millisecond))
		require.NoError(t, err)

		_, err = source.Fetch(context.Background())
		require.Error(t, err)

		var httpErr *HTTPSourceError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
		assert.Equal(t, int64(3), source.Stats().RequestCount)
	})

	t.Run("client_error_not_retried", func(t *testing.T) {
		var calls int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		source, err := NewHTTPSource(server.URL, WithHTTPRetries(3, time.Millisecond))
		require.NoError(t, err)

		_, err = source.Fetch(context.Background())
		require.Error(t, err)

		var httpErr *HTTPSourceError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
		assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	})
}

// TestHTTPSource_DecodeError tests malformed response bodies
func TestHTTPSource_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	source, err := NewHTTPSource(server.URL, WithHTTPRetries(0, time.Millisecond))
	require.NoError(t, err)

	_, err = source.Fetch(context.Background())
	require.Error(t, err)

	var httpErr *HTTPSourceError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "decode", httpErr.Op)
}

// TestHTTPSource_Configure tests constructor validation
func TestHTTPSource_Configure(t *testing.T) {
	t.Run("empty_url", func(t *testing.T) {
		_, err := NewHTTPSource("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "url is required")
	})

	t.Run("unparseable_url", func(t *testing.T) {
		_, err := NewHTTPSource("http://bad host/metadata")
		require.Error(t, err)
	})

	t.Run("custom_client", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sampleMetadataJSON))
		}))
		defer server.Close()

		client := &http.Client{Timeout: 5 * time.Second}
		source, err := NewHTTPSource(server.URL, WithHTTPClient(client))
		require.NoError(t, err)

		_, err = source.Fetch(context.Background())
		require.NoError(t, err)
	})
}

// TestMetadataURL tests workflow-server endpoint construction
func TestMetadataURL(t *testing.T) {
	assert.Equal(t,
		"http://localhost:8000/api/workflows/v1/wf-42/metadata?expandSubWorkflows=true",
		MetadataURL("http://localhost:8000", "wf-42"))

	// Trailing slashes on the server base are trimmed.
	assert.Equal(t,
		"https://cromwell.example.org/api/workflows/v1/wf-42/metadata?expandSubWorkflows=true",
		MetadataURL("https://cromwell.example.org/", "wf-42"))
}

// TestHTTPSource_ContextCancellation tests abort behavior during retry waits
func TestHTTPSource_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source, err := NewHTTPSource(server.URL, WithHTTPRetries(5, time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = source.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
