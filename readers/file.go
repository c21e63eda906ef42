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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aaronlmathis/cromgraph"
)

// Package readers provides implementations of cromgraph.Source for fetching
// execution-metadata documents from the places they live: local files,
// workflow servers, object stores, and metadata archives.
//
// This file implements the local-file and io.Reader sources.

// FileSourceError wraps file-source failures with context about the operation.
type FileSourceError struct {
	Op   string // Operation that failed (e.g., "open", "decode")
	Path string // File path being read
	Err  error  // Underlying error
}

// Error returns the error string for FileSourceError.
func (e *FileSourceError) Error() string {
	return fmt.Sprintf("file source %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for FileSourceError.
func (e *FileSourceError) Unwrap() error {
	return e.Err
}

// FileSourceStats holds statistics about a file-source fetch.
type FileSourceStats struct {
	BytesRead     int64
	FetchDuration time.Duration
	LastFetchTime time.Time
}

// FileSource loads a metadata document from a local JSON file.
type FileSource struct {
	path  string
	stats FileSourceStats
}

// NewFileSource creates a source reading the metadata document at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch implements the cromgraph.Source interface.
func (f *FileSource) Fetch(ctx context.Context) (cromgraph.Document, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, &FileSourceError{Op: "fetch", Path: f.path, Err: ctx.Err()}
	default:
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, &FileSourceError{Op: "open", Path: f.path, Err: err}
	}
	defer file.Close()

	counting := &countingReader{r: bufio.NewReader(file)}
	doc, err := decodeDocument(counting)
	if err != nil {
		return nil, &FileSourceError{Op: "decode", Path: f.path, Err: err}
	}

	f.stats.BytesRead += counting.n
	f.stats.FetchDuration += time.Since(start)
	f.stats.LastFetchTime = time.Now()
	return doc, nil
}

// Close implements the cromgraph.Source interface.
func (f *FileSource) Close() error {
	return nil
}

// Stats returns file-source performance statistics.
func (f *FileSource) Stats() FileSourceStats {
	return f.stats
}

// ReaderSource decodes a metadata document from an arbitrary reader (stdin,
// an in-memory buffer, a decompression stream). The reader is closed by Close
// when it implements io.Closer.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource creates a source decoding from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// Fetch implements the cromgraph.Source interface.
func (rs *ReaderSource) Fetch(ctx context.Context) (cromgraph.Document, error) {
	select {
	case <-ctx.Done():
		return nil, &FileSourceError{Op: "fetch", Path: "<reader>", Err: ctx.Err()}
	default:
	}

	doc, err := decodeDocument(rs.r)
	if err != nil {
		return nil, &FileSourceError{Op: "decode", Path: "<reader>", Err: err}
	}
	return doc, nil
}

// Close implements the cromgraph.Source interface.
func (rs *ReaderSource) Close() error {
	if c, ok := rs.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// decodeDocument decodes exactly one JSON object from r.
func decodeDocument(r io.Reader) (cromgraph.Document, error) {
	var doc cromgraph.Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// countingReader tracks bytes consumed through it for source stats.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
