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

package writers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aaronlmathis/cromgraph"
)

// FileTableWriterError wraps file-table write errors with context.
type FileTableWriterError struct {
	Op  string
	Err error
}

func (e *FileTableWriterError) Error() string {
	return fmt.Sprintf("file table writer %s: %v", e.Op, e.Err)
}

func (e *FileTableWriterError) Unwrap() error {
	return e.Err
}

// FileTableWriterStats holds file-table write performance statistics.
type FileTableWriterStats struct {
	RowsWritten   int64
	TasksSkipped  int64
	FlushCount    int64
	WriteDuration time.Duration
	LastWriteTime time.Time
}

// fileTableHeader is the fixed column set of the artifact table.
var fileTableHeader = []string{"kind", "task_name", "shard_idx", "output_name", "output_path"}

// FileTableWriterOptions configures file-table output.
type FileTableWriterOptions struct {
	Comma        rune // column delimiter, tab by default
	UseCRLF      bool
	WriteHeader  bool
	IncludeTasks bool // also emit one row per task node
}

// WriterOptionFileTable is a functional option.
type WriterOptionFileTable func(*FileTableWriterOptions)

func WithFileTableComma(delim rune) WriterOptionFileTable {
	return func(opts *FileTableWriterOptions) {
		opts.Comma = delim
	}
}

func WithFileTableHeader(write bool) WriterOptionFileTable {
	return func(opts *FileTableWriterOptions) {
		opts.WriteHeader = write
	}
}

func WithFileTableTasks(include bool) WriterOptionFileTable {
	return func(opts *FileTableWriterOptions) {
		opts.IncludeTasks = include
	}
}

func WithFileTableCRLF(useCRLF bool) WriterOptionFileTable {
	return func(opts *FileTableWriterOptions) {
		opts.UseCRLF = useCRLF
	}
}

// FileTableWriter implements cromgraph.GraphWriter for delimited artifact
// tables. Each artifact node becomes one row; task nodes are skipped unless
// requested. The default output is tab-separated with a header row.
type FileTableWriter struct {
	writer      *csv.Writer
	closer      io.Closer
	options     FileTableWriterOptions
	stats       FileTableWriterStats
	wroteHeader bool
	errorState  bool
	mu          sync.Mutex
}

// NewFileTableWriter creates a new file-table writer.
func NewFileTableWriter(w io.WriteCloser, opts ...WriterOptionFileTable) (*FileTableWriter, error) {
	options := FileTableWriterOptions{
		Comma:       '\t',
		UseCRLF:     false,
		WriteHeader: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	cw := csv.NewWriter(w)
	cw.Comma = options.Comma
	cw.UseCRLF = options.UseCRLF

	return &FileTableWriter{
		writer:  cw,
		closer:  w,
		options: options,
	}, nil
}

// WriteGraph implements the cromgraph.GraphWriter interface.
func (c *FileTableWriter) WriteGraph(ctx context.Context, g cromgraph.Graph) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorState {
		return &FileTableWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	select {
	case <-ctx.Done():
		return &FileTableWriterError{Op: "write", Err: ctx.Err()}
	default:
	}

	start := time.Now()
	defer func() {
		c.stats.WriteDuration += time.Since(start)
		c.stats.LastWriteTime = time.Now()
	}()

	if !c.wroteHeader && c.options.WriteHeader {
		if err := c.writer.Write(fileTableHeader); err != nil {
			c.errorState = true
			return &FileTableWriterError{Op: "write_header", Err: err}
		}
		c.wroteHeader = true
	}

	for _, n := range g.Nodes() {
		row := flattenNode(n)
		if row.Kind == kindTask && !c.options.IncludeTasks {
			c.stats.TasksSkipped++
			continue
		}

		fields := []string{row.Kind, row.TaskName, row.ShardIdx, row.OutputName, row.OutputPath}
		if err := c.writer.Write(fields); err != nil {
			c.errorState = true
			return &FileTableWriterError{Op: "write_row", Err: err}
		}
		c.stats.RowsWritten++
	}

	return nil
}

// Flush implements the cromgraph.GraphWriter interface.
func (c *FileTableWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.errorState = true
		return &FileTableWriterError{Op: "flush", Err: err}
	}
	c.stats.FlushCount++
	return nil
}

// Close implements the cromgraph.GraphWriter interface.
func (c *FileTableWriter) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return &FileTableWriterError{Op: "close", Err: err}
		}
		c.closer = nil
	}
	return nil
}

// Stats returns a copy of the current write statistics.
func (c *FileTableWriter) Stats() FileTableWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
