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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/cromgraph"
)

// This file implements the Parquet graph writer. Graph nodes are flattened
// onto a fixed Arrow schema so that runs from many workflows can be unioned
// and queried columnar-side.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "open_file", "write_batch", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterStats holds statistics about the Parquet writer's performance.
type ParquetWriterStats struct {
	RowsWritten    int64
	BatchesWritten int64
	FlushDuration  time.Duration
	LastFlushTime  time.Time
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of rows to buffer before writing
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	WorkflowID   string               // Stamped onto every row
	IncludeTasks bool                 // Also emit one row per task node
}

// WriterOptionParquet represents a configuration function for ParquetWriterOptions.
type WriterOptionParquet func(*ParquetWriterOptions)

// WithParquetBatchSize sets the number of rows to buffer before writing a batch.
func WithParquetBatchSize(size int64) WriterOptionParquet {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithParquetCompression sets the Parquet compression algorithm.
func WithParquetCompression(compression compress.Compression) WriterOptionParquet {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithParquetRowGroupSize sets the maximum rows per row group.
func WithParquetRowGroupSize(size int64) WriterOptionParquet {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithParquetWorkflowID sets the workflow identifier stamped onto every row.
func WithParquetWorkflowID(id string) WriterOptionParquet {
	return func(opts *ParquetWriterOptions) {
		opts.WorkflowID = id
	}
}

// WithParquetTasks enables or disables rows for task nodes.
func WithParquetTasks(include bool) WriterOptionParquet {
	return func(opts *ParquetWriterOptions) {
		opts.IncludeTasks = include
	}
}

// graphSchema is the fixed Arrow schema for flattened graph rows.
func graphSchema() *arrow.Schema {
	fields := []arrow.Field{
		{Name: "workflow_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "task_name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "shard_idx", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "output_name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "output_path", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "input_count", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "output_count", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}
	return arrow.NewSchema(fields, nil)
}

// ParquetWriter implements cromgraph.GraphWriter for Parquet files.
type ParquetWriter struct {
	file       *os.File
	writer     *pqarrow.FileWriter
	schema     *arrow.Schema
	builders   []array.Builder
	allocator  memory.Allocator
	opts       *ParquetWriterOptions
	stats      ParquetWriterStats
	buffered   int64
	closed     bool
	errorState bool
}

// NewParquetWriter creates a new Parquet graph writer for a file.
// Accepts functional options for configuration. Returns a ready-to-use writer or an error.
func NewParquetWriter(filename string, options ...WriterOptionParquet) (*ParquetWriter, error) {
	// Start with defaults
	opts := (&ParquetWriterOptions{}).withDefaults()

	// Apply all functional options
	for _, option := range options {
		option(opts)
	}

	// Ensure parent directories exist
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &ParquetWriterError{
				Op:  "create_directory",
				Err: fmt.Errorf("failed to create directory %s: %w", dir, err),
			}
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{
			Op:  "open_file",
			Err: fmt.Errorf("failed to create parquet file %s: %w", filename, err),
		}
	}

	schema := graphSchema()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)

	writer, err := pqarrow.NewFileWriter(schema, file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		file.Close()
		return nil, &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}

	allocator := memory.NewGoAllocator()
	builders := make([]array.Builder, len(schema.Fields()))
	for i, field := range schema.Fields() {
		builders[i] = array.NewBuilder(allocator, field.Type)
	}

	return &ParquetWriter{
		file:      file,
		writer:    writer,
		schema:    schema,
		builders:  builders,
		allocator: allocator,
		opts:      opts,
	}, nil
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}

	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}

	return result
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() ParquetWriterStats {
	return p.stats
}

// WriteGraph implements the cromgraph.GraphWriter interface.
// Rows are buffered and written in batches; Close flushes the remainder.
func (p *ParquetWriter) WriteGraph(ctx context.Context, g cromgraph.Graph) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	select {
	case <-ctx.Done():
		return &ParquetWriterError{Op: "write", Err: ctx.Err()}
	default:
	}

	for _, n := range g.Nodes() {
		row := flattenNode(n)
		if row.Kind == kindTask && !p.opts.IncludeTasks {
			continue
		}

		p.appendRow(row)
		p.buffered++
		p.stats.RowsWritten++

		if p.buffered >= p.opts.BatchSize {
			if err := p.flushBatch(); err != nil {
				p.errorState = true
				return err
			}
		}
	}

	return nil
}

// Flush implements the cromgraph.GraphWriter interface.
// Forces any buffered rows to be written to the Parquet file.
func (p *ParquetWriter) Flush() error {
	if p.buffered > 0 {
		return p.flushBatch()
	}
	return nil
}

// Close implements the cromgraph.GraphWriter interface.
// Flushes and closes all resources.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if p.buffered > 0 {
		if err := p.flushBatch(); err != nil {
			return err
		}
	}

	// Release builders first
	for _, builder := range p.builders {
		if builder != nil {
			builder.Release()
		}
	}
	p.builders = nil

	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			return &ParquetWriterError{
				Op:  "close_writer",
				Err: fmt.Errorf("failed to close parquet writer: %w", err),
			}
		}
		p.writer = nil
	}

	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return &ParquetWriterError{Op: "close_file", Err: err}
		}
		p.file = nil
	}

	return nil
}

// appendRow appends one flattened node to the column builders. Builder order
// matches graphSchema.
func (p *ParquetWriter) appendRow(row nodeRow) {
	p.builders[0].(*array.StringBuilder).Append(p.opts.WorkflowID)
	p.builders[1].(*array.StringBuilder).Append(row.Kind)
	p.builders[2].(*array.StringBuilder).Append(row.TaskName)
	p.builders[3].(*array.StringBuilder).Append(row.ShardIdx)
	p.builders[4].(*array.StringBuilder).Append(row.OutputName)
	p.builders[5].(*array.StringBuilder).Append(row.OutputPath)
	p.builders[6].(*array.Int64Builder).Append(row.InputCount)
	p.builders[7].(*array.Int64Builder).Append(row.OutputCount)
}

// flushBatch writes the buffered rows to the Parquet file.
func (p *ParquetWriter) flushBatch() error {
	if p.buffered == 0 {
		return nil
	}

	startTime := time.Now()

	arrays := make([]arrow.Array, len(p.builders))
	for i, builder := range p.builders {
		arrays[i] = builder.NewArray()
		defer arrays[i].Release()
	}

	record := array.NewRecord(p.schema, arrays, p.buffered)
	defer record.Release()

	if err := p.writer.Write(record); err != nil {
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}

	p.buffered = 0
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(startTime)
	p.stats.LastFlushTime = time.Now()

	return nil
}
