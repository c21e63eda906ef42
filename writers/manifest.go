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
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aaronlmathis/cromgraph"
)

// ManifestWriterError wraps manifest write errors with context.
type ManifestWriterError struct {
	Op  string
	Err error
}

func (e *ManifestWriterError) Error() string {
	return fmt.Sprintf("manifest writer %s: %v", e.Op, e.Err)
}

func (e *ManifestWriterError) Unwrap() error {
	return e.Err
}

// ManifestWriterStats holds manifest write performance statistics.
type ManifestWriterStats struct {
	NodesWritten  int64
	EdgesWritten  int64
	WriteDuration time.Duration
	LastWriteTime time.Time
}

// ManifestWriterOptions configures manifest output.
type ManifestWriterOptions struct {
	IncludeEdges bool // emit edge lines after node lines when the graph exposes edges
	IncludeFiles bool // include scanned input/output locators on task lines
}

// WriterOptionManifest is a functional option.
type WriterOptionManifest func(*ManifestWriterOptions)

func WithManifestEdges(include bool) WriterOptionManifest {
	return func(opts *ManifestWriterOptions) {
		opts.IncludeEdges = include
	}
}

func WithManifestFiles(include bool) WriterOptionManifest {
	return func(opts *ManifestWriterOptions) {
		opts.IncludeFiles = include
	}
}

// manifestFile is one scanned locator on a task line.
type manifestFile struct {
	Path    string `json:"path"`
	Locator string `json:"locator"`
	ListIdx []int  `json:"list_idx,omitempty"`
}

// manifestNode is one node line of the manifest.
type manifestNode struct {
	Kind       string         `json:"kind"`
	Index      int            `json:"index"`
	TaskName   string         `json:"task_name,omitempty"`
	ShardIdx   []int          `json:"shard_idx,omitempty"`
	OutputName string         `json:"output_name,omitempty"`
	OutputPath string         `json:"output_path,omitempty"`
	Inputs     []manifestFile `json:"inputs,omitempty"`
	Outputs    []manifestFile `json:"outputs,omitempty"`
}

// manifestEdge is one edge line of the manifest. Parent and Child are node
// line indices.
type manifestEdge struct {
	Kind   string `json:"kind"`
	Parent int    `json:"parent"`
	Child  int    `json:"child"`
}

// edgeLister is the optional graph capability the manifest writer uses to
// emit edge lines.
type edgeLister interface {
	Edges() [][2]int
}

// ManifestWriter implements cromgraph.GraphWriter for line-delimited JSON
// manifests. Each node becomes one JSON line; when the graph implementation
// exposes its edge list, each edge becomes one further line referencing node
// line indices.
type ManifestWriter struct {
	writer  io.Writer
	closer  io.Closer
	options ManifestWriterOptions
	stats   ManifestWriterStats
	mu      sync.Mutex
}

// NewManifestWriter creates a new manifest writer. Edges are included by
// default when the graph exposes them.
func NewManifestWriter(w io.WriteCloser, opts ...WriterOptionManifest) (*ManifestWriter, error) {
	options := ManifestWriterOptions{
		IncludeEdges: true,
		IncludeFiles: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &ManifestWriter{
		writer:  w,
		closer:  w,
		options: options,
	}, nil
}

// WriteGraph implements the cromgraph.GraphWriter interface.
func (m *ManifestWriter) WriteGraph(ctx context.Context, g cromgraph.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-ctx.Done():
		return &ManifestWriterError{Op: "write", Err: ctx.Err()}
	default:
	}

	start := time.Now()
	defer func() {
		m.stats.WriteDuration += time.Since(start)
		m.stats.LastWriteTime = time.Now()
	}()

	for i, n := range g.Nodes() {
		if err := m.writeLine(m.nodeLine(i, n)); err != nil {
			return &ManifestWriterError{Op: "write_node", Err: err}
		}
		m.stats.NodesWritten++
	}

	if !m.options.IncludeEdges {
		return nil
	}
	lister, ok := g.(edgeLister)
	if !ok {
		return nil
	}

	for _, e := range lister.Edges() {
		line := manifestEdge{Kind: "edge", Parent: e[0], Child: e[1]}
		if err := m.writeLine(line); err != nil {
			return &ManifestWriterError{Op: "write_edge", Err: err}
		}
		m.stats.EdgesWritten++
	}

	return nil
}

// Flush implements the cromgraph.GraphWriter interface.
func (m *ManifestWriter) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flusher, ok := m.writer.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return &ManifestWriterError{Op: "flush", Err: err}
		}
	}
	return nil
}

// Close implements the cromgraph.GraphWriter interface.
func (m *ManifestWriter) Close() error {
	if err := m.Flush(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closer != nil {
		if err := m.closer.Close(); err != nil {
			return &ManifestWriterError{Op: "close", Err: err}
		}
		m.closer = nil
	}
	return nil
}

// Stats returns a copy of the current write statistics.
func (m *ManifestWriter) Stats() ManifestWriterStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// nodeLine builds the manifest line for one node.
func (m *ManifestWriter) nodeLine(index int, n cromgraph.Node) manifestNode {
	switch v := n.(type) {
	case cromgraph.TaskNode:
		line := manifestNode{
			Kind:     kindTask,
			Index:    index,
			TaskName: v.Name,
			ShardIdx: v.ShardIdx,
		}
		if m.options.IncludeFiles {
			line.Inputs = manifestFiles(v.Inputs)
			line.Outputs = manifestFiles(v.Outputs)
		}
		return line
	case cromgraph.OutputNode:
		kind := kindOutput
		if v.TaskName == "" {
			kind = kindInput
		}
		return manifestNode{
			Kind:       kind,
			Index:      index,
			TaskName:   v.TaskName,
			ShardIdx:   v.ShardIdx,
			OutputName: v.OutputName,
			OutputPath: v.OutputPath,
		}
	default:
		return manifestNode{Kind: fmt.Sprintf("%T", n), Index: index}
	}
}

// manifestFiles converts scanned file references to manifest form.
func manifestFiles(refs []cromgraph.FileRef) []manifestFile {
	if len(refs) == 0 {
		return nil
	}
	files := make([]manifestFile, len(refs))
	for i, ref := range refs {
		files[i] = manifestFile{
			Path:    ref.FieldPath,
			Locator: ref.Locator,
			ListIdx: ref.ListIndex,
		}
	}
	return files
}

// writeLine marshals v and writes it followed by a newline.
func (m *ManifestWriter) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := m.writer.Write(data); err != nil {
		return err
	}
	if _, err := m.writer.Write([]byte("\n")); err != nil {
		return err
	}
	return nil
}
