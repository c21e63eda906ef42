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

package dag

import (
	"io"
	"strings"
	"testing"

	"github.com/aaronlmathis/cromgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter errors on the nth write call.
type failingWriter struct {
	failAt int
	calls  int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls >= w.failAt {
		return 0, io.ErrUnexpectedEOF
	}
	return len(p), nil
}

// TestGraph_WriteDOT tests Graphviz rendering
func TestGraph_WriteDOT(t *testing.T) {
	g := newChainGraph(t)

	var b strings.Builder
	require.NoError(t, g.WriteDOT(&b))
	out := b.String()

	assert.True(t, strings.HasPrefix(out, "digraph workflow {\n"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "rankdir=LR;")

	// Workflow inputs render as diamonds, tasks as boxes, outputs as ellipses.
	assert.Contains(t, out, `n0 [shape=diamond, label="main.fastq\nr1.fastq.gz"];`)
	assert.Contains(t, out, `n1 [shape=box, label="main.align\n[0]"];`)
	assert.Contains(t, out, `n2 [shape=ellipse, label="bam\nshard-0.bam"];`)

	assert.Contains(t, out, "n0 -> n1;")
	assert.Contains(t, out, "n1 -> n2;")
	assert.Contains(t, out, "n2 -> n3;")
	assert.Contains(t, out, "n3 -> n4;")
}

// TestGraph_WriteDOT_Escaping tests label escaping of quotes and backslashes
func TestGraph_WriteDOT_Escaping(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(cromgraph.TaskNode{Name: `main.say"hi"`}))
	require.NoError(t, g.AddNode(cromgraph.OutputNode{
		TaskName:   "main.t",
		OutputName: "f",
		OutputPath: `C:\data\out.txt`,
	}))

	var b strings.Builder
	require.NoError(t, g.WriteDOT(&b))
	out := b.String()

	assert.Contains(t, out, `main.say\"hi\"`)
	assert.Contains(t, out, `C:\\data\\out.txt`)

	// No label may span lines: every non-brace line closes its statement.
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, "[shape=") {
			assert.True(t, strings.HasSuffix(line, `];`), "unterminated node line: %s", line)
		}
	}
}

// TestGraph_WriteDOT_Deterministic tests byte-stable output across renders
func TestGraph_WriteDOT_Deterministic(t *testing.T) {
	g := newChainGraph(t)

	var first strings.Builder
	require.NoError(t, g.WriteDOT(&first))

	for i := 0; i < 5; i++ {
		var again strings.Builder
		require.NoError(t, g.WriteDOT(&again))
		assert.Equal(t, first.String(), again.String())
	}
}

// TestGraph_WriteDOT_WriterFailure tests error propagation from the destination
func TestGraph_WriteDOT_WriterFailure(t *testing.T) {
	g := newChainGraph(t)

	err := g.WriteDOT(&failingWriter{failAt: 1})
	require.Error(t, err)

	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, "write_dot", graphErr.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// Failures after the preamble surface the same way.
	err = g.WriteDOT(&failingWriter{failAt: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// TestGraph_String tests the adjacency dump
func TestGraph_String(t *testing.T) {
	g := newChainGraph(t)
	out := g.String()

	assert.Contains(t, out, "graph: 5 nodes, 4 edges")
	assert.Contains(t, out, "[1] task main.align [0]")
	assert.Contains(t, out, "-> [2] output main.align.bam [0]")

	assert.Equal(t, "graph: 0 nodes, 0 edges\n", New().String())
}
