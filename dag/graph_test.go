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
	"errors"
	"testing"

	"github.com/aaronlmathis/cromgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChainGraph builds input -> align -> bam -> merge -> merged as a single
// dependency chain using the production parent relation.
func newChainGraph(t *testing.T) *Graph {
	t.Helper()

	g := New()
	g.RegisterParentFunc(cromgraph.IsParent)

	nodes := []cromgraph.Node{
		cromgraph.OutputNode{
			OutputName: "main.fastq",
			OutputPath: "gs://bucket/r1.fastq.gz",
		},
		cromgraph.TaskNode{
			Name:     "main.align",
			ShardIdx: cromgraph.ShardIndex{0},
			Inputs:   []cromgraph.FileRef{{FieldPath: "fastq", Locator: "gs://bucket/r1.fastq.gz"}},
			Outputs:  []cromgraph.FileRef{{FieldPath: "bam", Locator: "gs://bucket/shard-0.bam"}},
		},
		cromgraph.OutputNode{
			TaskName:   "main.align",
			ShardIdx:   cromgraph.ShardIndex{0},
			OutputName: "bam",
			OutputPath: "gs://bucket/shard-0.bam",
		},
		cromgraph.TaskNode{
			Name:     "main.merge",
			ShardIdx: cromgraph.ShardIndex{-1},
			Inputs:   []cromgraph.FileRef{{FieldPath: "bams", Locator: "gs://bucket/shard-0.bam"}},
			Outputs:  []cromgraph.FileRef{{FieldPath: "merged", Locator: "gs://bucket/merged.bam"}},
		},
		cromgraph.OutputNode{
			TaskName:   "main.merge",
			ShardIdx:   cromgraph.ShardIndex{-1},
			OutputName: "merged",
			OutputPath: "gs://bucket/merged.bam",
		},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	return g
}

// TestGraph_EdgeMaterialization tests relation-driven linking at insertion time
func TestGraph_EdgeMaterialization(t *testing.T) {
	g := newChainGraph(t)

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}}, g.Edges())

	assert.Equal(t, []int{0}, g.Roots())
	assert.Equal(t, []int{4}, g.Leaves())

	assert.Empty(t, g.Parents(0))
	assert.Equal(t, []int{0}, g.Parents(1))
	assert.Equal(t, []int{2}, g.Children(1))
	assert.Empty(t, g.Children(4))
}

// TestGraph_NodeAccess tests index-based node retrieval
func TestGraph_NodeAccess(t *testing.T) {
	g := newChainGraph(t)

	n, ok := g.Node(1)
	require.True(t, ok)
	task, isTask := n.(cromgraph.TaskNode)
	require.True(t, isTask)
	assert.Equal(t, "main.align", task.Name)

	_, ok = g.Node(-1)
	assert.False(t, ok)
	_, ok = g.Node(5)
	assert.False(t, ok)

	nodes := g.Nodes()
	require.Len(t, nodes, 5)
	assert.Equal(t, n, nodes[1])
}

// TestGraph_QueryIsolation tests that returned slices do not alias internal state
func TestGraph_QueryIsolation(t *testing.T) {
	g := newChainGraph(t)

	parents := g.Parents(1)
	require.Len(t, parents, 1)
	parents[0] = 99
	assert.Equal(t, []int{0}, g.Parents(1))

	children := g.Children(1)
	require.Len(t, children, 1)
	children[0] = 99
	assert.Equal(t, []int{2}, g.Children(1))

	nodes := g.Nodes()
	nodes[0] = cromgraph.TaskNode{Name: "clobbered"}
	fresh, ok := g.Node(0)
	require.True(t, ok)
	assert.IsType(t, cromgraph.OutputNode{}, fresh)
}

// TestGraph_UndefinedPairingsSkipped tests that same-variant probes produce no edges
func TestGraph_UndefinedPairingsSkipped(t *testing.T) {
	g := New()
	g.RegisterParentFunc(cromgraph.IsParent)

	require.NoError(t, g.AddNode(cromgraph.TaskNode{Name: "main.a"}))
	require.NoError(t, g.AddNode(cromgraph.TaskNode{Name: "main.b"}))

	assert.Equal(t, 2, g.Len())
	assert.Empty(t, g.Edges())
	assert.Equal(t, []int{0, 1}, g.Roots())
}

// TestGraph_RelationErrors tests that real relation failures abort the insertion
func TestGraph_RelationErrors(t *testing.T) {
	relationErr := errors.New("relation backend unavailable")

	g := New()
	g.RegisterParentFunc(func(parent, child cromgraph.Node) (bool, error) {
		return false, relationErr
	})

	require.NoError(t, g.AddNode(cromgraph.TaskNode{Name: "main.a"}))

	err := g.AddNode(cromgraph.TaskNode{Name: "main.b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, relationErr)

	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, "add_node", graphErr.Op)

	// Failed insertion leaves the graph untouched.
	assert.Equal(t, 1, g.Len())
}

// TestGraph_NoRelationRegistered tests insertion without a parent relation
func TestGraph_NoRelationRegistered(t *testing.T) {
	g := New()

	require.NoError(t, g.AddNode(cromgraph.TaskNode{Name: "main.a"}))
	require.NoError(t, g.AddNode(cromgraph.OutputNode{TaskName: "main.a", OutputName: "out"}))

	assert.Equal(t, 2, g.Len())
	assert.Empty(t, g.Edges())
}

// TestGraph_FanOutFanIn tests a scatter/gather adjacency shape
func TestGraph_FanOutFanIn(t *testing.T) {
	g := New()
	g.RegisterParentFunc(cromgraph.IsParent)

	// Two scatter shards produce bams, one gather consumes both.
	require.NoError(t, g.AddNode(cromgraph.TaskNode{
		Name: "main.align", ShardIdx: cromgraph.ShardIndex{0},
		Outputs: []cromgraph.FileRef{{FieldPath: "bam", Locator: "gs://b/0.bam"}},
	}))
	require.NoError(t, g.AddNode(cromgraph.OutputNode{
		TaskName: "main.align", ShardIdx: cromgraph.ShardIndex{0},
		OutputName: "bam", OutputPath: "gs://b/0.bam",
	}))
	require.NoError(t, g.AddNode(cromgraph.TaskNode{
		Name: "main.align", ShardIdx: cromgraph.ShardIndex{1},
		Outputs: []cromgraph.FileRef{{FieldPath: "bam", Locator: "gs://b/1.bam"}},
	}))
	require.NoError(t, g.AddNode(cromgraph.OutputNode{
		TaskName: "main.align", ShardIdx: cromgraph.ShardIndex{1},
		OutputName: "bam", OutputPath: "gs://b/1.bam",
	}))
	require.NoError(t, g.AddNode(cromgraph.TaskNode{
		Name: "main.merge", ShardIdx: cromgraph.ShardIndex{-1},
		Inputs: []cromgraph.FileRef{
			{FieldPath: "bams", Locator: "gs://b/0.bam", ListIndex: []int{0}},
			{FieldPath: "bams", Locator: "gs://b/1.bam", ListIndex: []int{1}},
		},
	}))

	assert.ElementsMatch(t, [][2]int{{0, 1}, {2, 3}, {1, 4}, {3, 4}}, g.Edges())
	assert.Equal(t, []int{1, 3}, g.Parents(4))
	assert.ElementsMatch(t, []int{0, 2}, g.Roots())
	assert.Equal(t, []int{4}, g.Leaves())
}
