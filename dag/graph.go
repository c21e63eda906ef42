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
	"fmt"

	"github.com/aaronlmathis/cromgraph"
)

// Package dag implements the graph-storage collaborator consumed by the
// cromgraph core: node insertion with relation-driven edge materialization,
// adjacency and topology queries, and Graphviz export.
//
// Nodes are opaque values addressed by insertion index, since graph nodes
// carry slices and are not comparable map keys. Edges point parent -> child.
// A Graph is not safe for concurrent use; construction is single-threaded.

// GraphError wraps graph-engine failures with context about the operation.
type GraphError struct {
	Op  string // Operation that failed (e.g., "add_node", "topological_order")
	Err error  // Underlying error
}

// Error returns the error string for GraphError.
func (e *GraphError) Error() string {
	return fmt.Sprintf("graph %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for GraphError.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// Graph stores nodes and materializes parent/child edges at insertion time by
// probing the registered relation against every prior node, in both
// directions. It implements cromgraph.Graph.
type Graph struct {
	nodes    []cromgraph.Node
	parents  map[int][]int // node index -> parent indices, insertion order
	children map[int][]int // node index -> child indices, insertion order
	fn       cromgraph.ParentFunc
}

// New creates an empty Graph. Register a parent relation before inserting
// nodes; insertions made without one produce no edges.
func New() *Graph {
	return &Graph{
		parents:  make(map[int][]int),
		children: make(map[int][]int),
	}
}

// RegisterParentFunc installs the parent relation used to derive edges for all
// subsequent insertions.
func (g *Graph) RegisterParentFunc(fn cromgraph.ParentFunc) {
	g.fn = fn
}

// AddNode appends a node and links it against every existing node. Relation
// results of cromgraph.ErrInvalidNodePair mean the relation is undefined for
// that pairing and are skipped; any other relation error aborts the insertion
// with no change to the graph.
func (g *Graph) AddNode(n cromgraph.Node) error {
	idx := len(g.nodes)

	var asParent, asChild []int
	if g.fn != nil {
		for i, existing := range g.nodes {
			ok, err := g.fn(existing, n)
			if err != nil && !errors.Is(err, cromgraph.ErrInvalidNodePair) {
				return &GraphError{Op: "add_node", Err: err}
			}
			if err == nil && ok {
				asChild = append(asChild, i)
			}

			ok, err = g.fn(n, existing)
			if err != nil && !errors.Is(err, cromgraph.ErrInvalidNodePair) {
				return &GraphError{Op: "add_node", Err: err}
			}
			if err == nil && ok {
				asParent = append(asParent, i)
			}
		}
	}

	g.nodes = append(g.nodes, n)
	for _, i := range asChild {
		g.children[i] = append(g.children[i], idx)
		g.parents[idx] = append(g.parents[idx], i)
	}
	for _, i := range asParent {
		g.children[idx] = append(g.children[idx], i)
		g.parents[i] = append(g.parents[i], idx)
	}
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []cromgraph.Node {
	out := make([]cromgraph.Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Node returns the node at index i.
func (g *Graph) Node(i int) (cromgraph.Node, bool) {
	if i < 0 || i >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[i], true
}

// Parents returns the indices of the direct parents of node i.
func (g *Graph) Parents(i int) []int {
	return append([]int(nil), g.parents[i]...)
}

// Children returns the indices of the direct children of node i.
func (g *Graph) Children(i int) []int {
	return append([]int(nil), g.children[i]...)
}

// Edges returns every parent -> child pair, ordered by parent then child index.
func (g *Graph) Edges() [][2]int {
	var edges [][2]int
	for i := range g.nodes {
		for _, c := range g.children[i] {
			edges = append(edges, [2]int{i, c})
		}
	}
	return edges
}

// Roots returns the indices of nodes with no parents.
func (g *Graph) Roots() []int {
	var roots []int
	for i := range g.nodes {
		if len(g.parents[i]) == 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// Leaves returns the indices of nodes with no children.
func (g *Graph) Leaves() []int {
	var leaves []int
	for i := range g.nodes {
		if len(g.children[i]) == 0 {
			leaves = append(leaves, i)
		}
	}
	return leaves
}
