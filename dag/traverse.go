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
)

// TopologicalOrder returns node indices in an order where every parent comes
// before its children (Kahn's algorithm). The order is deterministic for a
// given insertion sequence. Returns an error when the graph contains a cycle,
// which a relation over self-feeding artifacts can produce.
func (g *Graph) TopologicalOrder() ([]int, error) {
	inDegree := make([]int, len(g.nodes))
	for i := range g.nodes {
		inDegree[i] = len(g.parents[i])
	}

	queue := make([]int, 0, len(g.nodes))
	for i := range g.nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	result := make([]int, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, child := range g.children[current] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &GraphError{Op: "topological_order", Err: errors.New("graph contains a cycle")}
	}
	return result, nil
}

// HasCycle reports whether any directed cycle exists.
func (g *Graph) HasCycle() bool {
	visited := make([]bool, len(g.nodes))
	recStack := make([]bool, len(g.nodes))

	for i := range g.nodes {
		if !visited[i] {
			if g.dfsHasCycle(i, visited, recStack) {
				return true
			}
		}
	}
	return false
}

func (g *Graph) dfsHasCycle(i int, visited, recStack []bool) bool {
	visited[i] = true
	recStack[i] = true

	for _, child := range g.children[i] {
		if !visited[child] {
			if g.dfsHasCycle(child, visited, recStack) {
				return true
			}
		} else if recStack[child] {
			return true
		}
	}

	recStack[i] = false
	return false
}

// MaxDepth returns the length of the longest root-to-node chain, or 0 for an
// empty graph. Useful when sizing downstream routing passes. The graph must be
// acyclic; check HasCycle first when the relation could self-feed.
func (g *Graph) MaxDepth() int {
	depths := make([]int, len(g.nodes))

	var depthOf func(i int) int
	depthOf = func(i int) int {
		if depths[i] != 0 {
			return depths[i]
		}
		max := 0
		for _, p := range g.parents[i] {
			if d := depthOf(p); d > max {
				max = d
			}
		}
		depths[i] = max + 1
		return depths[i]
	}

	maxOverall := 0
	for i := range g.nodes {
		if d := depthOf(i); d > maxOverall {
			maxOverall = d
		}
	}
	return maxOverall
}
