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
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aaronlmathis/cromgraph"
)

// WriteDOT renders the graph in Graphviz DOT syntax: tasks as boxes labeled
// with the hierarchical call name and shard index, task outputs as ellipses,
// and workflow-level inputs as diamonds. Output is deterministic for a given
// insertion sequence, so rendered graphs diff cleanly across runs.
func (g *Graph) WriteDOT(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph workflow {"); err != nil {
		return &GraphError{Op: "write_dot", Err: err}
	}
	if _, err := fmt.Fprintln(w, "  rankdir=LR;"); err != nil {
		return &GraphError{Op: "write_dot", Err: err}
	}

	for i, n := range g.nodes {
		shape, label := dotAppearance(n)
		if _, err := fmt.Fprintf(w, "  n%d [shape=%s, label=\"%s\"];\n", i, shape, escapeDOT(label)); err != nil {
			return &GraphError{Op: "write_dot", Err: err}
		}
	}
	for _, e := range g.Edges() {
		if _, err := fmt.Fprintf(w, "  n%d -> n%d;\n", e[0], e[1]); err != nil {
			return &GraphError{Op: "write_dot", Err: err}
		}
	}

	if _, err := fmt.Fprintln(w, "}"); err != nil {
		return &GraphError{Op: "write_dot", Err: err}
	}
	return nil
}

func dotAppearance(n cromgraph.Node) (shape, label string) {
	switch v := n.(type) {
	case cromgraph.TaskNode:
		return "box", fmt.Sprintf("%s\n[%s]", v.Name, v.ShardIdx)
	case cromgraph.OutputNode:
		if v.TaskName == "" {
			return "diamond", fmt.Sprintf("%s\n%s", v.OutputName, path.Base(v.OutputPath))
		}
		return "ellipse", fmt.Sprintf("%s\n%s", v.OutputName, path.Base(v.OutputPath))
	default:
		return "plaintext", fmt.Sprintf("%v", n)
	}
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

// String provides a human-readable adjacency dump for debugging.
func (g *Graph) String() string {
	var b strings.Builder
	edges := 0
	for i := range g.nodes {
		edges += len(g.children[i])
	}
	fmt.Fprintf(&b, "graph: %d nodes, %d edges\n", len(g.nodes), edges)

	for i, n := range g.nodes {
		fmt.Fprintf(&b, "  [%d] %v\n", i, n)
		for _, c := range g.children[i] {
			fmt.Fprintf(&b, "      -> [%d] %v\n", c, g.nodes[c])
		}
	}
	return b.String()
}
