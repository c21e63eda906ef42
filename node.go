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

package cromgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is the value type inserted into the graph. It is a sealed two-variant
// union: TaskNode for executed calls and OutputNode for artifacts. Nodes are
// created once during a parse pass and never mutated afterwards.
type Node interface {
	node()
}

// ShardIndex identifies one execution of a call across every scatter and
// sub-workflow nesting level, outermost level first. A value of -1 at a level
// means the call was not scattered there. A task's ShardIndex length equals
// the nesting depth at which the call executed.
type ShardIndex []int

// Equal reports whether two shard indices are identical element-wise.
func (s ShardIndex) Equal(other ShardIndex) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the shard index as comma-joined integers, e.g. "-1" or "1,0".
func (s ShardIndex) String() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// FileRef is one storage-location string found by the scanner, tagged with its
// structural position inside the scanned document.
type FileRef struct {
	FieldPath string // dot-joined mapping keys from the scan root to the value
	Locator   string // the storage-location string itself
	ListIndex []int  // enclosing sequence positions, outermost first; {-1} when not inside any sequence
}

// TaskNode represents one executed leaf call (a task invocation, never a
// sub-workflow call: sub-workflows only contribute name and shard prefixes to
// the tasks beneath them).
type TaskNode struct {
	Name     string     // dot-joined hierarchical call path, e.g. "main.sub.align"
	ShardIdx ShardIndex // composed across every nesting level, outermost first
	Inputs   []FileRef  // locators scanned from the invocation's inputs; nil when none
	Outputs  []FileRef  // locators scanned from the invocation's outputs; nil when none
}

func (TaskNode) node() {}

// String returns a short human-readable form used by graph dumps.
func (t TaskNode) String() string {
	return fmt.Sprintf("task %s [%s]", t.Name, t.ShardIdx)
}

// OutputNode represents one produced artifact. Artifacts without an owning task
// (TaskName empty, ShardIdx nil) are workflow-level inputs and form the graph
// roots.
type OutputNode struct {
	TaskName   string     // producing task's Name; empty for workflow-level inputs
	ShardIdx   ShardIndex // producing task's ShardIdx; nil for workflow-level inputs
	OutputName string     // dot-joined field path within the producing call's outputs, or within the workflow input document
	OutputPath string     // the storage-location string
}

func (OutputNode) node() {}

// String returns a short human-readable form used by graph dumps.
func (o OutputNode) String() string {
	if o.TaskName == "" {
		return fmt.Sprintf("input %s", o.OutputName)
	}
	return fmt.Sprintf("output %s.%s [%s]", o.TaskName, o.OutputName, o.ShardIdx)
}

// IsParent is the parent/child relation registered with the graph collaborator.
//
// A task is the parent of an output iff the output carries exactly the task's
// name and shard index (the task produced it). An output is the parent of a
// task iff the output's path appears among the task's declared input locators
// (the output feeds it). The output-to-task direction matches on locator string
// only, without re-checking shard alignment; distinct shard executions that
// produce identical locators are therefore attributed to both consumers.
//
// Pairing two nodes of the same variant is an invalid call and returns
// ErrInvalidNodePair.
func IsParent(parent, child Node) (bool, error) {
	switch p := parent.(type) {
	case TaskNode:
		c, ok := child.(OutputNode)
		if !ok {
			return false, fmt.Errorf("task/task pairing: %w", ErrInvalidNodePair)
		}
		return p.Name == c.TaskName && p.ShardIdx.Equal(c.ShardIdx), nil
	case OutputNode:
		c, ok := child.(TaskNode)
		if !ok {
			return false, fmt.Errorf("output/output pairing: %w", ErrInvalidNodePair)
		}
		for _, in := range c.Inputs {
			if in.Locator == p.OutputPath {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported node type %T: %w", parent, ErrInvalidNodePair)
	}
}
