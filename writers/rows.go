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
	"fmt"

	"github.com/aaronlmathis/cromgraph"
)

// Package writers provides implementations of cromgraph.GraphWriter for
// exporting constructed dependency graphs to files, columnar formats, and
// relational stores.
//
// This file defines the flat tabular projection of graph nodes shared by the
// file-table, Parquet, and PostgreSQL writers.

// Row kinds emitted by flattenNode.
const (
	kindTask   = "task"
	kindOutput = "output"
	kindInput  = "input"
)

// nodeRow is the flat tabular projection of one graph node.
type nodeRow struct {
	Kind        string // "task", "output", or "input"
	TaskName    string // empty for workflow-level inputs
	ShardIdx    string // comma-joined shard chain; empty for workflow-level inputs
	OutputName  string // empty for task rows
	OutputPath  string // empty for task rows
	InputCount  int64  // scanned input locators; task rows only
	OutputCount int64  // scanned output locators; task rows only
}

// flattenNode projects a graph node onto its tabular row. Workflow-level
// inputs (artifacts with no producing task) flatten to kind "input".
func flattenNode(n cromgraph.Node) nodeRow {
	switch v := n.(type) {
	case cromgraph.TaskNode:
		return nodeRow{
			Kind:        kindTask,
			TaskName:    v.Name,
			ShardIdx:    v.ShardIdx.String(),
			InputCount:  int64(len(v.Inputs)),
			OutputCount: int64(len(v.Outputs)),
		}
	case cromgraph.OutputNode:
		kind := kindOutput
		if v.TaskName == "" {
			kind = kindInput
		}
		return nodeRow{
			Kind:       kind,
			TaskName:   v.TaskName,
			ShardIdx:   v.ShardIdx.String(),
			OutputName: v.OutputName,
			OutputPath: v.OutputPath,
		}
	default:
		return nodeRow{Kind: fmt.Sprintf("%T", n)}
	}
}
