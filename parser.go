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
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Package-level parsing rules for Cromwell's call map. Keys come in two shapes:
//
//	workflowName.alias    a task or sub-workflow call, aliased when imported
//	                      or called with an `as` statement
//	ScatterAt*_*          Cromwell's synthetic sub-workflow implementing a
//	                      nested scatter; it has no alias of its own
//
// Every other shape marks an unsupported document.
const scatterCallPrefix = "ScatterAt"

// ParserStats holds counters and timings collected over one parse pass.
type ParserStats struct {
	Tasks          int64         // leaf task invocations emitted
	Outputs        int64         // task output nodes emitted
	WorkflowInputs int64         // workflow-level input nodes emitted
	SubWorkflows   int64         // sub-workflow invocations descended into
	MaxDepth       int           // deepest nesting level reached (1 = root calls)
	ParseDuration  time.Duration // wall time of the full parse
}

// Parser reconstructs the task/artifact graph from one execution-metadata
// document. Build one with NewParser; a Parser is single-use per configured
// graph, since the graph collaborator accumulates every inserted node.
//
// Parsing is synchronous single-threaded recursion over an in-memory document:
// the context passed to Parse applies only to the optional source fetch.
type Parser struct {
	source    Source
	doc       Document
	validator LocatorValidator
	graph     Graph
	srcParser SourceParser

	stats ParserStats
}

// Parse materializes the document (fetching it from the configured source if
// one was given), validates its required fields, registers the parent relation
// with the graph, walks the call tree emitting task and output nodes, and
// finally seeds workflow-level input nodes from the submitted-inputs block when
// present.
func (p *Parser) Parse(ctx context.Context) (*Workflow, error) {
	start := time.Now()
	p.stats = ParserStats{}

	doc := p.doc
	if p.source != nil {
		fetched, err := p.source.Fetch(ctx)
		if err != nil {
			return nil, &MetadataError{Op: "fetch", Err: err}
		}
		doc = fetched
	}

	id, err := requireString(doc, "id")
	if err != nil {
		return nil, err
	}
	name, err := requireString(doc, "workflowName")
	if err != nil {
		return nil, err
	}
	callsVal, ok := doc["calls"]
	if !ok {
		return nil, &MetadataError{Op: "validate", Err: fmt.Errorf("%w: calls", ErrMissingField)}
	}
	calls, ok := callsVal.(map[string]interface{})
	if !ok {
		return nil, &MetadataError{Op: "validate", Err: fmt.Errorf("calls is %T, want a mapping", callsVal)}
	}

	// The submitted-files block is present for a top-level run and absent when
	// parsing a detached sub-workflow record; both are valid documents.
	var (
		inputDoc  map[string]interface{}
		outDef    string
		hasOutDef bool
	)
	if sfVal, ok := doc["submittedFiles"]; ok {
		sf, ok := sfVal.(map[string]interface{})
		if !ok {
			return nil, &MetadataError{Op: "validate", Err: fmt.Errorf("submittedFiles is %T, want a mapping", sfVal)}
		}
		inputsStr, err := requireString(sf, "inputs")
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputsStr), &inputDoc); err != nil {
			return nil, &MetadataError{Op: "decode_inputs", Err: err}
		}
		wdlSrc, err := requireString(sf, "workflow")
		if err != nil {
			return nil, err
		}
		outDef, hasOutDef = findOutputDefinition(p.srcParser, wdlSrc)
	}

	p.graph.RegisterParentFunc(IsParent)

	if err := p.parseCalls(calls, []string{name}, nil); err != nil {
		return nil, err
	}
	if err := p.parseInputDocument(inputDoc); err != nil {
		return nil, err
	}

	p.stats.ParseDuration = time.Since(start)
	return &Workflow{
		id:        id,
		name:      name,
		graph:     p.graph,
		outDef:    outDef,
		hasOutDef: hasOutDef,
		stats:     p.stats,
	}, nil
}

// parseCalls descends one level of the call map. ancestors is the chain of
// enclosing workflow names/aliases, outermost first, with "" marking a
// synthetic nested-scatter level; shards is the parallel chain of enclosing
// shard indices. The two chains differ in length when anonymous scatters are
// present, since those contribute a shard but no name.
func (p *Parser) parseCalls(calls map[string]interface{}, ancestors []string, shards ShardIndex) error {
	if len(ancestors) == 0 {
		return &ParserError{Op: "parse_calls", Err: ErrEmptyAncestry}
	}
	if depth := len(shards) + 1; depth > p.stats.MaxDepth {
		p.stats.MaxDepth = depth
	}

	names := make([]string, 0, len(calls))
	for k := range calls {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, callName := range names {
		alias, err := splitCallName(callName)
		if err != nil {
			return err
		}

		invocations, ok := calls[callName].([]interface{})
		if !ok {
			return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q: invocation list is %T, want a sequence", callName, calls[callName])}
		}

		for i, entry := range invocations {
			call, ok := entry.(map[string]interface{})
			if !ok {
				return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q invocation %d is %T, want a mapping", callName, i, entry)}
			}

			shardVal, ok := call["shardIndex"]
			if !ok {
				return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q invocation %d: %w: shardIndex", callName, i, ErrMissingField)}
			}
			shard, err := intValue(shardVal)
			if err != nil {
				return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q invocation %d: shardIndex: %v", callName, i, err)}
			}

			// A sub-workflow invocation carries a nested execution record. It
			// emits no node of its own; its alias and shard index prefix
			// everything found beneath it.
			if swVal, ok := call["subWorkflowMetadata"]; ok {
				sw, ok := swVal.(map[string]interface{})
				if !ok {
					return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q invocation %d: subWorkflowMetadata is %T, want a mapping", callName, i, swVal)}
				}
				subCallsVal, ok := sw["calls"]
				if !ok {
					return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q invocation %d: sub-workflow record: %w: calls", callName, i, ErrMissingField)}
				}
				subCalls, ok := subCallsVal.(map[string]interface{})
				if !ok {
					return &ParserError{Op: "parse_calls", Err: fmt.Errorf("call %q invocation %d: sub-workflow calls is %T, want a mapping", callName, i, subCallsVal)}
				}

				p.stats.SubWorkflows++
				if err := p.parseCalls(subCalls, extendPath(ancestors, alias), extendIndex(shards, shard)); err != nil {
					return err
				}
				continue
			}

			fullName := joinCallPath(ancestors, alias)
			taskShard := ShardIndex(extendIndex(shards, shard))

			var inputs, outputs []FileRef
			if v, ok := call["inputs"]; ok {
				inputs = FindFiles(v, p.validator)
			}
			if v, ok := call["outputs"]; ok {
				outputs = FindFiles(v, p.validator)
			}

			if err := p.graph.AddNode(TaskNode{
				Name:     fullName,
				ShardIdx: taskShard,
				Inputs:   inputs,
				Outputs:  outputs,
			}); err != nil {
				return &ParserError{Op: "add_task", Err: err}
			}
			p.stats.Tasks++

			for _, out := range outputs {
				if err := p.graph.AddNode(OutputNode{
					TaskName:   fullName,
					ShardIdx:   taskShard,
					OutputName: out.FieldPath,
					OutputPath: out.Locator,
				}); err != nil {
					return &ParserError{Op: "add_output", Err: err}
				}
				p.stats.Outputs++
			}
		}
	}

	return nil
}

// parseInputDocument seeds one task-less output node per locator found in the
// decoded submitted-inputs document. These nodes are the graph roots.
func (p *Parser) parseInputDocument(inputDoc map[string]interface{}) error {
	if inputDoc == nil {
		return nil
	}
	for _, ref := range FindFiles(inputDoc, p.validator) {
		if err := p.graph.AddNode(OutputNode{
			OutputName: ref.FieldPath,
			OutputPath: ref.Locator,
		}); err != nil {
			return &ParserError{Op: "add_input", Err: err}
		}
		p.stats.WorkflowInputs++
	}
	return nil
}

// splitCallName extracts the alias from a call identifier. Two dot-separated
// segments give (owning workflow, alias); a single segment is valid only for
// Cromwell's synthetic nested-scatter sub-workflows and has no alias, reported
// as "".
func splitCallName(name string) (string, error) {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 2:
		return parts[1], nil
	case 1:
		if !strings.HasPrefix(name, scatterCallPrefix) {
			return "", &ParserError{Op: "parse_calls", Err: fmt.Errorf("call name %q: %w: not a synthetic scatter sub-workflow", name, ErrCallNameFormat)}
		}
		return "", nil
	default:
		return "", &ParserError{Op: "parse_calls", Err: fmt.Errorf("call name %q: %w: too many dots", name, ErrCallNameFormat)}
	}
}

// joinCallPath composes the full hierarchical task name from every non-empty
// ancestor entry plus the call's own alias. Empty entries are anonymous
// nested-scatter levels, which contribute a shard index but no name segment.
func joinCallPath(ancestors []string, alias string) string {
	parts := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		if a != "" {
			parts = append(parts, a)
		}
	}
	if alias != "" {
		parts = append(parts, alias)
	}
	return strings.Join(parts, ".")
}

// intValue coerces the numeric representations a decoded document can carry
// (encoding/json float64 or json.Number, BSON int32/int64, literal int) into
// an int.
func intValue(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", n.String())
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// requireString fetches a required string field from a mapping.
func requireString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", &MetadataError{Op: "validate", Err: fmt.Errorf("%w: %s", ErrMissingField, key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &MetadataError{Op: "validate", Err: fmt.Errorf("field %s is %T, want a string", key, v)}
	}
	return s, nil
}
