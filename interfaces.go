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
)

// Package cromgraph defines the core types and collaborator interfaces for the CromGraph library.
//
// CromGraph reconstructs a dependency graph of executed workflow tasks and the output
// artifacts they produced from a Cromwell-style post-execution metadata document.
// Downstream tooling routes and renames artifacts using the resulting graph together
// with an optional output-definition reference located (but not interpreted) here.
//
// This file contains the document type and the interfaces for every injected
// collaborator: locator validation, workflow-source parsing, graph storage, and
// metadata document sources.

// Document is a decoded execution-metadata tree of mappings, sequences, and scalars,
// as produced by encoding/json or an equivalent decoder. Required top-level fields
// are "id", "workflowName", and "calls"; "submittedFiles" is optional and, when
// present, carries a JSON-encoded "inputs" string and raw "workflow" source text.
//
// Document is an alias so that nested mappings and the document itself share one
// type during recursive traversal.
type Document = map[string]interface{}

// LocatorValidator decides whether a string denotes a storage location
// (object-store URI, URL, absolute path, ...). The graph core never implements
// validation itself; callers inject a validator, typically from the validators
// package or their own URI layer.
type LocatorValidator interface {
	// IsLocator reports whether s is a storage-location string.
	IsLocator(s string) bool
}

// LocatorValidatorFunc is a function adapter for the LocatorValidator interface.
type LocatorValidatorFunc func(s string) bool

// IsLocator implements the LocatorValidator interface for LocatorValidatorFunc.
func (f LocatorValidatorFunc) IsLocator(s string) bool {
	return f(s)
}

// SourceParser exposes the structural "meta" section of raw workflow source text.
// It is consumed only by the optional output-definition lookup; any failure it
// reports (or panic it raises) is absorbed and degraded to an absent result,
// never propagated into graph construction.
type SourceParser interface {
	// WorkflowMeta returns the workflow-level meta key/value mapping parsed
	// from source, or an error when the source cannot be parsed.
	WorkflowMeta(source string) (map[string]interface{}, error)
}

// SourceParserFunc is a function adapter for the SourceParser interface.
type SourceParserFunc func(source string) (map[string]interface{}, error)

// WorkflowMeta implements the SourceParser interface for SourceParserFunc.
func (f SourceParserFunc) WorkflowMeta(source string) (map[string]interface{}, error) {
	return f(source)
}

// ParentFunc is the parent/child relation registered with a Graph. It reports
// whether parent directly produces or feeds child. Implementations must return
// ErrInvalidNodePair (wrapped or bare) for node pairings the relation is not
// defined over, rather than silently returning false.
type ParentFunc func(parent, child Node) (bool, error)

// Graph is the external graph-storage collaborator. It owns edge materialization,
// storage, and traversal; the parsing core only inserts nodes and registers the
// parent relation. Implementations are not assumed safe for concurrent insertion
// unless they document otherwise.
type Graph interface {
	// RegisterParentFunc installs the parent relation used to materialize edges.
	// It must be called before nodes are inserted.
	RegisterParentFunc(fn ParentFunc)

	// AddNode inserts a node. Implementations decide how (and whether) edges are
	// derived from the registered relation.
	AddNode(n Node) error

	// Nodes returns every inserted node in insertion order.
	Nodes() []Node
}

// Source fetches one execution-metadata document from wherever it lives
// (local file, workflow server, object store, metadata archive). Sources are
// single-document: the location or lookup key is fixed at construction.
type Source interface {
	// Fetch retrieves and decodes the metadata document.
	Fetch(ctx context.Context) (Document, error)

	// Close releases any resources held by the source.
	Close() error
}

// GraphWriter exports a constructed dependency graph to an external format or
// store. Implementations live in the writers package.
type GraphWriter interface {
	// WriteGraph writes every node of g. Implementations may buffer; callers
	// must Flush or Close to guarantee durability.
	WriteGraph(ctx context.Context, g Graph) error

	// Flush forces any buffered output to the destination.
	Flush() error

	// Close flushes and releases all resources.
	Close() error
}
