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
)

// Package cromgraph builds task/artifact dependency graphs from workflow
// execution metadata.
//
// The ParserBuilder API enables fluent construction of a graph parse:
//
//	parser, err := cromgraph.NewParser().
//	    FromDocument(doc).                 // or From(readers.NewFileSource(path))
//	    WithValidator(validators.Default()).
//	    WithGraph(dag.New()).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	wf, err := parser.Parse(context.Background())
//	if err != nil { log.Fatal(err) }
//	fmt.Println(wf.ID(), len(wf.Graph().Nodes()))
//
// The locator validator and the graph engine are injected collaborators; the
// core never constructs either on its own.

// ParserBuilder provides a fluent API for configuring a Parser.
// Use NewParser() to create a builder, then chain FromDocument/From and the
// With* configuration methods.
type ParserBuilder struct {
	parser *Parser
}

// NewParser creates a new ParserBuilder.
//
// Returns a new builder instance.
func NewParser() *ParserBuilder {
	return &ParserBuilder{parser: &Parser{}}
}

// From sets a metadata Source to fetch the document from during Parse.
// Mutually exclusive with FromDocument.
//
// Returns the builder for chaining.
func (pb *ParserBuilder) From(source Source) *ParserBuilder {
	pb.parser.source = source
	return pb
}

// FromDocument sets an already-decoded metadata document.
// Mutually exclusive with From.
//
// Returns the builder for chaining.
func (pb *ParserBuilder) FromDocument(doc Document) *ParserBuilder {
	pb.parser.doc = doc
	return pb
}

// WithValidator sets the storage-locator validator (required).
//
// Returns the builder for chaining.
func (pb *ParserBuilder) WithValidator(v LocatorValidator) *ParserBuilder {
	pb.parser.validator = v
	return pb
}

// WithGraph sets the graph-storage collaborator that receives nodes and the
// parent relation (required).
//
// Returns the builder for chaining.
func (pb *ParserBuilder) WithGraph(g Graph) *ParserBuilder {
	pb.parser.graph = g
	return pb
}

// WithSourceParser sets the optional workflow-source structural parser used by
// the output-definition lookup. Without one, only the comment convention is
// consulted.
//
// Returns the builder for chaining.
func (pb *ParserBuilder) WithSourceParser(sp SourceParser) *ParserBuilder {
	pb.parser.srcParser = sp
	return pb
}

// Build validates and constructs the Parser from the builder.
//
// Returns the configured parser, or an error if required collaborators are
// missing or the document configuration is ambiguous.
func (pb *ParserBuilder) Build() (*Parser, error) {
	if pb.parser.doc == nil && pb.parser.source == nil {
		return nil, ErrNoDocument
	}
	if pb.parser.doc != nil && pb.parser.source != nil {
		return nil, fmt.Errorf("metadata document and source are mutually exclusive")
	}
	if pb.parser.validator == nil {
		return nil, ErrNoValidator
	}
	if pb.parser.graph == nil {
		return nil, ErrNoGraph
	}
	return pb.parser, nil
}

// Workflow is the result of one parse: the populated graph handle plus the
// document's identity and the optional output-definition reference.
type Workflow struct {
	id        string
	name      string
	outDef    string
	hasOutDef bool
	graph     Graph
	stats     ParserStats
}

// ID returns the workflow run identifier from the metadata document.
func (w *Workflow) ID() string {
	return w.id
}

// Name returns the workflow name from the metadata document.
func (w *Workflow) Name() string {
	return w.name
}

// Graph returns the populated graph-storage handle.
func (w *Workflow) Graph() Graph {
	return w.graph
}

// OutputDefinition returns the located output-definition reference and whether
// one was found. Lookup failures are absorbed during Parse and reported here
// as absence.
func (w *Workflow) OutputDefinition() (string, bool) {
	return w.outDef, w.hasOutDef
}

// Stats returns counters and timings from the parse pass.
func (w *Workflow) Stats() ParserStats {
	return w.stats
}
