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
	"errors"
	"fmt"
)

// The Pipeline API composes the full flow from metadata document to exported
// graph: fetch, parse, and write through one or more GraphWriters.
//
// Example usage:
//
//	pipeline, err := cromgraph.NewPipeline().
//	    From(readers.NewFileSource("metadata.json")).
//	    WithValidator(validators.Default()).
//	    WithGraph(dag.New()).
//	    To(tableWriter).
//	    To(manifestWriter).
//	    WithErrorStrategy(cromgraph.CollectErrors).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	wf, err := pipeline.Execute(context.Background())
//	if err != nil { log.Fatal(err) }
//
// Execute owns the source and the writers: both are closed when it returns.
// Callers that need finer control wire the Parser and writers directly.

// ErrorStrategy selects how Execute reacts to a failing graph writer.
// Parse failures always abort; the strategy governs export only.
type ErrorStrategy int

const (
	// FailFast aborts on the first writer error.
	FailFast ErrorStrategy = iota

	// SkipErrors continues with the remaining writers and reports nothing,
	// unless a custom handler decides otherwise.
	SkipErrors

	// CollectErrors continues with the remaining writers and returns the
	// accumulated errors, joined, alongside the parsed workflow.
	CollectErrors
)

// ErrorHandler intercepts writer errors under SkipErrors and CollectErrors.
// Returning a non-nil error stops the pipeline.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error) error
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, err error) error {
	return f(ctx, err)
}

// PipelineBuilder provides a fluent API for constructing a Pipeline.
// Use NewPipeline() to create a builder, then chain the document origin,
// collaborators, and destinations.
type PipelineBuilder struct {
	parser   *ParserBuilder
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
//
// Returns a new builder instance.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		parser:   NewParser(),
		pipeline: &Pipeline{strategy: FailFast},
	}
}

// From sets a metadata Source to fetch the document from.
// Mutually exclusive with FromDocument. The pipeline closes the source when
// Execute returns.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) From(source Source) *PipelineBuilder {
	pb.parser.From(source)
	pb.pipeline.source = source
	return pb
}

// FromDocument sets an already-decoded metadata document.
// Mutually exclusive with From.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) FromDocument(doc Document) *PipelineBuilder {
	pb.parser.FromDocument(doc)
	return pb
}

// WithValidator sets the storage-locator validator (required).
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithValidator(v LocatorValidator) *PipelineBuilder {
	pb.parser.WithValidator(v)
	return pb
}

// WithGraph sets the graph-storage collaborator (required).
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithGraph(g Graph) *PipelineBuilder {
	pb.parser.WithGraph(g)
	return pb
}

// WithSourceParser sets the optional workflow-source structural parser used by
// the output-definition lookup.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithSourceParser(sp SourceParser) *PipelineBuilder {
	pb.parser.WithSourceParser(sp)
	return pb
}

// To adds a GraphWriter destination. At least one is required; each writer
// receives the full graph. The pipeline closes every writer when Execute
// returns.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) To(w GraphWriter) *PipelineBuilder {
	pb.pipeline.writers = append(pb.pipeline.writers, w)
	return pb
}

// WithErrorStrategy sets the error handling strategy for graph writers.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithErrorStrategy(strategy ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom handler consulted for writer errors under
// SkipErrors and CollectErrors.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithErrorHandler(handler ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// Build validates and constructs the Pipeline from the builder.
//
// Returns the constructed pipeline, or an error if required components are
// missing.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	parser, err := pb.parser.Build()
	if err != nil {
		return nil, err
	}
	if len(pb.pipeline.writers) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one graph writer")
	}
	pb.pipeline.parser = parser
	return pb.pipeline, nil
}

// Pipeline runs one metadata document end to end: parse into a graph, then
// export through every configured writer.
type Pipeline struct {
	parser       *Parser
	source       Source
	writers      []GraphWriter
	strategy     ErrorStrategy
	errorHandler ErrorHandler
}

// Execute parses the document and writes the resulting graph to every
// configured writer, flushing each one. The source and the writers are closed
// before Execute returns, whatever the outcome.
//
// A parse failure aborts immediately. Writer failures are governed by the
// configured ErrorStrategy; under CollectErrors the parsed workflow is
// returned together with the joined writer errors.
func (p *Pipeline) Execute(ctx context.Context) (*Workflow, error) {
	defer func() {
		if p.source != nil {
			p.source.Close()
		}
		for _, w := range p.writers {
			w.Close()
		}
	}()

	workflow, err := p.parser.Parse(ctx)
	if err != nil {
		return nil, err
	}

	var collected []error
	for _, w := range p.writers {
		err := p.export(ctx, w, workflow)
		if err == nil {
			continue
		}
		if err := p.handleError(ctx, err); err != nil {
			return nil, err
		}
		if p.strategy == CollectErrors {
			collected = append(collected, err)
		}
	}

	if len(collected) > 0 {
		return workflow, errors.Join(collected...)
	}
	return workflow, nil
}

// export writes the graph to one writer and forces its buffers out.
func (p *Pipeline) export(ctx context.Context, w GraphWriter, workflow *Workflow) error {
	if err := w.WriteGraph(ctx, workflow.Graph()); err != nil {
		return err
	}
	return w.Flush()
}

// handleError applies the configured strategy to one writer error.
// Returns an error if the pipeline should stop, or nil to continue.
func (p *Pipeline) handleError(ctx context.Context, err error) error {
	switch p.strategy {
	case FailFast:
		return err
	case SkipErrors, CollectErrors:
		if p.errorHandler != nil {
			return p.errorHandler.HandleError(ctx, err)
		}
		return nil
	default:
		return err
	}
}
