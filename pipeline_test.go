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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingWriter is a GraphWriter that counts calls and can fail on demand.
type recordingWriter struct {
	writes   int
	flushes  int
	closed   bool
	writeErr error
	flushErr error
}

func (w *recordingWriter) WriteGraph(ctx context.Context, g Graph) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.writes++
	return nil
}

func (w *recordingWriter) Flush() error {
	if w.flushErr != nil {
		return w.flushErr
	}
	w.flushes++
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

// TestPipeline_Execute tests the end-to-end parse-and-export flow
func TestPipeline_Execute(t *testing.T) {
	table := &recordingWriter{}
	manifest := &recordingWriter{}

	pipeline, err := NewPipeline().
		FromDocument(mustDecodeDoc(t, scatterGatherMetadata)).
		WithValidator(gsValidator).
		WithGraph(newRecordingGraph()).
		To(table).
		To(manifest).
		Build()
	require.NoError(t, err)

	workflow, err := pipeline.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, workflow)

	assert.Equal(t, "wf-7f2b", workflow.ID())
	assert.Equal(t, "main", workflow.Name())
	assert.NotEmpty(t, workflow.Graph().Nodes())

	for _, w := range []*recordingWriter{table, manifest} {
		assert.Equal(t, 1, w.writes)
		assert.Equal(t, 1, w.flushes)
		assert.True(t, w.closed)
	}
}

// TestPipeline_BuilderValidation tests Build failure modes
func TestPipeline_BuilderValidation(t *testing.T) {
	t.Run("missing_writer", func(t *testing.T) {
		_, err := NewPipeline().
			FromDocument(mustDecodeDoc(t, scatterGatherMetadata)).
			WithValidator(gsValidator).
			WithGraph(newRecordingGraph()).
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one graph writer")
	})

	t.Run("missing_document", func(t *testing.T) {
		_, err := NewPipeline().
			WithValidator(gsValidator).
			WithGraph(newRecordingGraph()).
			To(&recordingWriter{}).
			Build()
		assert.ErrorIs(t, err, ErrNoDocument)
	})

	t.Run("missing_validator", func(t *testing.T) {
		_, err := NewPipeline().
			FromDocument(mustDecodeDoc(t, scatterGatherMetadata)).
			WithGraph(newRecordingGraph()).
			To(&recordingWriter{}).
			Build()
		assert.ErrorIs(t, err, ErrNoValidator)
	})

	t.Run("missing_graph", func(t *testing.T) {
		_, err := NewPipeline().
			FromDocument(mustDecodeDoc(t, scatterGatherMetadata)).
			WithValidator(gsValidator).
			To(&recordingWriter{}).
			Build()
		assert.ErrorIs(t, err, ErrNoGraph)
	})
}

// TestPipeline_ResourceCleanup tests that sources and writers are closed
func TestPipeline_ResourceCleanup(t *testing.T) {
	t.Run("source_closed_on_success", func(t *testing.T) {
		source := &stubSource{doc: mustDecodeDoc(t, scatterGatherMetadata)}
		writer := &recordingWriter{}

		pipeline, err := NewPipeline().
			From(source).
			WithValidator(gsValidator).
			WithGraph(newRecordingGraph()).
			To(writer).
			Build()
		require.NoError(t, err)

		_, err = pipeline.Execute(context.Background())
		require.NoError(t, err)

		assert.True(t, source.closed)
		assert.True(t, writer.closed)
	})

	t.Run("writers_closed_on_parse_failure", func(t *testing.T) {
		source := &stubSource{err: fmt.Errorf("server unavailable")}
		writer := &recordingWriter{}

		pipeline, err := NewPipeline().
			From(source).
			WithValidator(gsValidator).
			WithGraph(newRecordingGraph()).
			To(writer).
			Build()
		require.NoError(t, err)

		workflow, err := pipeline.Execute(context.Background())
		require.Error(t, err)
		assert.Nil(t, workflow)
		assert.Equal(t, 0, writer.writes)

		assert.True(t, source.closed)
		assert.True(t, writer.closed)
	})
}

// TestPipeline_ErrorStrategies tests writer failure handling
func TestPipeline_ErrorStrategies(t *testing.T) {
	writeFailure := fmt.Errorf("disk full")
	flushFailure := fmt.Errorf("connection reset")

	build := func(t *testing.T, strategy ErrorStrategy, handler ErrorHandler, ws ...GraphWriter) *Pipeline {
		t.Helper()
		pb := NewPipeline().
			FromDocument(mustDecodeDoc(t, scatterGatherMetadata)).
			WithValidator(gsValidator).
			WithGraph(newRecordingGraph()).
			WithErrorStrategy(strategy)
		if handler != nil {
			pb.WithErrorHandler(handler)
		}
		for _, w := range ws {
			pb.To(w)
		}
		pipeline, err := pb.Build()
		require.NoError(t, err)
		return pipeline
	}

	t.Run("fail_fast_stops_at_first_failure", func(t *testing.T) {
		failing := &recordingWriter{writeErr: writeFailure}
		untouched := &recordingWriter{}

		pipeline := build(t, FailFast, nil, failing, untouched)

		workflow, err := pipeline.Execute(context.Background())
		assert.Nil(t, workflow)
		assert.ErrorIs(t, err, writeFailure)

		assert.Equal(t, 0, untouched.writes)
		assert.True(t, untouched.closed)
	})

	t.Run("skip_errors_continues", func(t *testing.T) {
		failing := &recordingWriter{writeErr: writeFailure}
		healthy := &recordingWriter{}

		pipeline := build(t, SkipErrors, nil, failing, healthy)

		workflow, err := pipeline.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, workflow)

		assert.Equal(t, 1, healthy.writes)
		assert.Equal(t, 1, healthy.flushes)
	})

	t.Run("collect_errors_joins_failures", func(t *testing.T) {
		failingWrite := &recordingWriter{writeErr: writeFailure}
		failingFlush := &recordingWriter{flushErr: flushFailure}
		healthy := &recordingWriter{}

		pipeline := build(t, CollectErrors, nil, failingWrite, failingFlush, healthy)

		workflow, err := pipeline.Execute(context.Background())
		require.Error(t, err)
		require.NotNil(t, workflow)

		assert.ErrorIs(t, err, writeFailure)
		assert.ErrorIs(t, err, flushFailure)
		assert.Equal(t, 1, healthy.writes)
	})

	t.Run("handler_observes_and_continues", func(t *testing.T) {
		failing := &recordingWriter{writeErr: writeFailure}
		healthy := &recordingWriter{}

		var seen []error
		handler := ErrorHandlerFunc(func(ctx context.Context, err error) error {
			seen = append(seen, err)
			return nil
		})

		pipeline := build(t, SkipErrors, handler, failing, healthy)

		_, err := pipeline.Execute(context.Background())
		require.NoError(t, err)

		require.Len(t, seen, 1)
		assert.ErrorIs(t, seen[0], writeFailure)
		assert.Equal(t, 1, healthy.writes)
	})

	t.Run("handler_can_stop_the_pipeline", func(t *testing.T) {
		abort := fmt.Errorf("too many export failures")
		failing := &recordingWriter{writeErr: writeFailure}
		untouched := &recordingWriter{}

		handler := ErrorHandlerFunc(func(ctx context.Context, err error) error {
			return abort
		})

		pipeline := build(t, SkipErrors, handler, failing, untouched)

		workflow, err := pipeline.Execute(context.Background())
		assert.Nil(t, workflow)
		assert.ErrorIs(t, err, abort)
		assert.Equal(t, 0, untouched.writes)
	})
}
