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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestOutputDefinition_MetaKeyPrecedence tests that the meta entry beats the comment
func TestOutputDefinition_MetaKeyPrecedence(t *testing.T) {
	meta := map[string]interface{}{
		MetaKeyOutDef: "gs://bucket/defs/from_meta.json",
	}
	source := "# CROO out_def gs://bucket/defs/from_comment.json\nworkflow x {}"

	ref, ok := OutputDefinition(meta, source)
	assert.True(t, ok)
	assert.Equal(t, "gs://bucket/defs/from_meta.json", ref)
}

// TestOutputDefinition_NonStringMetaFallsThrough tests the comment fallback
func TestOutputDefinition_NonStringMetaFallsThrough(t *testing.T) {
	meta := map[string]interface{}{
		MetaKeyOutDef: float64(42),
	}
	source := "# CROO out_def gs://bucket/defs/atac.json"

	ref, ok := OutputDefinition(meta, source)
	assert.True(t, ok)
	assert.Equal(t, "gs://bucket/defs/atac.json", ref)
}

// TestOutputDefinition_CommentScan tests the line-by-line comment convention
func TestOutputDefinition_CommentScan(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		expectedRef string
		expectedOK  bool
	}{
		{
			name:        "plain_comment",
			source:      "# CROO out_def gs://bucket/defs/atac.json",
			expectedRef: "gs://bucket/defs/atac.json",
			expectedOK:  true,
		},
		{
			name:        "indented_comment",
			source:      "workflow x {\n    #CROO out_def /defs/local.json\n}",
			expectedRef: "/defs/local.json",
			expectedOK:  true,
		},
		{
			name:        "trailing_whitespace_trimmed",
			source:      "# CROO out_def gs://bucket/defs/atac.json   \t",
			expectedRef: "gs://bucket/defs/atac.json",
			expectedOK:  true,
		},
		{
			name:        "first_match_wins",
			source:      "# CROO out_def first.json\n# CROO out_def second.json",
			expectedRef: "first.json",
			expectedOK:  true,
		},
		{
			name:       "empty_reference_skipped",
			source:     "# CROO out_def  \nworkflow x {}",
			expectedOK: false,
		},
		{
			name:       "not_a_comment",
			source:     "CROO out_def gs://bucket/defs/atac.json",
			expectedOK: false,
		},
		{
			name:       "unrelated_comment",
			source:     "# just a comment about out_def things",
			expectedOK: false,
		},
		{
			name:       "empty_source",
			source:     "",
			expectedOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := OutputDefinition(nil, tt.source)
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedRef, ref)
		})
	}
}

// TestFindOutputDefinition_ParserFailures tests that lookup failures degrade to absence
func TestFindOutputDefinition_ParserFailures(t *testing.T) {
	source := "workflow x {}"

	t.Run("nil_parser", func(t *testing.T) {
		ref, ok := findOutputDefinition(nil, "# CROO out_def fallback.json")
		assert.True(t, ok)
		assert.Equal(t, "fallback.json", ref)
	})

	t.Run("parser_error_absorbed", func(t *testing.T) {
		sp := SourceParserFunc(func(string) (map[string]interface{}, error) {
			return nil, errors.New("syntax error at line 1")
		})
		ref, ok := findOutputDefinition(sp, source)
		assert.False(t, ok)
		assert.Equal(t, "", ref)
	})

	t.Run("parser_panic_absorbed", func(t *testing.T) {
		sp := SourceParserFunc(func(string) (map[string]interface{}, error) {
			panic("unexpected token")
		})
		ref, ok := findOutputDefinition(sp, source)
		assert.False(t, ok)
		assert.Equal(t, "", ref)
	})

	t.Run("parser_error_falls_back_to_comment", func(t *testing.T) {
		sp := SourceParserFunc(func(string) (map[string]interface{}, error) {
			return nil, errors.New("syntax error")
		})
		ref, ok := findOutputDefinition(sp, "# CROO out_def comment.json")
		assert.True(t, ok)
		assert.Equal(t, "comment.json", ref)
	})

	t.Run("parser_meta_used", func(t *testing.T) {
		sp := SourceParserFunc(func(string) (map[string]interface{}, error) {
			return map[string]interface{}{MetaKeyOutDef: "meta.json"}, nil
		})
		ref, ok := findOutputDefinition(sp, source)
		assert.True(t, ok)
		assert.Equal(t, "meta.json", ref)
	})
}
