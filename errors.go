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
	"fmt"
)

// Sentinel errors for structural-document and relation failures. Structural
// errors are fatal and non-retryable: they indicate a malformed document or an
// unsupported engine version, not a transient condition.
var (
	// ErrMissingField marks a required metadata field that is absent or has the
	// wrong type. The wrapping error names the field.
	ErrMissingField = errors.New("missing required metadata field")

	// ErrCallNameFormat marks a call identifier with an unsupported shape:
	// more than two dot-separated segments, or a single segment that is not a
	// synthetic scatter sub-workflow name.
	ErrCallNameFormat = errors.New("unsupported call name format")

	// ErrEmptyAncestry marks a call-tree descent entered without at least the
	// root workflow name in the ancestor chain.
	ErrEmptyAncestry = errors.New("ancestor workflow chain is empty")

	// ErrInvalidNodePair is returned by the parent relation for node pairings it
	// is not defined over (two task nodes or two output nodes). Graph engines
	// that probe node pairs blindly must treat this error as "no relation" and
	// skip the pair; any other relation error is a real failure.
	ErrInvalidNodePair = errors.New("parent relation undefined for node pair")

	// ErrNoDocument is returned by ParserBuilder.Build when neither a document
	// nor a source was configured.
	ErrNoDocument = errors.New("parser requires a metadata document or source")

	// ErrNoValidator is returned by ParserBuilder.Build when no locator
	// validator was configured.
	ErrNoValidator = errors.New("parser requires a locator validator")

	// ErrNoGraph is returned by ParserBuilder.Build when no graph collaborator
	// was configured.
	ErrNoGraph = errors.New("parser requires a graph")
)

// MetadataError wraps failures around document handling: fetching, required-field
// validation, and decoding of the submitted-inputs block.
type MetadataError struct {
	Op  string // Operation that failed (e.g., "fetch", "validate", "decode_inputs")
	Err error  // Underlying error
}

// Error returns the error string for MetadataError.
func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for MetadataError.
func (e *MetadataError) Unwrap() error {
	return e.Err
}

// ParserError wraps structural failures raised during the call-tree descent.
type ParserError struct {
	Op  string // Operation that failed (e.g., "parse_calls")
	Err error  // Underlying error
}

// Error returns the error string for ParserError.
func (e *ParserError) Error() string {
	return fmt.Sprintf("parser %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParserError.
func (e *ParserError) Unwrap() error {
	return e.Err
}
