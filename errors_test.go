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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMetadataError tests the wrapper format and unwrapping
func TestMetadataError(t *testing.T) {
	base := errors.New("file not found")
	err := &MetadataError{Op: "fetch", Err: base}

	assert.Equal(t, "metadata fetch: file not found", err.Error())
	assert.Equal(t, base, err.Unwrap())
	assert.ErrorIs(t, err, base)
}

// TestParserError tests the wrapper format and unwrapping
func TestParserError(t *testing.T) {
	err := &ParserError{
		Op:  "parse_calls",
		Err: fmt.Errorf("call %q: %w", "a.b.c", ErrCallNameFormat),
	}

	assert.Contains(t, err.Error(), "parser parse_calls:")
	assert.ErrorIs(t, err, ErrCallNameFormat)
}
