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
	"regexp"
	"strings"
)

// The output-definition reference can be declared in two places inside the
// workflow source, following the convention established by the Cromwell Output
// Organizer: a workflow-level meta entry, or a comment line anywhere in the
// source.
const (
	// MetaKeyOutDef is the workflow meta key holding the output-definition
	// reference.
	MetaKeyOutDef = "croo_out_def"

	// outDefCommentPattern matches the comment convention, e.g.
	//   # CROO out_def gs://bucket/defs/atac.json
	// The first capture group is the reference.
	outDefCommentPattern = `^\s*#\s*CROO\s+out_def\s(.+)`
)

var outDefCommentRe = regexp.MustCompile(outDefCommentPattern)

// OutputDefinition locates the optional output-definition reference given the
// workflow-level meta mapping and the raw workflow source text. The meta entry
// wins unconditionally when present with a string value, even when a comment
// match also exists; otherwise the source is scanned line by line and the
// first non-empty comment match is returned. Absence is reported as ("",
// false), never as an error: this lookup is cosmetic and must not block graph
// construction.
//
// A meta entry with a non-string value falls through to the comment scan.
func OutputDefinition(meta map[string]interface{}, source string) (string, bool) {
	if v, ok := meta[MetaKeyOutDef]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}

	for _, line := range strings.Split(source, "\n") {
		m := outDefCommentRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if ref := strings.TrimSpace(m[1]); ref != "" {
			return ref, true
		}
	}

	return "", false
}

// findOutputDefinition runs the full lookup for the builder: obtain the meta
// mapping from the optional source-parser collaborator, absorbing any error or
// panic it raises (hand-written grammar parsers do panic on malformed input,
// and a cosmetic lookup must never take graph construction down with it), then
// delegate to OutputDefinition.
func findOutputDefinition(sp SourceParser, source string) (string, bool) {
	var meta map[string]interface{}
	if sp != nil {
		meta = workflowMeta(sp, source)
	}
	return OutputDefinition(meta, source)
}

func workflowMeta(sp SourceParser, source string) (meta map[string]interface{}) {
	defer func() {
		if recover() != nil {
			meta = nil
		}
	}()
	m, err := sp.WorkflowMeta(source)
	if err != nil {
		return nil
	}
	return m
}
