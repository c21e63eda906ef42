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
	"sort"
	"strings"
)

// FindFiles recursively scans an arbitrarily nested value of mappings,
// sequences, and scalars for storage-location strings accepted by isLocator,
// and returns one FileRef per hit.
//
// Mapping keys extend the dot-joined field path; sequence positions extend the
// list-index chain and leave the field path unchanged; any other scalar and
// every empty container contribute nothing. Mapping keys are visited in sorted
// order so that repeated scans of one document yield the same sequence. The
// function is pure: neither v nor the validator is mutated.
//
// This handles WDL compound values of any depth, including structs and nested
// arrays of files.
func FindFiles(v interface{}, isLocator LocatorValidator) []FileRef {
	if isLocator == nil {
		return nil
	}
	return findFiles(v, isLocator, nil, nil)
}

func findFiles(v interface{}, isLocator LocatorValidator, fieldPath []string, listIdx []int) []FileRef {
	var refs []FileRef

	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			refs = append(refs, findFiles(val[k], isLocator, extendPath(fieldPath, k), listIdx)...)
		}

	case []interface{}:
		for i, item := range val {
			refs = append(refs, findFiles(item, isLocator, fieldPath, extendIndex(listIdx, i))...)
		}

	case string:
		if isLocator.IsLocator(val) {
			idx := listIdx
			if len(idx) == 0 {
				idx = []int{-1}
			}
			refs = append(refs, FileRef{
				FieldPath: strings.Join(fieldPath, "."),
				Locator:   val,
				ListIndex: idx,
			})
		}
	}

	return refs
}

// extendPath returns a fresh copy of path with key appended. Accumulators are
// extended by value so sibling branches never share backing storage.
func extendPath(path []string, key string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = key
	return out
}

// extendIndex returns a fresh copy of idx with i appended.
func extendIndex(idx []int, i int) []int {
	out := make([]int, len(idx)+1)
	copy(out, idx)
	out[len(idx)] = i
	return out
}
