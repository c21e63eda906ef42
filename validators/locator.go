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

// locator.go - Storage-location validators injected into the document scanner
package validators

import (
	"regexp"
	"strings"

	"github.com/aaronlmathis/cromgraph"
)

var (
	gsPattern   = regexp.MustCompile(`^gs://[^/\s]+/\S+$`)
	s3Pattern   = regexp.MustCompile(`^s3://[^/\s]+/\S+$`)
	httpPattern = regexp.MustCompile(`^https?://\S+$`)
	absPattern  = regexp.MustCompile(`^/[^\n]+$`)
)

// GS returns a validator accepting Google Cloud Storage gs://bucket/object URIs.
func GS() cromgraph.LocatorValidator {
	return cromgraph.LocatorValidatorFunc(func(s string) bool {
		return gsPattern.MatchString(s)
	})
}

// S3 returns a validator accepting s3://bucket/key object URIs.
func S3() cromgraph.LocatorValidator {
	return cromgraph.LocatorValidatorFunc(func(s string) bool {
		return s3Pattern.MatchString(s)
	})
}

// HTTP returns a validator accepting http:// and https:// URLs.
func HTTP() cromgraph.LocatorValidator {
	return cromgraph.LocatorValidatorFunc(func(s string) bool {
		return httpPattern.MatchString(s)
	})
}

// AbsPath returns a validator accepting absolute POSIX paths. Interior spaces
// are allowed since local execution backends emit them; newlines are not.
func AbsPath() cromgraph.LocatorValidator {
	return cromgraph.LocatorValidatorFunc(func(s string) bool {
		return absPattern.MatchString(s)
	})
}

// Any returns a validator accepting strings any of the given validators accept.
func Any(validators ...cromgraph.LocatorValidator) cromgraph.LocatorValidator {
	return cromgraph.LocatorValidatorFunc(func(s string) bool {
		for _, v := range validators {
			if v.IsLocator(s) {
				return true
			}
		}
		return false
	})
}

// Default returns the validator used by most deployments: object-store URIs,
// URLs, and absolute paths.
func Default() cromgraph.LocatorValidator {
	return Any(GS(), S3(), HTTP(), AbsPath())
}

// WithExtensions restricts a validator to locators carrying one of the given
// file extensions (case-insensitive; the leading dot is optional).
func WithExtensions(v cromgraph.LocatorValidator, extensions ...string) cromgraph.LocatorValidator {
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = strings.ToLower(e)
	}

	return cromgraph.LocatorValidatorFunc(func(s string) bool {
		if !v.IsLocator(s) {
			return false
		}
		lower := strings.ToLower(s)
		for _, e := range exts {
			if strings.HasSuffix(lower, e) {
				return true
			}
		}
		return false
	})
}
