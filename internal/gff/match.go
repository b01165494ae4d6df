// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gff

import (
	"bytes"
	"fmt"
	"regexp"
)

// Matcher extracts the value of one attribute from the attribute column of a
// feature line.  Implementations must be safe for concurrent use.
type Matcher interface {
	// Find returns the value and true if the attribute is present with a
	// non-empty value.
	Find(attributes []byte) ([]byte, bool)
}

type keyMatcher []byte

// Key returns a Matcher that performs an exact key scan: the attribute must
// start the column or follow a semicolon, so "ID" does not match "gene_ID".
func Key(key string) Matcher {
	return keyMatcher(key + "=")
}

func (m keyMatcher) Find(attributes []byte) ([]byte, bool) {
	for len(attributes) > 0 {
		field := attributes
		if i := bytes.IndexByte(attributes, ';'); i >= 0 {
			field, attributes = attributes[:i], attributes[i+1:]
		} else {
			attributes = nil
		}
		field = bytes.TrimLeft(field, " ")
		if bytes.HasPrefix(field, m) {
			value := bytes.TrimRight(field[len(m):], " \t\r\n")
			return value, len(value) > 0
		}
	}
	return nil, false
}

type patternMatcher struct {
	re *regexp.Regexp
}

// Pattern returns a Matcher backed by a regular expression with exactly one
// capturing group holding the value.
func Pattern(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("pattern %q must have exactly one capturing group", expr)
	}
	return patternMatcher{re}, nil
}

// KeyPattern returns a regular expression Matcher equivalent to the
// unanchored scan "key=([^;\s]+)".
func KeyPattern(key string) Matcher {
	return patternMatcher{regexp.MustCompile(regexp.QuoteMeta(key) + `=([^;\s]+)`)}
}

func (m patternMatcher) Find(attributes []byte) ([]byte, bool) {
	match := m.re.FindSubmatch(attributes)
	if match == nil || len(match[1]) == 0 {
		return nil, false
	}
	return match[1], true
}

// FirstValue returns the first entry of a comma separated multi-value
// attribute such as Parent=a,b.
func FirstValue(value []byte) []byte {
	if i := bytes.IndexByte(value, ','); i >= 0 {
		return value[:i]
	}
	return value
}

// ValueMatcher selects attribute dictionary values.
type ValueMatcher interface {
	Match(value string) bool
}

type valueSet map[string]bool

// Values returns a ValueMatcher accepting exactly the given values.
func Values(values []string) ValueMatcher {
	set := make(valueSet, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func (set valueSet) Match(value string) bool {
	return set[value]
}

type patternSet []*regexp.Regexp

// Patterns returns a ValueMatcher accepting values matched by any of the
// regular expressions.
func Patterns(exprs []string) (ValueMatcher, error) {
	set := make(patternSet, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %v", expr, err)
		}
		set[i] = re
	}
	return set, nil
}

func (set patternSet) Match(value string) bool {
	for _, re := range set {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
