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
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		ok    bool
	}{
		{"nine columns", "chr1\tsrc\tgene\t1\t100\t.\t+\t.\tID=g1", true},
		{"empty attributes", "chr1\tsrc\tgene\t1\t100\t.\t+\t.\t", true},
		{"eight columns", "chr1\tsrc\tgene\t1\t100\t.\t+\t.", false},
		{"ten columns", "chr1\tsrc\tgene\t1\t100\t.\t+\t.\tID=g1\textra", false},
		{"spaces", "chr1 src gene 1 100 . + . ID=g1", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var line Line
			if got := Split([]byte(tc.input), &line); got != tc.ok {
				t.Fatalf("Split returned %v, want %v", got, tc.ok)
			}
			if tc.ok {
				if got, want := string(line[FieldType]), "gene"; got != want {
					t.Errorf("Wrong type column: got %q, want %q", got, want)
				}
				if got, want := string(line[FieldAttributes]), tc.input[strings.LastIndexByte(tc.input, '\t')+1:]; got != want {
					t.Errorf("Wrong attribute column: got %q, want %q", got, want)
				}
			}
		})
	}
}

func TestKey(t *testing.T) {
	testCases := []struct {
		name       string
		key        string
		attributes string
		want       string
		found      bool
	}{
		{"first", "ID", "ID=gene1;Name=BRCA1", "gene1", true},
		{"later", "Name", "ID=gene1;Name=BRCA1", "BRCA1", true},
		{"space after separator", "Name", "ID=gene1; Name=BRCA1", "BRCA1", true},
		{"suffix of another key", "ID", "gene_ID=x;Name=y", "", false},
		{"prefix of another key", "gene", "gene_name=TP53", "", false},
		{"absent", "Parent", "ID=gene1", "", false},
		{"empty value", "Name", "ID=gene1;Name=", "", false},
		{"trailing carriage return", "ID", "ID=mrna1\r", "mrna1", true},
		{"multiple parents", "Parent", "ID=e1;Parent=t1,t2", "t1,t2", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := Key(tc.key).Find([]byte(tc.attributes))
			if found != tc.found {
				t.Fatalf("Find returned found=%v, want %v", found, tc.found)
			}
			if string(got) != tc.want {
				t.Errorf("Wrong value: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPattern(t *testing.T) {
	m, err := Pattern(`gene_name=([^;]+)`)
	if err != nil {
		t.Fatalf("Pattern returned unexpected error: %v", err)
	}
	if got, ok := m.Find([]byte("ID=g1;gene_name=TP53")); !ok || string(got) != "TP53" {
		t.Errorf("Wrong match: got %q (%v), want %q", got, ok, "TP53")
	}

	if _, err := Pattern(`gene_name=[^;]+`); err == nil {
		t.Error("Pattern accepted an expression without a capturing group")
	}
	if _, err := Pattern(`(`); err == nil {
		t.Error("Pattern accepted an invalid expression")
	}

	// The unanchored pattern also matches inside longer keys.
	if got, ok := KeyPattern("ID").Find([]byte("gene_ID=x")); !ok || string(got) != "x" {
		t.Errorf("Wrong match: got %q (%v), want %q", got, ok, "x")
	}
}

func TestFirstValue(t *testing.T) {
	for input, want := range map[string]string{"t1,t2": "t1", "t1": "t1", "": ""} {
		if got := string(FirstValue([]byte(input))); got != want {
			t.Errorf("FirstValue(%q): got %q, want %q", input, got, want)
		}
	}
}

func TestValueMatchers(t *testing.T) {
	exact := Values([]string{"BRCA1", "TP53"})
	if !exact.Match("TP53") || exact.Match("TP5") {
		t.Error("Values matched incorrectly")
	}

	patterns, err := Patterns([]string{"^BRCA[0-9]$", "^HOX"})
	if err != nil {
		t.Fatalf("Patterns returned unexpected error: %v", err)
	}
	for value, want := range map[string]bool{"BRCA2": true, "HOXA1": true, "TP53": false, "xBRCA1": false} {
		if got := patterns.Match(value); got != want {
			t.Errorf("Match(%q): got %v, want %v", value, got, want)
		}
	}

	if _, err := Patterns([]string{"["}); err == nil {
		t.Error("Patterns accepted an invalid expression")
	}
}

func TestTypeSet(t *testing.T) {
	if ParseTypes("") != nil || ParseTypes(" , ") != nil {
		t.Fatal("ParseTypes returned a non-nil set for an empty list")
	}

	set := ParseTypes("gene, exon")
	testCases := []struct {
		line string
		want bool
	}{
		{"chr1\tsrc\tgene\t1\t10\t.\t+\t.\tID=g1\n", true},
		{"chr1\tsrc\texon\t1\t10\t.\t+\t.\tID=e1", true},
		{"chr1\tsrc\tmRNA\t1\t10\t.\t+\t.\tID=t1\n", false},
		{"##sequence-region chr1 1 100\n", true},
		{"chr1\tsrc\n", false},
	}
	for _, tc := range testCases {
		if got := set.Allows([]byte(tc.line)); got != tc.want {
			t.Errorf("Allows(%q): got %v, want %v", tc.line, got, tc.want)
		}
	}

	var all TypeSet
	if !all.Allows([]byte("anything")) {
		t.Error("nil TypeSet rejected a line")
	}
}
