// Package tabular decodes delimited text resources into rows or
// header-keyed records, coercing cell text to numbers and booleans where it
// parses as such. Malformed input is decoded best-effort: ragged rows are
// kept as they are and stray quotes are taken literally.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ExtraFieldsKey holds the cells of a header-mode row that has more fields
// than the header.
const ExtraFieldsKey = "__parsed_extra"

var candidateDelimiters = []rune{',', '\t', ';', '|'}

// previewRows is how many records the delimiter guess inspects.
const previewRows = 10

// floatPattern accepts plain decimal and exponent notation, optionally
// surrounded by whitespace.
var floatPattern = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// Options controls decoding. Dynamic typing is always applied.
type Options struct {
	// Header treats the first row as field names and yields Records.
	Header bool

	// Delimiter separates cells. Zero guesses from the leading rows.
	Delimiter rune
}

// Record is one header-keyed row.
type Record map[string]any

// Table is the decoded content of a delimited resource. Exactly one of Rows
// and Records is populated, depending on Options.Header.
type Table struct {
	Fields  []string
	Rows    [][]any
	Records []Record
}

// Len returns the number of decoded data rows.
func (t *Table) Len() int {
	if t.Records != nil {
		return len(t.Records)
	}
	return len(t.Rows)
}

// Decode parses data according to opts.
func Decode(data []byte, opts Options) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = opts.Delimiter
	if r.Comma == 0 {
		r.Comma = guessDelimiter(data)
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	t := &Table{}
	if opts.Header {
		t.Records = []Record{}
	} else {
		t.Rows = [][]any{}
	}

	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("read row: %w", err)
			}
			if cells == nil {
				continue
			}
		}

		if opts.Header && t.Fields == nil {
			t.Fields = append([]string(nil), cells...)
			continue
		}

		if opts.Header {
			t.Records = append(t.Records, toRecord(t.Fields, cells))
		} else {
			t.Rows = append(t.Rows, toRow(cells))
		}
	}

	return t, nil
}

func toRow(cells []string) []any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = Coerce(c)
	}
	return row
}

func toRecord(fields, cells []string) Record {
	rec := make(Record, len(fields))
	for i, c := range cells {
		if i >= len(fields) {
			extra := make([]any, 0, len(cells)-len(fields))
			for _, e := range cells[len(fields):] {
				extra = append(extra, Coerce(e))
			}
			rec[ExtraFieldsKey] = extra
			break
		}
		rec[fields[i]] = Coerce(c)
	}
	return rec
}

// Coerce applies dynamic typing to a single cell: "true"/"TRUE" and
// "false"/"FALSE" become bools, decimal numbers become float64, the empty
// string becomes nil, and anything else stays a string.
func Coerce(s string) any {
	switch s {
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	case "":
		return nil
	}
	if floatPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return s
}

// guessDelimiter decodes the first previewRows records with each candidate
// and picks the one that splits every previewed row into the same number
// of fields, more than one. The widest consistent split wins and ties keep
// the earlier candidate, so comma is the default.
func guessDelimiter(data []byte) rune {
	best, bestFields := ',', 1
	for _, d := range candidateDelimiters {
		if n, ok := consistentFields(data, d); ok && n > bestFields {
			best, bestFields = d, n
		}
	}
	return best
}

// consistentFields reports the field count shared by the preview rows when
// data is split on delim. Quoted fields are honored.
func consistentFields(data []byte, delim rune) (int, bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	fields := 0
	for i := 0; i < previewRows; i++ {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, false
		}
		if fields == 0 {
			fields = len(cells)
		} else if len(cells) != fields {
			return 0, false
		}
	}
	return fields, fields > 1
}
