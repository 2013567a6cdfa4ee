package core

// parser.go turns an uploaded table into row records keyed by header name.
//
// The whole input is read before any row is returned, so a malformed file is
// reported as a single ParseFailure instead of a half-consumed batch.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyFile is returned when the input has no header row at all.
var ErrEmptyFile = errors.New("empty file: no header row found")

// ParseFailure reports a table that could not be parsed as a whole.
type ParseFailure struct {
	Line int // 1-indexed line where parsing stopped, 0 if unknown
	Err  error
}

func (e *ParseFailure) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *ParseFailure) Unwrap() error {
	return e.Err
}

// ParsedTable is the output of ParseTable.
type ParsedTable struct {
	Header []string // cleaned, lower-cased header names
	Rows   []Row
	Lines  []int // source line of each row in Rows
}

// ParseTable reads comma-separated text with a header row.
// Fully blank lines are skipped. Quoting must be well formed; a stray or
// unterminated quote fails the whole table. Rows shorter than the header leave the
// trailing columns absent; extra cells beyond the header are ignored.
func ParseTable(r io.Reader) (*ParsedTable, error) {
	cr := csv.NewReader(WrapForParsing(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		table  ParsedTable
		header []string
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseFailure{Line: pe.StartLine, Err: pe.Err}
			}
			return nil, &ParseFailure{Err: err}
		}
		if isBlankRecord(record) {
			continue
		}

		line, _ := cr.FieldPos(0)

		if header == nil {
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = strings.ToLower(CleanCell(h))
			}
			continue
		}

		row := make(Row, len(header))
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			if _, dup := row[name]; dup {
				// First column with a given name wins.
				continue
			}
			row[name] = CleanCell(record[i])
		}
		table.Rows = append(table.Rows, row)
		table.Lines = append(table.Lines, line)
	}

	if header == nil {
		return nil, &ParseFailure{Err: ErrEmptyFile}
	}
	table.Header = header
	return &table, nil
}

// CleanCell trims whitespace and strips the Excel text-formula wrapper (="...")
// that spreadsheet exports put around values that look numeric.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
