package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// invalidHeader leads with Reason so the failure is the first thing seen
// when the export is opened in a spreadsheet.
var invalidHeader = []string{"Reason", "Line", ColEmail, ColFirstName, ColLastName}

// WriteInvalidCSV writes rejected rows as a failed-rows CSV. The raw field
// values are written back untouched so the file can be fixed and re-uploaded.
func WriteInvalidCSV(w io.Writer, entries []InvalidEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(invalidHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range entries {
		line := ""
		if e.Line > 0 {
			line = strconv.Itoa(e.Line)
		}
		if err := cw.Write([]string{e.Reason.Description(), line, e.Email, e.FirstName, e.LastName}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FailedFileName returns the name used for a failed-rows export of source,
// e.g. "contacts.csv" -> "contacts - failed.csv".
func FailedFileName(source string) string {
	base := source
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".csv") {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		base = "recipients"
	}
	return base + " - failed.csv"
}
