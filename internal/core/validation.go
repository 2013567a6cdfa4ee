package core

// validation.go classifies parsed rows as recipients or rejects.
//
// Classification order (first match wins):
//  1. empty email            -> ReasonMissingEmail
//  2. email not local@domain.tld -> ReasonInvalidFormat
//  3. otherwise a Recipient with trimmed fields, email case preserved
//
// The same address rule drives the live check on the manual entry form.

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// emailPattern: one @, at least one dot after the @. RE2's \s is ASCII only,
// so other whitespace is rejected separately.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether s (already trimmed) has the local@domain.tld
// shape, no whitespace of any kind and no undecodable bytes.
func IsValidEmail(s string) bool {
	return !strings.ContainsFunc(s, rejectedEmailRune) && emailPattern.MatchString(s)
}

func rejectedEmailRune(r rune) bool {
	return unicode.IsSpace(r) || r == utf8.RuneError
}

// EmailState is the live validation state of the manual entry field.
type EmailState string

const (
	EmailEmpty   EmailState = "empty"
	EmailValid   EmailState = "valid"
	EmailInvalid EmailState = "invalid"
)

// Message returns the text shown under the field for this state.
func (s EmailState) Message() string {
	switch s {
	case EmailValid:
		return "Valid email."
	case EmailInvalid:
		return "Invalid email format."
	default:
		return ""
	}
}

// CanAdd reports whether the add action is enabled in this state.
func (s EmailState) CanAdd() bool {
	return s == EmailValid
}

// CheckEmail evaluates the manual entry field on every keystroke or blur.
func CheckEmail(raw string) EmailState {
	email := strings.TrimSpace(raw)
	switch {
	case email == "":
		return EmailEmpty
	case IsValidEmail(email):
		return EmailValid
	default:
		return EmailInvalid
	}
}

// ClassifyRow validates a single row. It returns either a Recipient (ok=true)
// or an InvalidEntry tagged with the failure reason.
func ClassifyRow(row Row) (Recipient, InvalidEntry, bool) {
	email := strings.TrimSpace(row.Get(ColEmail))
	first := strings.TrimSpace(row.Get(ColFirstName))
	last := strings.TrimSpace(row.Get(ColLastName))

	reject := InvalidEntry{
		Email:     row.Get(ColEmail),
		FirstName: row.Get(ColFirstName),
		LastName:  row.Get(ColLastName),
	}

	switch {
	case email == "":
		reject.Reason = ReasonMissingEmail
		return Recipient{}, reject, false
	case !IsValidEmail(email):
		reject.Reason = ReasonInvalidFormat
		return Recipient{}, reject, false
	}

	return Recipient{Email: email, FirstName: first, LastName: last}, InvalidEntry{}, true
}

// ValidateRows splits rows into valid recipients and rejects, preserving order
// in both outputs. Rejects never stop the batch.
func ValidateRows(rows []Row) ([]Recipient, []InvalidEntry) {
	valid := make([]Recipient, 0, len(rows))
	var invalid []InvalidEntry

	for _, row := range rows {
		rec, bad, ok := ClassifyRow(row)
		if ok {
			valid = append(valid, rec)
			continue
		}
		invalid = append(invalid, bad)
	}
	return valid, invalid
}

// validateTable is ValidateRows with source line numbers attached to rejects.
func validateTable(t *ParsedTable) ([]Recipient, []InvalidEntry) {
	valid := make([]Recipient, 0, len(t.Rows))
	var invalid []InvalidEntry

	for i, row := range t.Rows {
		rec, bad, ok := ClassifyRow(row)
		if ok {
			valid = append(valid, rec)
			continue
		}
		if i < len(t.Lines) {
			bad.Line = t.Lines[i]
		}
		invalid = append(invalid, bad)
	}
	return valid, invalid
}
