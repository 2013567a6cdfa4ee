package core

import "strings"

// Expected column names in an uploaded recipient table.
const (
	ColEmail     = "email"
	ColFirstName = "first_name"
	ColLastName  = "last_name"
)

// Recipient is a validated email target with optional name fields.
// Email keeps the case it was entered with; comparisons use DedupKey.
type Recipient struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DedupKey returns the lower-cased address used for equality checks.
// It is never stored or displayed.
func (r Recipient) DedupKey() string {
	return strings.ToLower(r.Email)
}

// DisplayName joins the name fields, or returns "" when both are empty.
func (r Recipient) DisplayName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Row is one parsed table record: lower-cased column name -> trimmed value.
// A column missing from the header is simply absent from the map.
type Row map[string]string

// Get returns the value for col, or "" if the column is absent.
func (r Row) Get(col string) string {
	return r[col]
}

// Reason classifies why a row was rejected.
type Reason string

const (
	ReasonMissingEmail  Reason = "MissingEmail"
	ReasonInvalidFormat Reason = "InvalidFormat"
)

// Description returns the human-readable text shown next to a rejected row.
func (r Reason) Description() string {
	switch r {
	case ReasonMissingEmail:
		return "Email address is missing."
	case ReasonInvalidFormat:
		return "Invalid email format."
	default:
		return string(r)
	}
}

// InvalidEntry is a rejected row kept for display. The fields hold the raw
// values from the table (any may be empty).
type InvalidEntry struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Reason    Reason `json:"reason"`
	Line      int    `json:"line,omitempty"` // 1-indexed line in the source table, 0 if unknown
}

// DisplayEmail returns the raw email or "(missing)".
func (e InvalidEntry) DisplayEmail() string {
	if e.Email == "" {
		return "(missing)"
	}
	return e.Email
}

// DisplayName returns "first last" when a first name is present, otherwise "N/A".
func (e InvalidEntry) DisplayName() string {
	if e.FirstName == "" {
		return "N/A"
	}
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// LoadResult summarizes one LoadFromParse call.
type LoadResult struct {
	Rows       int `json:"rows"`       // non-blank data rows read
	Valid      int `json:"valid"`      // rows that passed validation
	Invalid    int `json:"invalid"`    // rows rejected by validation
	Duplicates int `json:"duplicates"` // valid rows dropped by dedup
	Stored     int `json:"stored"`     // store size after the load
}
