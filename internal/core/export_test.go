package core

import (
	"bytes"
	"testing"
)

func TestWriteInvalidCSV(t *testing.T) {
	entries := []InvalidEntry{
		{Email: "", FirstName: "A", Reason: ReasonMissingEmail, Line: 2},
		{Email: "bad, really", FirstName: "B", LastName: "Z", Reason: ReasonInvalidFormat},
	}

	var buf bytes.Buffer
	if err := WriteInvalidCSV(&buf, entries); err != nil {
		t.Fatalf("WriteInvalidCSV() error = %v", err)
	}

	want := "Reason,Line,email,first_name,last_name\n" +
		"Email address is missing.,2,,A,\n" +
		"Invalid email format.,,\"bad, really\",B,Z\n"
	if buf.String() != want {
		t.Errorf("got\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestFailedFileName(t *testing.T) {
	tests := map[string]string{
		"contacts.csv": "contacts - failed.csv",
		"LIST.CSV":     "LIST - failed.csv",
		"noext":        "noext - failed.csv",
		"":             "recipients - failed.csv",
	}
	for in, want := range tests {
		if got := FailedFileName(in); got != want {
			t.Errorf("FailedFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
