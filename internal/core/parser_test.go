package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantRows  []Row
		wantLines []int
	}{
		{
			name:      "basic table",
			input:     "email,first_name,last_name\na@b.co,Ann,Lee\n",
			wantRows:  []Row{{"email": "a@b.co", "first_name": "Ann", "last_name": "Lee"}},
			wantLines: []int{2},
		},
		{
			name:      "header case and whitespace",
			input:     " Email , First_Name\nx@y.io, Xi\n",
			wantRows:  []Row{{"email": "x@y.io", "first_name": "Xi"}},
			wantLines: []int{2},
		},
		{
			name:      "blank lines skipped",
			input:     "email\n\na@b.co\n,\n\nc@d.co\n",
			wantRows:  []Row{{"email": "a@b.co"}, {"email": "c@d.co"}},
			wantLines: []int{3, 6},
		},
		{
			name:      "short row leaves trailing columns absent",
			input:     "email,first_name,last_name\na@b.co\n",
			wantRows:  []Row{{"email": "a@b.co"}},
			wantLines: []int{2},
		},
		{
			name:      "extra cells ignored",
			input:     "email\na@b.co,extra,more\n",
			wantRows:  []Row{{"email": "a@b.co"}},
			wantLines: []int{2},
		},
		{
			name:      "unknown columns kept but unused",
			input:     "company,email\nAcme,a@b.co\n",
			wantRows:  []Row{{"company": "Acme", "email": "a@b.co"}},
			wantLines: []int{2},
		},
		{
			name:      "excel text wrapper stripped",
			input:     "email,first_name\n\"=\"\"a@b.co\"\"\",\"=\"\"007\"\"\"\n",
			wantRows:  []Row{{"email": "a@b.co", "first_name": "007"}},
			wantLines: []int{2},
		},
		{
			name:      "quoted comma",
			input:     "email,first_name\na@b.co,\"Lee, Ann\"\n",
			wantRows:  []Row{{"email": "a@b.co", "first_name": "Lee, Ann"}},
			wantLines: []int{2},
		},
		{
			name:      "duplicate header first wins",
			input:     "email,email\na@b.co,z@z.co\n",
			wantRows:  []Row{{"email": "a@b.co"}},
			wantLines: []int{2},
		},
		{
			name:      "BOM before header",
			input:     "\ufeffemail\na@b.co\n",
			wantRows:  []Row{{"email": "a@b.co"}},
			wantLines: []int{2},
		},
		{
			name:      "header only",
			input:     "email,first_name\n",
			wantRows:  nil,
			wantLines: nil,
		},
		{
			name:      "CRLF line endings",
			input:     "email\r\na@b.co\r\n",
			wantRows:  []Row{{"email": "a@b.co"}},
			wantLines: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTable(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseTable() error = %v", err)
			}
			if !reflect.DeepEqual(got.Rows, tt.wantRows) {
				t.Errorf("Rows = %v, want %v", got.Rows, tt.wantRows)
			}
			if !reflect.DeepEqual(got.Lines, tt.wantLines) {
				t.Errorf("Lines = %v, want %v", got.Lines, tt.wantLines)
			}
		})
	}
}

func TestParseTable_Failures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "only blank lines", input: "\n\n\n"},
		{name: "unterminated quote", input: "email\n\"a@b.co\n"},
		{name: "bare quote in field", input: "email\na\"b@c.co\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			var pf *ParseFailure
			if !errors.As(err, &pf) {
				t.Errorf("error %T is not a *ParseFailure", err)
			}
		})
	}
}

func TestParseTable_EmptyFileSentinel(t *testing.T) {
	_, err := ParseTable(strings.NewReader(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a@b.co ", "a@b.co"},
		{`="123"`, "123"},
		{`=" x "`, "x"},
		{`="`, `="`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
