package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(out)
}

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "export with BOM", input: append(append([]byte{}, bom...), "email\na@b.co"...), want: "email\na@b.co"},
		{name: "no BOM", input: []byte("email\na@b.co"), want: "email\na@b.co"},
		{name: "only BOM", input: bom, want: ""},
		{name: "empty", input: nil, want: ""},
		{name: "BOM prefix kept when incomplete", input: []byte{0xEF, 0xBB, 'e'}, want: "\xEF\xBBe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readAll(t, NewBOMSkippingReader(bytes.NewReader(tt.input))); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "ascii header", input: []byte("email,first_name"), want: "email,first_name"},
		{name: "valid multibyte names", input: []byte("zoë@example.com,Zoë"), want: "zoë@example.com,Zoë"},
		{name: "latin-1 byte in address", input: []byte("caf\xe9@x.com,Ann"), want: "caf�@x.com,Ann"},
		{name: "stray continuation byte", input: []byte{'a', 0x80, 'b'}, want: "a�b"},
		{name: "truncated sequence at EOF", input: []byte{'a', 0xC3}, want: "a�"},
		{name: "empty", input: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readAll(t, NewUTF8Sanitizer(bytes.NewReader(tt.input))); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitRunes(t *testing.T) {
	input := "email,first_name\njosé@exämple.com,José\n日本@example.jp,日本\n"

	got := readAll(t, NewUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input))))
	if got != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestUTF8Sanitizer_SmallReadBuffer(t *testing.T) {
	input := "caf\xe9@x.com"
	r := NewUTF8Sanitizer(strings.NewReader(input))

	var out []byte
	buf := make([]byte, 2)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if want := "caf�@x.com"; string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestParseTable_BOMBeforeEmailHeader(t *testing.T) {
	input := append(append([]byte{}, bom...), "Email,First_Name\nann@example.com,Ann\n"...)

	table, err := ParseTable(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if table.Header[0] != "email" {
		t.Fatalf("header[0] = %q, want %q", table.Header[0], "email")
	}
	valid, invalid := ValidateRows(table.Rows)
	if len(valid) != 1 || len(invalid) != 0 {
		t.Fatalf("valid = %v, invalid = %v", valid, invalid)
	}
	if valid[0].Email != "ann@example.com" {
		t.Errorf("Email = %q", valid[0].Email)
	}
}

func TestParseTable_SplitRuneInsideAddress(t *testing.T) {
	input := "email,first_name\nzoë@exämple.com,Zoë\n"

	table, err := ParseTable(iotest.OneByteReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	valid, _ := ValidateRows(table.Rows)
	if len(valid) != 1 || valid[0].Email != "zoë@exämple.com" || valid[0].FirstName != "Zoë" {
		t.Errorf("valid = %+v", valid)
	}
}

func TestParseTable_Latin1AddressRejected(t *testing.T) {
	input := "email,first_name\ncaf\xe9@x.com,Ren\xe9\nok@x.com,Ok\n"

	table, err := ParseTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	valid, invalid := ValidateRows(table.Rows)
	if len(valid) != 1 || valid[0].Email != "ok@x.com" {
		t.Errorf("valid = %+v", valid)
	}
	if len(invalid) != 1 || invalid[0].Reason != ReasonInvalidFormat {
		t.Fatalf("invalid = %+v", invalid)
	}
	if invalid[0].Email != "caf�@x.com" {
		t.Errorf("invalid email = %q", invalid[0].Email)
	}
}
