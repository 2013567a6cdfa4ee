package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "invalid manual email",
			err:         fmt.Errorf("%w: %q", ErrInvalidEmail, "bad"),
			wantCode:    "REC001",
			wantMessage: "Invalid email format",
		},
		{
			name:        "stale remove index",
			err:         fmt.Errorf("%w: 4 (size 2)", ErrIndexOutOfRange),
			wantCode:    "REC003",
			wantMessage: "That recipient no longer exists",
		},
		{
			name:        "parse failure",
			err:         &ParseFailure{Line: 3, Err: errors.New(`extraneous " in field`)},
			wantCode:    "FILE002",
			wantMessage: "File is not a valid CSV",
		},
		{
			name:        "empty file",
			err:         ErrEmptyFile,
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "no recipients",
			err:         ValidateCampaign(Campaign{Subject: "s", Message: "m"}),
			wantCode:    "CMP001",
			wantMessage: "Please add at least one recipient.",
		},
		{
			name:        "blank subject",
			err:         ValidateCampaign(Campaign{Message: "m", Recipients: []Recipient{{Email: "a@b.co"}}}),
			wantCode:    "CMP002",
			wantMessage: "Please fill out the subject and message fields.",
		},
		{
			name:        "send limiter busy",
			err:         ErrTooManySends,
			wantCode:    "CMP004",
			wantMessage: "System is busy sending other campaigns",
		},
		{
			name:        "smtp auth failure",
			err:         &TransportError{Provider: "smtp", Err: errors.New("535 5.7.8 Username and Password not accepted")},
			wantCode:    "MAIL001",
			wantMessage: "The mail provider rejected our credentials",
		},
		{
			name:        "provider unreachable",
			err:         &TransportError{Provider: "sparkpost", Err: errors.New("dial tcp 10.0.0.1:443: connection refused")},
			wantCode:    "MAIL002",
			wantMessage: "Unable to reach the mail provider",
		},
		{
			name:        "generic transport failure",
			err:         &TransportError{Provider: "ses", Status: 502, Message: "bad gateway"},
			wantCode:    "MAIL005",
			wantMessage: "Sending failed",
		},
		{
			name:        "rate limit",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("INVALID CSV"),
			wantCode:    "FILE002",
			wantMessage: "File is not a valid CSV",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrInvalidEmail)

	expected := "Invalid email format (Code: REC001). Use the form name@example.com"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrNoRecipients, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("load: %w", ErrEmptyFile)
		userErr := NewUserError(techErr)

		if userErr.Error() != "The uploaded file is empty" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrEmptyFile) {
			t.Error("Unwrap() should return original error")
		}
	})
}
