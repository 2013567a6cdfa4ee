package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAllTemplates(t *testing.T) {
	got := AllTemplates()
	keys := make([]string, len(got))
	for i, tpl := range got {
		keys[i] = tpl.Key
	}
	want := "welcome,newsletter,promotion"
	if strings.Join(keys, ",") != want {
		t.Errorf("AllTemplates() keys = %v, want %s", keys, want)
	}
	if TemplateCount() != 3 {
		t.Errorf("TemplateCount() = %d, want 3", TemplateCount())
	}
}

func TestRegisterTemplate_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate key")
		}
	}()
	RegisterTemplate(MessageTemplate{Key: "welcome"})
}

func TestRenderTemplate(t *testing.T) {
	vars := TemplateVars{SenderName: "Acme", Now: time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)}

	t.Run("campaign variables filled", func(t *testing.T) {
		got, err := RenderTemplate("newsletter", vars)
		if err != nil {
			t.Fatalf("RenderTemplate() error = %v", err)
		}
		if got.Subject != "Monthly Newsletter: Your March Update" {
			t.Errorf("Subject = %q", got.Subject)
		}
	})

	t.Run("recipient placeholders survive selection", func(t *testing.T) {
		got, err := RenderTemplate("welcome", vars)
		if err != nil {
			t.Fatalf("RenderTemplate() error = %v", err)
		}
		if !strings.HasPrefix(got.Message, `Hi {{ first_name | default: "there" }}!`) {
			t.Errorf("Message = %q", got.Message)
		}
	})

	t.Run("no selection clears fields", func(t *testing.T) {
		got, err := RenderTemplate("", vars)
		if err != nil {
			t.Fatalf("RenderTemplate() error = %v", err)
		}
		if got.Subject != "" || got.Message != "" {
			t.Errorf("got %+v, want blank", got)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := RenderTemplate("nope", vars)
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Errorf("error = %v, want ErrTemplateNotFound", err)
		}
	})
}

func TestPersonalize(t *testing.T) {
	tests := []struct {
		name string
		text string
		r    Recipient
		want string
	}{
		{
			name: "plain text unchanged",
			text: "Hello everyone, 100% off {not liquid}",
			r:    Recipient{Email: "a@b.co"},
			want: "Hello everyone, 100% off {not liquid}",
		},
		{
			name: "first name filled",
			text: "Hi {{ first_name }}!",
			r:    Recipient{Email: "a@b.co", FirstName: "Ann"},
			want: "Hi Ann!",
		},
		{
			name: "default when missing",
			text: `Hi {{ first_name | default: "there" }}!`,
			r:    Recipient{Email: "a@b.co"},
			want: "Hi there!",
		},
		{
			name: "full name and email",
			text: "{{ name }} <{{ email }}>",
			r:    Recipient{Email: "a@b.co", FirstName: "Ann", LastName: "Lee"},
			want: "Ann Lee <a@b.co>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Personalize(tt.text, tt.r)
			if err != nil {
				t.Fatalf("Personalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Personalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompileText_SyntaxError(t *testing.T) {
	if _, err := CompileText("Hi {% if first_name %}friend"); err == nil {
		t.Error("expected parse error for unclosed if block")
	}
}

func TestCompileText_UnknownVariable(t *testing.T) {
	for _, text := range []string{"Use code {{ SPECIAL20 }} today", "Hi {{ firstName }}", "{{ recipient.email }}"} {
		if _, err := CompileText(text); err == nil {
			t.Errorf("CompileText(%q) succeeded, want undefined variable error", text)
		}
	}
}

func TestSelectedTemplateRoundTrip(t *testing.T) {
	sel, err := RenderTemplate("promotion", TemplateVars{SenderName: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	text, err := CompileText(sel.Message)
	if err != nil {
		t.Fatal(err)
	}
	got, err := text.For(Recipient{Email: "z@z.io", FirstName: "Zed"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "Hi Zed! ") || !strings.Contains(got, "SPECIAL20") {
		t.Errorf("personalized message = %q", got)
	}
}
