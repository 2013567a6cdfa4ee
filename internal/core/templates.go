package core

// templates.go renders the canned subject/message pairs and personalizes
// outgoing text per recipient. Both use Liquid.
//
// Templates are rendered twice. Selecting a template fills the form using
// campaign-wide variables (month, year, sender_name). Per-recipient
// placeholders are wrapped in {% raw %} in the catalog so they survive that
// first pass and are filled in by Personalize at send time.

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"
)

// ErrTemplateNotFound is returned for an unknown template key.
var ErrTemplateNotFound = errors.New("template not found")

// MessageTemplate is a canned subject and message.
type MessageTemplate struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Subject string `json:"-"`
	Message string `json:"-"`
	Order   int    `json:"-"`
}

// RenderedTemplate is what the form receives on selection.
type RenderedTemplate struct {
	Key     string `json:"key"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// TemplateVars are the campaign-wide values available when a template is selected.
type TemplateVars struct {
	SenderName string
	Now        time.Time
}

func (v TemplateVars) bindings() liquid.Bindings {
	now := v.Now
	if now.IsZero() {
		now = time.Now()
	}
	return liquid.Bindings{
		"month":       now.Month().String(),
		"year":        now.Year(),
		"sender_name": v.SenderName,
	}
}

func init() {
	RegisterTemplate(MessageTemplate{
		Key:     "welcome",
		Label:   "Welcome",
		Order:   1,
		Subject: "Welcome to Our Platform!",
		Message: `Hi {% raw %}{{ first_name | default: "there" }}{% endraw %}! Welcome to our platform. ` +
			`We're excited to have you join our community and look forward to seeing what you'll create.`,
	})
	RegisterTemplate(MessageTemplate{
		Key:     "newsletter",
		Label:   "Newsletter",
		Order:   2,
		Subject: "Monthly Newsletter: Your {{ month }} Update",
		Message: `Hello {% raw %}{{ first_name | default: "there" }}{% endraw %}! Here is your monthly update. ` +
			`In this issue, we'll cover the latest news, features, and tips to help you get the most out of our service.`,
	})
	RegisterTemplate(MessageTemplate{
		Key:     "promotion",
		Label:   "Promotion",
		Order:   3,
		Subject: "Don't Miss Out! A Special Offer Just For You!",
		Message: `Hi {% raw %}{{ first_name | default: "there" }}{% endraw %}! We wanted to let you know about a special promotion for our valued users. ` +
			`Get 20% off your next purchase when you use the code: SPECIAL20.`,
	})
}

var (
	engine     = liquid.NewEngine()
	textEngine = newTextEngine()

	// catalog sources only; user text goes through CompileText
	parseCache sync.Map
)

// RenderTemplate fills a catalog template with campaign-wide variables.
// An empty key selects no template and yields a blank subject and message.
func RenderTemplate(key string, vars TemplateVars) (RenderedTemplate, error) {
	if key == "" {
		return RenderedTemplate{}, nil
	}
	t, ok := GetTemplate(key)
	if !ok {
		return RenderedTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}

	b := vars.bindings()
	subject, err := render(t.Subject, b)
	if err != nil {
		return RenderedTemplate{}, fmt.Errorf("render %s subject: %w", key, err)
	}
	message, err := render(t.Message, b)
	if err != nil {
		return RenderedTemplate{}, fmt.Errorf("render %s message: %w", key, err)
	}
	return RenderedTemplate{Key: key, Subject: subject, Message: message}, nil
}

// PersonalizedText is outgoing text compiled once per campaign and filled
// in per recipient.
type PersonalizedText struct {
	raw string
	tpl *liquid.Template
}

// newTextEngine returns the engine for user-written text. Only recipient
// fields are bound, and any other variable is an error rather than blank.
func newTextEngine() *liquid.Engine {
	e := liquid.NewEngine()
	e.StrictVariables()
	return e
}

// CompileText parses text for per-recipient rendering. Text without any
// Liquid markup is passed through unchanged by For. A variable other than
// email, first_name, last_name or name is rejected here, so a typo never
// drops words from a sent message.
func CompileText(text string) (*PersonalizedText, error) {
	p := &PersonalizedText{raw: text}
	if !strings.Contains(text, "{{") && !strings.Contains(text, "{%") {
		return p, nil
	}
	tpl, err := textEngine.ParseString(text)
	if err != nil {
		return nil, err
	}
	if _, err := tpl.RenderString(recipientBindings(Recipient{})); err != nil {
		return nil, err
	}
	p.tpl = tpl
	return p, nil
}

// For renders the text for one recipient.
func (p *PersonalizedText) For(r Recipient) (string, error) {
	if p.tpl == nil {
		return p.raw, nil
	}
	out, err := p.tpl.RenderString(recipientBindings(r))
	if err != nil {
		return "", err
	}
	return out, nil
}

// Personalize fills per-recipient placeholders in text.
func Personalize(text string, r Recipient) (string, error) {
	p, err := CompileText(text)
	if err != nil {
		return "", err
	}
	return p.For(r)
}

func recipientBindings(r Recipient) liquid.Bindings {
	return liquid.Bindings{
		"email":      r.Email,
		"first_name": r.FirstName,
		"last_name":  r.LastName,
		"name":       r.DisplayName(),
	}
}

func render(source string, b liquid.Bindings) (string, error) {
	var tpl *liquid.Template
	if cached, ok := parseCache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := engine.ParseString(source)
		if err != nil {
			return "", err
		}
		parseCache.Store(source, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(b)
	if err != nil {
		return "", err
	}
	return out, nil
}
