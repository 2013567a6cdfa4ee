package views

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestRecipientList(t *testing.T) {
	assert.Equal(t, `<p class="empty">No recipients added yet.</p>`, render(t, RecipientList(nil)))

	out := render(t, RecipientList([]core.Recipient{
		{Email: "ann@example.com", FirstName: "Ann", LastName: "<Lee>"},
		{Email: "bob@example.com"},
	}))
	assert.Contains(t, out, "2 recipient(s)")
	assert.Contains(t, out, "Ann &lt;Lee&gt;")
	assert.NotContains(t, out, "<Lee>")
	assert.Contains(t, out, `hx-delete="/api/recipients/1"`)
}

func TestInvalidList(t *testing.T) {
	assert.Empty(t, render(t, InvalidList(nil)))

	out := render(t, InvalidList([]core.InvalidEntry{
		{Reason: core.ReasonMissingEmail, Line: 3},
		{Email: "nope", FirstName: "Bo", Reason: core.ReasonInvalidFormat},
	}))
	assert.Contains(t, out, "Invalid Entries (2)")
	assert.Contains(t, out, "<strong>Name:</strong> N/A")
	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "Email address is missing.")
	assert.Contains(t, out, "(line 3)")
	assert.Contains(t, out, "Invalid email format.")
	assert.Contains(t, out, `href="/api/recipients/invalid.csv"`)
}

func TestDashboard(t *testing.T) {
	out := render(t, Dashboard(core.Summarize(10, 7)))
	assert.Contains(t, out, "Campaign sent successfully!")
	for _, card := range []string{
		`<span class="label">TOTAL</span><span class="value">10</span>`,
		`<span class="label">SENT</span><span class="value">7</span>`,
		`<span class="label">FAILED</span><span class="value">3</span>`,
		`<span class="label">OPENS</span><span class="value">1</span>`,
	} {
		assert.Contains(t, out, card)
	}
	assert.Contains(t, out, "Status: Completed")
	assert.Contains(t, out, "estimated")
}

func TestEmailStatus(t *testing.T) {
	out := render(t, EmailStatus(core.EmailInvalid))
	assert.Contains(t, out, `class="email-status invalid">Invalid email format.</span>`)
	assert.Contains(t, out, `hx-swap-oob="true" disabled>`)

	out = render(t, EmailStatus(core.EmailValid))
	assert.NotContains(t, out, "disabled")
}

func TestPanels(t *testing.T) {
	assert.Equal(t,
		`<div id="recipients-panel" sse-swap="recipients"><p class="empty">No recipients added yet.</p></div>`,
		render(t, RecipientsPanel(nil, false)))
	assert.Equal(t,
		`<div id="invalid-panel" sse-swap="invalid" hx-swap-oob="true"></div>`,
		render(t, InvalidPanel(nil, true)))
}

func TestErrorAlert(t *testing.T) {
	out := render(t, ErrorAlert("Bad <thing>", "", "REC001"))
	assert.Contains(t, out, "Bad &lt;thing&gt;")
	assert.NotContains(t, out, `class="action"`)
	assert.Contains(t, out, "Code: REC001")
}

func TestPage(t *testing.T) {
	summary := core.Summarize(2, 2)
	out := render(t, Page(PageData{
		Templates:  core.AllTemplates(),
		Recipients: []core.Recipient{{Email: "ann@example.com"}},
		Summary:    &summary,
	}))
	assert.Contains(t, out, "<title>Bulk Mail</title>")
	assert.Contains(t, out, `sse-connect="/api/recipients/events"`)
	assert.Contains(t, out, "ann@example.com")
	assert.Contains(t, out, `<option value="welcome">Welcome</option>`)
	assert.Contains(t, out, "Campaign sent successfully!")
}

func TestComposeFields_Escapes(t *testing.T) {
	out := render(t, ComposeFields(core.RenderedTemplate{Subject: `Say "hi"`, Message: "a</textarea>b"}))
	assert.Contains(t, out, `value="Say &#34;hi&#34;"`)
	assert.Contains(t, out, "a&lt;/textarea&gt;b")
}
