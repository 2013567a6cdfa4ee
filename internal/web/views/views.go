// Package views renders the HTML page and the HTMX fragments.
//
// Components are written in templ; the *_templ.go files are generated from
// the .templ sources next to them. Handlers, the SSE stream and tests all
// render the resulting templ.Components the same way.
package views

//go:generate templ generate

import (
	"strconv"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

// Element ids targeted by HTMX swaps and SSE events.
const (
	RecipientsPanelID = "recipients-panel"
	InvalidPanelID    = "invalid-panel"
	DashboardID       = "dashboard"
	EmailStatusID     = "email-status"
	AddButtonID       = "add-recipient"
)

// PageData is everything the full page needs on first load.
type PageData struct {
	Title      string
	Templates  []core.MessageTemplate
	Recipients []core.Recipient
	Invalid    []core.InvalidEntry
	Summary    *core.DeliverySummary
}

func (d PageData) title() string {
	if d.Title == "" {
		return "Bulk Mail"
	}
	return d.Title
}

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem}
section{margin-bottom:2rem}.alert.error{border:1px solid #c33;padding:.5rem 1rem;color:#900}
.cards{display:flex;gap:1rem}.card{border:1px solid #ccc;padding:1rem;min-width:6rem}
.card .label{display:block;font-size:.8rem;color:#666}.card .value{font-size:1.6rem}
.recipients .name{margin-right:.4rem}
.email-status.valid{color:#080}.email-status.invalid{color:#c33}.empty{color:#666}`

// htmxConfig lets error fragments swap in; the server retargets them to #errors.
const htmxConfig = `{"responseHandling":[{"code":"204","swap":false},{"code":"[23]..","swap":true},{"code":"[45]..","swap":true,"error":true}]}`

// removePath is the DELETE target for the recipient at index i.
func removePath(i int) string {
	return "/api/recipients/" + strconv.Itoa(i)
}
