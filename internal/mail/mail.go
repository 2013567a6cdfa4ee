// Package mail implements core.Transport for SMTP, SparkPost and Amazon SES.
//
// Every provider sends one message per recipient. A rejected address then
// only fails its own message, and placeholders such as {{ first_name }} can
// be filled in per recipient. The accepted count reported back to core is the
// number of messages the provider took.
package mail

import (
	"context"
	"errors"
	"html"
	netmail "net/mail"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
)

// DefaultWorkers is the per-campaign fan-out when none is configured.
const DefaultWorkers = 8

// Sender is the From identity for every outgoing message.
type Sender struct {
	Name    string
	Address string
}

// String formats the sender as a From header value, e.g. "Acme" <news@acme.io>.
func (s Sender) String() string {
	return (&netmail.Address{Name: s.Name, Address: s.Address}).String()
}

// outgoing is one rendered message for one recipient.
type outgoing struct {
	To      core.Recipient
	Subject string
	Text    string
	HTML    string
}

// compose renders the request into one message per recipient. A recipient
// whose text fails to render is skipped and reported in the returned errors.
func compose(req core.SendRequest) ([]outgoing, []error, error) {
	subject, err := core.CompileText(req.Subject)
	if err != nil {
		return nil, nil, err
	}
	body, err := core.CompileText(req.Message)
	if err != nil {
		return nil, nil, err
	}

	out := make([]outgoing, 0, len(req.Recipients))
	var skipped []error
	for _, r := range req.Recipients {
		s, err := subject.For(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		text, err := body.For(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		out = append(out, outgoing{To: r, Subject: s, Text: text, HTML: textToHTML(text)})
	}
	return out, skipped, nil
}

// textToHTML escapes text and keeps its line breaks.
func textToHTML(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}

// fatalError stops the remaining fan-out, e.g. on rejected credentials.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// sendFunc delivers one message and returns the provider's message id.
type sendFunc func(ctx context.Context, msg outgoing) (string, error)

// fanOutResult collects what a fan-out achieved.
type fanOutResult struct {
	accepted int
	ids      []string
	errs     []error
	fatal    error
}

// fanOut sends msgs with at most workers in flight. Per-message failures are
// collected; a *fatalError cancels the messages not yet started.
func fanOut(ctx context.Context, provider string, workers int, msgs []outgoing, send sendFunc) fanOutResult {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu  sync.Mutex
		res fanOutResult
	)
	for _, msg := range msgs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			id, err := send(gctx, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.errs = append(res.errs, err)
				logging.FromContext(ctx).Warn("message not accepted",
					"provider", provider,
					"to", logging.RedactEmail(msg.To.Email),
					"error", err,
				)
				var fe *fatalError
				if errors.As(err, &fe) {
					return fe
				}
				return nil
			}
			res.accepted++
			if id != "" {
				res.ids = append(res.ids, id)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var fe *fatalError
		if errors.As(err, &fe) {
			res.fatal = fe.err
		}
	}
	return res
}

// result turns a fan-out into the transport's answer. Nothing accepted out of
// a non-empty batch is a transport failure. A fatal error after some messages
// went out still reports those, so the campaign is not resent to them.
func (r fanOutResult) result(provider string, total int) (*core.SendResponse, error) {
	if r.accepted == 0 && total > 0 {
		cause := r.fatal
		if cause == nil && len(r.errs) > 0 {
			cause = r.errs[0]
		}
		if cause == nil {
			cause = errors.New("no message was accepted")
		}
		return nil, asTransportError(provider, cause)
	}
	return &core.SendResponse{AcceptedCount: r.accepted, MessageIDs: r.ids}, nil
}

func asTransportError(provider string, err error) error {
	var te *core.TransportError
	if errors.As(err, &te) {
		return te
	}
	return &core.TransportError{Provider: provider, Err: err}
}
