package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
)

const (
	smtpName = "smtp"

	// gmailScope grants SMTP access to a Gmail account.
	gmailScope = "https://mail.google.com/"

	headerCampaignID gomail.Header = "X-Campaign-ID"
)

// smtpClient is the part of *gomail.Client the transport uses.
type smtpClient interface {
	DialWithContext(ctx context.Context) error
	Send(msgs ...*gomail.Msg) error
	Close() error
}

// SMTPTransport sends every message of a campaign over one SMTP connection.
// With an OAuth2 refresh token it logs in with XOAUTH2, refreshing the access
// token as needed.
type SMTPTransport struct {
	cfg    config.SMTPConfig
	from   Sender
	tokens oauth2.TokenSource

	newClient func(secret string) (smtpClient, error)
}

// NewSMTPTransport creates a transport for cfg. ctx scopes the OAuth2 token
// refreshes and should live as long as the transport.
func NewSMTPTransport(ctx context.Context, cfg config.SMTPConfig, from Sender) *SMTPTransport {
	t := &SMTPTransport{cfg: cfg, from: from}
	if cfg.Username == "" {
		t.cfg.Username = from.Address
	}
	if cfg.AuthMode() == config.SMTPAuthXOAUTH2 {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailScope},
		}
		t.tokens = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}
	t.newClient = t.dial
	return t
}

// Name implements core.Transport.
func (t *SMTPTransport) Name() string { return smtpName }

func (t *SMTPTransport) dial(secret string) (smtpClient, error) {
	opts := []gomail.Option{gomail.WithTimeout(t.cfg.Timeout)}
	if t.cfg.Port == gomail.DefaultPortSSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	}
	opts = append(opts, gomail.WithPort(t.cfg.Port))

	switch t.cfg.AuthMode() {
	case config.SMTPAuthXOAUTH2:
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthXOAUTH2),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(secret),
		)
	case config.SMTPAuthPlain:
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(secret),
		)
	}

	return gomail.NewClient(t.cfg.Host, opts...)
}

// secret returns the password or a fresh OAuth2 access token.
func (t *SMTPTransport) secret() (string, error) {
	if t.tokens == nil {
		return t.cfg.Password, nil
	}
	tok, err := t.tokens.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Send implements core.Transport.
func (t *SMTPTransport) Send(ctx context.Context, req core.SendRequest) (*core.SendResponse, error) {
	log := logging.FromContext(ctx)

	outs, skipped, err := compose(req)
	if err != nil {
		return nil, &core.TransportError{Provider: smtpName, Err: err}
	}
	for _, err := range skipped {
		log.Warn("message not rendered", "provider", smtpName, "error", err)
	}

	msgs := make([]*gomail.Msg, 0, len(outs))
	for _, o := range outs {
		m, err := t.message(req.CampaignID, o)
		if err != nil {
			log.Warn("message not built",
				"provider", smtpName,
				"to", logging.RedactEmail(o.To.Email),
				"error", err,
			)
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		return nil, &core.TransportError{Provider: smtpName, Message: "no message could be built"}
	}

	secret, err := t.secret()
	if err != nil {
		return nil, &core.TransportError{
			Provider: smtpName,
			Message:  "authentication failed: could not refresh access token",
			Err:      err,
		}
	}

	client, err := t.newClient(secret)
	if err != nil {
		return nil, &core.TransportError{Provider: smtpName, Err: err}
	}
	if err := client.DialWithContext(ctx); err != nil {
		return nil, &core.TransportError{Provider: smtpName, Message: "connect " + t.cfg.Addr(), Err: err}
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Debug("smtp close", "error", err)
		}
	}()

	sendErr := client.Send(msgs...)
	accepted := countAccepted(msgs, sendErr)
	if sendErr != nil {
		log.Warn("smtp send incomplete",
			"provider", smtpName,
			"accepted", accepted,
			"total", len(req.Recipients),
			"error", sendErr,
		)
		if accepted == 0 {
			return nil, &core.TransportError{Provider: smtpName, Err: sendErr}
		}
	}

	ids := make([]string, 0, accepted)
	for _, m := range msgs {
		if !m.HasSendError() {
			ids = append(ids, m.GetMessageID())
		}
	}
	return &core.SendResponse{AcceptedCount: accepted, MessageIDs: ids}, nil
}

func (t *SMTPTransport) message(campaignID string, o outgoing) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	var err error
	if t.from.Name != "" {
		err = m.FromFormat(t.from.Name, t.from.Address)
	} else {
		err = m.From(t.from.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(o.To.Email); err != nil {
		return nil, err
	}

	m.Subject(o.Subject)
	m.SetMessageID()
	m.SetDate()
	if campaignID != "" {
		m.SetGenHeader(headerCampaignID, campaignID)
	}
	m.SetBodyString(gomail.TypeTextPlain, o.Text)
	m.AddAlternativeString(gomail.TypeTextHTML, o.HTML)
	return m, nil
}

// countAccepted counts messages the server took. When Send fails before any
// message is marked, the connection broke and nothing is counted.
func countAccepted(msgs []*gomail.Msg, sendErr error) int {
	marked := false
	accepted := 0
	for _, m := range msgs {
		if m.HasSendError() {
			marked = true
			continue
		}
		accepted++
	}
	if sendErr != nil && !marked {
		return 0
	}
	return accepted
}
