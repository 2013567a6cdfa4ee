package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
	"golang.org/x/oauth2"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
)

type fakeSMTPClient struct {
	dialErr error
	sendErr error
	sent    []*gomail.Msg
	closed  bool
}

func (f *fakeSMTPClient) DialWithContext(context.Context) error { return f.dialErr }

func (f *fakeSMTPClient) Send(msgs ...*gomail.Msg) error {
	f.sent = append(f.sent, msgs...)
	return f.sendErr
}

func (f *fakeSMTPClient) Close() error {
	f.closed = true
	return nil
}

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) {
	return nil, errors.New("oauth2: invalid_grant")
}

func newTestSMTP(t *testing.T, cfg config.SMTPConfig, client *fakeSMTPClient) (*SMTPTransport, *string) {
	t.Helper()
	tr := NewSMTPTransport(context.Background(), cfg, Sender{Name: "Acme", Address: "news@acme.io"})
	var secret string
	tr.newClient = func(s string) (smtpClient, error) {
		secret = s
		return client, nil
	}
	return tr, &secret
}

func TestSMTPTransport_Send(t *testing.T) {
	client := &fakeSMTPClient{}
	tr, secret := newTestSMTP(t, config.SMTPConfig{Host: "smtp.example.com", Port: 587, Password: "pw"}, client)

	resp, err := tr.Send(context.Background(), request("a@example.com", "b@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.AcceptedCount)
	assert.Len(t, resp.MessageIDs, 2)
	assert.Equal(t, "pw", *secret)
	assert.True(t, client.closed)
	require.Len(t, client.sent, 2)

	var buf bytes.Buffer
	_, err = client.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Hello N")
	assert.Contains(t, raw, "cmp-1")
	assert.Contains(t, raw, "<a@example.com>")
	assert.Contains(t, raw, "text/html")
}

func TestSMTPTransport_XOAUTH2(t *testing.T) {
	client := &fakeSMTPClient{}
	cfg := config.SMTPConfig{Host: "smtp.gmail.com", Port: 465, ClientID: "id", ClientSecret: "s", RefreshToken: "rt"}
	tr, secret := newTestSMTP(t, cfg, client)
	tr.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.access"})

	_, err := tr.Send(context.Background(), request("a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", *secret)
	assert.Equal(t, "news@acme.io", tr.cfg.Username)
}

func TestSMTPTransport_TokenRefreshFails(t *testing.T) {
	client := &fakeSMTPClient{}
	cfg := config.SMTPConfig{Host: "smtp.gmail.com", Port: 465, ClientID: "id", RefreshToken: "rt"}
	tr, _ := newTestSMTP(t, cfg, client)
	tr.tokens = failingTokens{}

	_, err := tr.Send(context.Background(), request("a@example.com"))

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "authentication failed")
	assert.Empty(t, client.sent)
	assert.Equal(t, "MAIL001", core.MapError(err).Code)
}

func TestSMTPTransport_DialFails(t *testing.T) {
	client := &fakeSMTPClient{dialErr: errors.New("dial tcp: connection refused")}
	tr, _ := newTestSMTP(t, config.SMTPConfig{Host: "smtp.example.com", Port: 25}, client)

	_, err := tr.Send(context.Background(), request("a@example.com"))

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "smtp", te.Provider)
	assert.Empty(t, client.sent)
}

func TestSMTPTransport_ConnectionDropsDuringSend(t *testing.T) {
	client := &fakeSMTPClient{sendErr: errors.New("EOF")}
	tr, _ := newTestSMTP(t, config.SMTPConfig{Host: "smtp.example.com", Port: 25}, client)

	_, err := tr.Send(context.Background(), request("a@example.com", "b@example.com"))

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, client.closed)
}
