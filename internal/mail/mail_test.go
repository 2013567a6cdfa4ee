package mail

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
)

func request(emails ...string) core.SendRequest {
	req := core.SendRequest{
		CampaignID: "cmp-1",
		Subject:    "Hello {{ first_name | default: \"there\" }}",
		Message:    "Hi {{ first_name }},\nsee you <soon>.",
	}
	for i, e := range emails {
		req.Recipients = append(req.Recipients, core.Recipient{Email: e, FirstName: strings.Repeat("N", i+1)})
	}
	return req
}

func TestCompose(t *testing.T) {
	req := request("a@example.com", "b@example.com")
	req.Recipients[1].FirstName = ""

	msgs, skipped, err := compose(req)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, msgs, 2)

	assert.Equal(t, "Hello N", msgs[0].Subject)
	assert.Equal(t, "Hi N,\nsee you <soon>.", msgs[0].Text)
	assert.Equal(t, "<p>Hi N,<br>see you &lt;soon&gt;.</p>", msgs[0].HTML)
	assert.Equal(t, "Hello there", msgs[1].Subject)
}

func TestCompose_BrokenPlaceholder(t *testing.T) {
	req := request("a@example.com")
	req.Message = "Hi {% if first_name %}"

	_, _, err := compose(req)
	assert.Error(t, err)
}

func TestSenderString(t *testing.T) {
	assert.Equal(t, `"Acme News" <news@acme.io>`, Sender{Name: "Acme News", Address: "news@acme.io"}.String())
	assert.Equal(t, "<news@acme.io>", Sender{Address: "news@acme.io"}.String())
}

func TestFanOut(t *testing.T) {
	msgs, _, err := compose(request("a@example.com", "bad@example.com", "c@example.com"))
	require.NoError(t, err)

	res := fanOut(context.Background(), "fake", 2, msgs, func(_ context.Context, m outgoing) (string, error) {
		if m.To.Email == "bad@example.com" {
			return "", errors.New("550 mailbox unavailable")
		}
		return "id-" + m.To.Email, nil
	})

	assert.Equal(t, 2, res.accepted)
	assert.Len(t, res.errs, 1)
	assert.ElementsMatch(t, []string{"id-a@example.com", "id-c@example.com"}, res.ids)

	resp, err := res.result("fake", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.AcceptedCount)
}

func TestFanOut_FatalStopsRemaining(t *testing.T) {
	emails := make([]string, 20)
	for i := range emails {
		emails[i] = strings.Repeat("x", i+1) + "@example.com"
	}
	msgs, _, err := compose(request(emails...))
	require.NoError(t, err)

	var calls atomic.Int32
	res := fanOut(context.Background(), "fake", 1, msgs, func(context.Context, outgoing) (string, error) {
		calls.Add(1)
		return "", &fatalError{err: &core.TransportError{Provider: "fake", Status: 401, Message: "Unauthorized"}}
	})

	assert.Equal(t, int32(1), calls.Load())
	_, err = res.result("fake", len(emails))

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 401, te.Status)
}

func TestFanOutResult_NothingAccepted(t *testing.T) {
	cause := errors.New("throttled")
	_, err := fanOutResult{errs: []error{cause}}.result("fake", 2)

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fake", te.Provider)
	assert.ErrorIs(t, err, cause)
}

func TestFanOut_FatalAfterAccepted(t *testing.T) {
	msgs, _, err := compose(request("a@example.com", "b@example.com", "c@example.com"))
	require.NoError(t, err)

	res := fanOut(context.Background(), "fake", 1, msgs, func(_ context.Context, m outgoing) (string, error) {
		if m.To.Email == "a@example.com" {
			return "id-a", nil
		}
		return "", &fatalError{err: &core.TransportError{Provider: "fake", Status: 401, Message: "Unauthorized"}}
	})
	require.Error(t, res.fatal)

	resp, err := res.result("fake", len(msgs))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AcceptedCount)
	assert.Equal(t, []string{"id-a"}, resp.MessageIDs)
}

func TestNewTransport(t *testing.T) {
	cfg := &config.Config{
		Mail:      config.MailConfig{FromAddress: "sender@example.com", FromName: "Sender"},
		SMTP:      config.SMTPConfig{Host: "smtp.example.com", Port: 587},
		SparkPost: config.SparkPostConfig{APIKey: "k", BaseURL: "https://api.sparkpost.test/api/v1"},
		Send:      config.SendConfig{Workers: 2},
	}

	cfg.Mail.Provider = config.ProviderSMTP
	tr, err := NewTransport(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "smtp", tr.Name())

	cfg.Mail.Provider = config.ProviderSparkPost
	tr, err = NewTransport(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "sparkpost", tr.Name())

	cfg.Mail.Provider = "pigeon"
	_, err = NewTransport(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
