package mail

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

type fakeSES struct {
	mu     sync.Mutex
	inputs []*sesv2.SendEmailInput
	fail   map[string]error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	to := in.Destination.ToAddresses[0]
	if err := f.fail[to]; err != nil {
		return nil, err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-" + to)}, nil
}

func TestSESTransport_Send(t *testing.T) {
	api := &fakeSES{fail: map[string]error{"b@example.com": errors.New("MessageRejected: address blacklisted")}}
	tr := newSESTransport(api, Sender{Name: "Acme", Address: "news@acme.io"}, "tracking", 4)

	resp, err := tr.Send(context.Background(), request("a@example.com", "b@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AcceptedCount)
	assert.Equal(t, []string{"ses-a@example.com"}, resp.MessageIDs)

	require.Len(t, api.inputs, 2)
	in := api.inputs[0]
	assert.Equal(t, `"Acme" <news@acme.io>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, "tracking", aws.ToString(in.ConfigurationSetName))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, "cmp-1", aws.ToString(in.EmailTags[0].Value))
	assert.NotNil(t, in.Content.Simple.Body.Text)
	assert.NotNil(t, in.Content.Simple.Body.Html)
}

func TestSESTransport_AllRejected(t *testing.T) {
	cause := errors.New("AccessDenied")
	api := &fakeSES{fail: map[string]error{"a@example.com": cause}}
	tr := newSESTransport(api, Sender{Address: "news@acme.io"}, "", 1)

	_, err := tr.Send(context.Background(), request("a@example.com"))

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "ses", te.Provider)
	assert.ErrorIs(t, err, cause)
}
