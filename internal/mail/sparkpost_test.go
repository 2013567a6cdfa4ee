package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

type sparkPostStub struct {
	mu   sync.Mutex
	got  []sparkPostTransmission
	auth []string
}

func (s *sparkPostStub) handler(status func(to string) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tx sparkPostTransmission
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.got = append(s.got, tx)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		to := tx.Recipients[0].Address.Email
		code := status(to)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code >= 400 {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Unauthorized.","description":"bad key"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":{"total_rejected_recipients":0,"total_accepted_recipients":1,"id":"tx-` + to + `"}}`))
	}
}

func TestSparkPostTransport_Send(t *testing.T) {
	stub := &sparkPostStub{}
	srv := httptest.NewServer(stub.handler(func(to string) int {
		if to == "bounce@example.com" {
			return http.StatusUnprocessableEntity
		}
		return http.StatusOK
	}))
	defer srv.Close()

	tr := NewSparkPostTransport("secret-key", srv.URL+"/", Sender{Name: "Acme", Address: "news@acme.io"}, 2, time.Second)
	resp, err := tr.Send(context.Background(), request("a@example.com", "bounce@example.com", "c@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.AcceptedCount)
	assert.Len(t, resp.MessageIDs, 2)

	require.Len(t, stub.got, 3)
	for _, a := range stub.auth {
		assert.Equal(t, "secret-key", a)
	}
	for _, tx := range stub.got {
		assert.Equal(t, "news@acme.io", tx.Content.From.Email)
		assert.Equal(t, "Acme", tx.Content.From.Name)
		assert.Equal(t, "cmp-1", tx.Metadata["campaign_id"])
		assert.NotEmpty(t, tx.Content.HTML)
		assert.Len(t, tx.Recipients, 1)
	}
}

func TestSparkPostTransport_Unauthorized(t *testing.T) {
	stub := &sparkPostStub{}
	srv := httptest.NewServer(stub.handler(func(string) int { return http.StatusUnauthorized }))
	defer srv.Close()

	tr := NewSparkPostTransport("wrong", srv.URL, Sender{Address: "news@acme.io"}, 1, time.Second)
	_, err := tr.Send(context.Background(), request("a@example.com", "b@example.com", "c@example.com"))

	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.Equal(t, "Unauthorized.: bad key", te.Message)
	assert.Len(t, stub.got, 1, "fan-out continued after bad credentials")
}
