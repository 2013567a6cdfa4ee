package web

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
)

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSSE(&buf, "recipients", []byte("<ul>\n<li>a</li>\n</ul>")))
	assert.Equal(t, "event: recipients\ndata: <ul>\ndata: <li>a</li>\ndata: </ul>\n\n", buf.String())
}

func TestBroadcaster_CoalescesLatest(t *testing.T) {
	b := newBroadcaster()
	sub := b.subscribe()

	b.RenderRecipients([]core.Recipient{{Email: "a@example.com"}})
	b.RenderInvalid(nil)
	b.RenderRecipients([]core.Recipient{{Email: "a@example.com"}, {Email: "b@example.com"}})

	events := sub.drain()
	require.Len(t, events, 2)
	assert.Equal(t, eventRecipients, events[0].name)
	assert.Contains(t, string(events[0].data), "2 recipient(s)")
	assert.Equal(t, eventInvalid, events[1].name)
	assert.Empty(t, events[1].data)

	assert.Empty(t, sub.drain())

	b.unsubscribe(sub)
	b.RenderSummary(core.Summarize(1, 1))
	assert.Empty(t, sub.drain())
}

func TestBroadcaster_StoreMutationsPublish(t *testing.T) {
	b := newBroadcaster()
	sub := b.subscribe()
	store := core.NewRecipientStore(b)

	_, err := store.AddManual("ann@example.com", "Ann", "")
	require.NoError(t, err)

	select {
	case <-sub.notify:
	default:
		t.Fatal("expected a notification")
	}
	events := sub.drain()
	require.NotEmpty(t, events)
	assert.Contains(t, string(events[0].data), "ann@example.com")
}

func TestSessionManager_EvictIdle(t *testing.T) {
	m := newSessionManager(config.SessionConfig{CookieName: "s", IdleTTL: time.Hour})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	idle := m.get("")
	busy := m.get("")
	fresh := m.get("")
	require.NoError(t, busy.beginSend())

	now = now.Add(90 * time.Minute)
	assert.Same(t, fresh, m.get(fresh.id))

	assert.Equal(t, 1, m.evictIdle())
	assert.Equal(t, 2, m.count())

	select {
	case <-idle.events.closed:
	default:
		t.Fatal("evicted session's stream should be closed")
	}

	busy.endSend(nil)
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2, m.evictIdle())
}

func TestSessionManager_UnknownIDGetsNewSession(t *testing.T) {
	m := newSessionManager(config.SessionConfig{CookieName: "s"})
	s := m.get("forged")
	assert.NotEqual(t, "forged", s.id)
	assert.Equal(t, 2*time.Hour, m.ttl)
}

func TestSession_BeginSend(t *testing.T) {
	s := &session{}
	require.NoError(t, s.beginSend())
	assert.ErrorIs(t, s.beginSend(), core.ErrSendInProgress)

	summary := core.Summarize(3, 2)
	s.endSend(&summary)
	assert.NoError(t, s.beginSend())
	assert.Equal(t, 2, s.summary.Sent)
}

func TestRecipientEvents_Stream(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/recipients/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == srv.cfg.Session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	sc := bufio.NewScanner(resp.Body)
	readUntil := func(want string) {
		t.Helper()
		for sc.Scan() {
			if strings.Contains(sc.Text(), want) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", want, sc.Err())
	}

	readUntil("No recipients added yet.")
	readUntil("event: invalid")

	add, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/recipients",
		strings.NewReader(`{"email":"ann@example.com"}`))
	require.NoError(t, err)
	add.Header.Set("Content-Type", "application/json")
	add.AddCookie(cookie)
	addResp, err := ts.Client().Do(add)
	require.NoError(t, err)
	addResp.Body.Close()
	require.Equal(t, http.StatusCreated, addResp.StatusCode)

	readUntil("ann@example.com")
}
