package web

// events.go pushes store re-renders to the browser over Server-Sent Events.
//
// The broadcaster is the session store's Renderer. Each mutation renders the
// fragment once and hands it to every open stream. A slow stream never blocks
// the store: only the latest fragment per event name is kept for it.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/web/views"
)

// SSE event names; the page swaps each into a matching sse-swap target.
const (
	eventRecipients = "recipients"
	eventInvalid    = "invalid"
	eventSummary    = "summary"
)

const sseKeepAlive = 25 * time.Second

// subscriber is one open event stream.
type subscriber struct {
	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	notify  chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		pending: make(map[string][]byte),
		notify:  make(chan struct{}, 1),
	}
}

func (s *subscriber) push(name string, data []byte) {
	s.mu.Lock()
	if _, ok := s.pending[name]; !ok {
		s.order = append(s.order, name)
	}
	s.pending[name] = data
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

type sseEvent struct {
	name string
	data []byte
}

// drain returns the pending events in first-pushed order.
func (s *subscriber) drain() []sseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sseEvent, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, sseEvent{name: name, data: s.pending[name]})
	}
	s.pending = make(map[string][]byte)
	s.order = s.order[:0]
	return out
}

// broadcaster implements core.Renderer and core.SummaryRenderer.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed chan struct{}
	once   sync.Once
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		subs:   make(map[*subscriber]struct{}),
		closed: make(chan struct{}),
	}
}

func (b *broadcaster) subscribe() *subscriber {
	sub := newSubscriber()
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broadcaster) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// close ends every open stream of the session.
func (b *broadcaster) close() {
	b.once.Do(func() { close(b.closed) })
}

func (b *broadcaster) publish(name string, c templ.Component) {
	b.mu.Lock()
	n := len(b.subs)
	b.mu.Unlock()
	if n == 0 {
		return
	}

	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		slog.Error("render event fragment", "event", name, "error", err)
		return
	}
	data := buf.Bytes()

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		sub.push(name, data)
	}
}

// RenderRecipients implements core.Renderer.
func (b *broadcaster) RenderRecipients(list []core.Recipient) {
	b.publish(eventRecipients, views.RecipientList(list))
}

// RenderInvalid implements core.Renderer.
func (b *broadcaster) RenderInvalid(list []core.InvalidEntry) {
	b.publish(eventInvalid, views.InvalidList(list))
}

// RenderSummary implements core.SummaryRenderer.
func (b *broadcaster) RenderSummary(summary core.DeliverySummary) {
	b.publish(eventSummary, views.Dashboard(summary))
}

// writeSSE writes one event. Multi-line data is split across data fields.
func writeSSE(w io.Writer, name string, data []byte) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "event: %s\n", name)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// handleRecipientEvents streams re-render events for the caller's session.
// The current state is sent first so a reconnecting page catches up.
func (s *Server) handleRecipientEvents(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := sess.events.subscribe()
	defer sess.events.unsubscribe(sub)

	sess.mu.Lock()
	recipients := sess.store.Recipients()
	invalid := sess.store.Invalid()
	sess.mu.Unlock()

	for _, ev := range []struct {
		name string
		c    templ.Component
	}{
		{eventRecipients, views.RecipientList(recipients)},
		{eventInvalid, views.InvalidList(invalid)},
	} {
		var buf bytes.Buffer
		if err := ev.c.Render(r.Context(), &buf); err != nil {
			return
		}
		if err := writeSSE(w, ev.name, buf.Bytes()); err != nil {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.events.closed:
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-sub.notify:
			for _, ev := range sub.drain() {
				if err := writeSSE(w, ev.name, ev.data); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}
