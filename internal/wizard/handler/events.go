package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"deedwizard/internal/draft"
	"deedwizard/pkg/requestcontext"
)

type eventsConfig struct {
	pingInterval   time.Duration
	writeTimeout   time.Duration
	allowedOrigins []string
}

func defaultEventsConfig() eventsConfig {
	return eventsConfig{
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// Event is one message on the draft event stream.
type Event struct {
	Type  string       `json:"type"`
	Draft *draft.Draft `json:"draft,omitempty"`
	// Remote is set when another process or tab made the change.
	Remote bool `json:"remote,omitempty"`
}

// Event types.
const (
	EventSnapshot = "snapshot"
	EventChanged  = "changed"
	EventCleared  = "cleared"
)

func (h *Handler) upgrader() websocket.Upgrader {
	u := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	if len(h.events.allowedOrigins) > 0 {
		allowed := h.events.allowedOrigins
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
	return u
}

// handleEvents streams the draft of one mode: a snapshot first, then every
// change until the client goes away.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ref, err := ref(r)
	if err != nil {
		h.fail(w, r, "events", err)
		return
	}
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	changes, cancel := h.service.Subscribe(ctx, ref)
	defer cancel()

	// The read loop only notices the client closing; clients send nothing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := h.service.Draft(ctx, ref).Draft
	if err := h.send(conn, Event{Type: EventSnapshot, Draft: &snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(h.events.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			deadline := time.Now().Add(h.events.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := h.send(conn, eventFor(c)); err != nil {
				h.logger.DebugContext(ctx, "event stream write failed",
					"session", ref.Session.String(),
					"error", err,
				)
				return
			}
		}
	}
}

func eventFor(c draft.Change) Event {
	if c.Cleared {
		return Event{Type: EventCleared, Remote: c.Remote}
	}
	d := c.Draft
	return Event{Type: EventChanged, Draft: &d, Remote: c.Remote}
}

func (h *Handler) send(conn *websocket.Conn, ev Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.events.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
