package sync

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Publisher is what catalog writers need from the hub.
type Publisher interface {
	Publish(ev AppEvent)
}

const (
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"

	writeTimeout = 2 * time.Second
)

// subscriber is one connected feed client, whatever its transport.
type subscriber struct {
	transport string
	send      func(line []byte) error
	close     func() error
}

// Hub fans catalog events out to every feed subscriber. An event is encoded
// once per Publish; a subscriber whose write fails is dropped.
type Hub struct {
	mu      sync.Mutex
	subs    map[any]*subscriber // keyed by net.Conn or *websocket.Conn
	byType  map[string]int
	dropped int
	last    time.Time
}

type Stats struct {
	TCPClients  int            `json:"tcpClients"`
	WSClients   int            `json:"wsClients"`
	Published   int            `json:"published"`
	ByType      map[string]int `json:"byType"`
	Dropped     int            `json:"dropped"`
	LastEventAt *time.Time     `json:"lastEventAt,omitempty"`
}

type welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[any]*subscriber),
		byType: make(map[string]int),
	}
}

// AddTCP greets conn and subscribes it to the feed.
func (h *Hub) AddTCP(conn net.Conn) error {
	return h.add(conn, &subscriber{
		transport: TransportTCP,
		send: func(line []byte) error {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_, err := conn.Write(line)
			return err
		},
		close: conn.Close,
	})
}

// AddWS greets ws and subscribes it to the feed. The caller keeps reading
// from ws; the hub is its only writer.
func (h *Hub) AddWS(ws *websocket.Conn) error {
	return h.add(ws, &subscriber{
		transport: TransportWebsocket,
		send: func(line []byte) error {
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			return ws.WriteMessage(websocket.TextMessage, line)
		},
		close: ws.Close,
	})
}

func (h *Hub) RemoveTCP(conn net.Conn) { h.remove(conn) }
func (h *Hub) RemoveWS(ws *websocket.Conn) { h.remove(ws) }

// the welcome goes out under the lock so it always precedes the first event
func (h *Hub) add(key any, sub *subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line, err := encodeLine(welcome{Type: "welcome", Transport: sub.transport, Clients: len(h.subs) + 1})
	if err != nil {
		return err
	}
	if err := sub.send(line); err != nil {
		_ = sub.close()
		return fmt.Errorf("send welcome: %w", err)
	}
	h.subs[key] = sub
	return nil
}

func (h *Hub) remove(key any) {
	h.mu.Lock()
	sub, ok := h.subs[key]
	delete(h.subs, key)
	h.mu.Unlock()
	if ok {
		_ = sub.close()
	}
}

// Publish sends ev to every subscriber as one JSON line. A zero At is
// stamped with the current time.
func (h *Hub) Publish(ev AppEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	line, err := encodeLine(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.byType[ev.Type]++
	h.last = ev.At
	for key, sub := range h.subs {
		if err := sub.send(line); err != nil {
			_ = sub.close()
			delete(h.subs, key)
			h.dropped++
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{ByType: make(map[string]int, len(h.byType)), Dropped: h.dropped}
	for _, sub := range h.subs {
		if sub.transport == TransportTCP {
			st.TCPClients++
		} else {
			st.WSClients++
		}
	}
	for kind, n := range h.byType {
		st.ByType[kind] = n
		st.Published += n
	}
	if !h.last.IsZero() {
		last := h.last
		st.LastEventAt = &last
	}
	return st
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
