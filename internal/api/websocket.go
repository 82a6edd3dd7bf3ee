package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

// Client operations on the event stream.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPing        = "ping"
)

// Frame kinds sent by the server.
const (
	FrameEvent = "event"
	FrameAck   = "ack"
	FramePong  = "pong"
	FrameError = "error"
)

// AllEvents selects every event type.
const AllEvents = "*"

const defaultSendBuffer = 64

// streamEvents are the event types a client may select.
var streamEvents = []iot.EventType{
	iot.EventGroupStarted,
	iot.EventGroupStopped,
	iot.EventDeviceStarted,
	iot.EventDeviceStopped,
	iot.EventTemperatureRecorded,
	iot.EventQueryCompleted,
}

// ClientFrame is a request from a stream client.
//
//	{"op":"subscribe","id":"1","events":["query_completed"],"groups":["kitchen"]}
//
// Subscribe adds event types and groups to the client's selection,
// unsubscribe removes them. An empty group selection matches every group.
type ClientFrame struct {
	Op     string   `json:"op"`
	ID     string   `json:"id,omitempty"`
	Events []string `json:"events,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// StreamFrame is sent to stream clients.
type StreamFrame struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id,omitempty"`
	Event     *iot.Event `json:"event,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Selection is a client's current filter, echoed in acks.
type Selection struct {
	Events []string `json:"events"`
	Groups []string `json:"groups"`
}

// selection filters events for one client.
type selection struct {
	all    bool
	events map[iot.EventType]struct{}
	groups map[string]struct{}
}

func newSelection() selection {
	return selection{
		events: make(map[iot.EventType]struct{}),
		groups: make(map[string]struct{}),
	}
}

func (s *selection) matches(e iot.Event) bool {
	if !s.all {
		if _, ok := s.events[e.Type]; !ok {
			return false
		}
	}
	if len(s.groups) == 0 {
		return true
	}
	_, ok := s.groups[e.GroupID]
	return ok
}

// apply adds (or removes) the frame's event types and groups.
func (s *selection) apply(f ClientFrame, add bool) {
	for _, name := range f.Events {
		if name == AllEvents {
			s.all = add
			continue
		}
		if add {
			s.events[iot.EventType(name)] = struct{}{}
		} else {
			delete(s.events, iot.EventType(name))
		}
	}
	for _, g := range f.Groups {
		if add {
			s.groups[g] = struct{}{}
		} else {
			delete(s.groups, g)
		}
	}
}

func (s *selection) view() *Selection {
	v := &Selection{Events: []string{}, Groups: []string{}}
	if s.all {
		v.Events = append(v.Events, AllEvents)
	}
	for t := range s.events {
		v.Events = append(v.Events, string(t))
	}
	for g := range s.groups {
		v.Groups = append(v.Groups, g)
	}
	slices.Sort(v.Events)
	slices.Sort(v.Groups)
	return v
}

// validEvents reports the first unknown event name in names.
func validEvents(names []string) (string, bool) {
	for _, n := range names {
		if n != AllEvents && !slices.Contains(streamEvents, iot.EventType(n)) {
			return n, false
		}
	}
	return "", true
}

// streamClient is one WebSocket connection. Its selection and send channel
// are owned by the hub loop; only the loop closes send.
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	sel  selection
}

// request carries a decoded client frame, or a decode error, to the hub loop.
type request struct {
	client *streamClient
	frame  ClientFrame
	err    string
}

// Hub fans core events out to WebSocket clients.
//
// A single goroutine (Run) owns the client set and every selection, so
// Publish, the read pumps and the HTTP handler only talk to it over channels.
// Publish never blocks: when the hub is behind, or a client's buffer is
// full, the event is dropped and counted.
type Hub struct {
	logger *logging.Logger

	events   chan iot.Event
	join     chan *streamClient
	leave    chan *streamClient
	requests chan request
	done     chan struct{}

	clients atomic.Int64
	dropped atomic.Uint64
}

// NewHub creates a hub. It delivers nothing until Run is called.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		logger:   logger,
		events:   make(chan iot.Event, 4*buffer),
		join:     make(chan *streamClient),
		leave:    make(chan *streamClient),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
}

// Run serves the hub until ctx ends, then closes every client.
// It must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	members := make(map[*streamClient]struct{})
	defer func() {
		for c := range members {
			close(c.send)
		}
		h.clients.Store(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.join:
			members[c] = struct{}{}
			h.clients.Store(int64(len(members)))
			h.logger.Debug("stream client connected", "clients", len(members))
		case c := <-h.leave:
			if _, ok := members[c]; ok {
				delete(members, c)
				h.clients.Store(int64(len(members)))
				close(c.send)
				h.logger.Debug("stream client disconnected", "clients", len(members))
			}
		case r := <-h.requests:
			if _, ok := members[r.client]; ok {
				h.serve(r)
			}
		case e := <-h.events:
			h.fanOut(members, e)
		}
	}
}

// Publish implements iot.EventSink.
func (h *Hub) Publish(event iot.Event) {
	select {
	case h.events <- event:
	default:
		h.dropped.Add(1)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.clients.Load())
}

// Dropped returns how many event deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) fanOut(members map[*streamClient]struct{}, e iot.Event) {
	var data []byte
	for c := range members {
		if !c.sel.matches(e) {
			continue
		}
		if data == nil {
			var err error
			if data, err = json.Marshal(StreamFrame{Kind: FrameEvent, Event: &e}); err != nil {
				h.logger.Error("failed to marshal stream event", "type", e.Type, "error", err)
				return
			}
		}
		if !offer(c, data) {
			h.dropped.Add(1)
		}
	}
}

// serve applies one client request and queues the reply.
func (h *Hub) serve(r request) {
	c, f := r.client, r.frame
	if r.err != "" {
		reply(c, StreamFrame{Kind: FrameError, Error: r.err})
		return
	}

	switch f.Op {
	case OpSubscribe, OpUnsubscribe:
		if name, ok := validEvents(f.Events); !ok {
			reply(c, StreamFrame{Kind: FrameError, ID: f.ID, Error: "unknown event type: " + name})
			return
		}
		c.sel.apply(f, f.Op == OpSubscribe)
		reply(c, StreamFrame{Kind: FrameAck, ID: f.ID, Selection: c.sel.view()})
		h.logger.Debug("stream selection changed", "op", f.Op, "events", f.Events, "groups", f.Groups)
	case OpPing:
		reply(c, StreamFrame{Kind: FramePong, ID: f.ID})
	default:
		reply(c, StreamFrame{Kind: FrameError, ID: f.ID, Error: "unknown op: " + f.Op})
	}
}

func reply(c *streamClient, f StreamFrame) {
	if data, err := json.Marshal(f); err == nil {
		offer(c, data)
	}
}

// offer queues data unless the client's buffer is full.
func offer(c *streamClient, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// attach hands c to the hub loop. It fails once the hub has stopped.
func (h *Hub) attach(c *streamClient) bool {
	select {
	case h.join <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *streamClient) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(r request) bool {
	select {
	case h.requests <- r:
		return true
	case <-h.done:
		return false
	}
}

// streamTiming holds the keepalive durations of a connection.
type streamTiming struct {
	pingEvery time.Duration
	readWait  time.Duration
	writeWait time.Duration
}

func timingFor(cfg config.WebSocketConfig) streamTiming {
	ping := time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pong := time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = 10 * time.Second
	}
	return streamTiming{pingEvery: ping, readWait: ping + pong, writeWait: pong}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware checks origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades to the event stream. A new client receives
// nothing until it subscribes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	buffer := s.wsCfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	c := &streamClient{
		conn: conn,
		send: make(chan []byte, buffer),
		sel:  newSelection(),
	}
	if !s.hub.attach(c) {
		conn.Close()
		return
	}

	timing := timingFor(s.wsCfg)
	if s.wsCfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}
	go s.hub.writeLoop(c, timing)
	go s.hub.readLoop(c, timing)
}

// readLoop decodes client frames until the connection fails.
func (h *Hub) readLoop(c *streamClient, t streamTiming) {
	defer func() {
		h.detach(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }
	//nolint:errcheck // a failed deadline surfaces as a read error
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		//nolint:errcheck // a failed deadline surfaces as a read error
		extend()

		r := request{client: c}
		if err := json.Unmarshal(data, &r.frame); err != nil {
			r.err = "invalid JSON frame"
		}
		if !h.submit(r) {
			return
		}
	}
}

// writeLoop drains c.send and pings the peer. It ends when the hub closes
// c.send or a write fails.
func (h *Hub) writeLoop(c *streamClient, t streamTiming) {
	ticker := time.NewTicker(t.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // peer may already be gone
				write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
