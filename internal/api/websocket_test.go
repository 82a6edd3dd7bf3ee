package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testWSConfig(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// frameOf waits for the next frame queued for c.
func frameOf(t *testing.T, c *streamClient) StreamFrame {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var f StreamFrame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return StreamFrame{}
}

func expectNoFrame(t *testing.T, c *streamClient) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("unexpected frame %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

// attachClient joins a connectionless client and applies a subscription,
// returning once the hub has acknowledged it.
func attachClient(t *testing.T, hub *Hub, buffer int, events []string, groups []string) *streamClient {
	t.Helper()
	c := &streamClient{send: make(chan []byte, buffer), sel: newSelection()}
	if !hub.attach(c) {
		t.Fatal("attach() = false on a running hub")
	}
	if len(events)+len(groups) > 0 {
		hub.submit(request{client: c, frame: ClientFrame{Op: OpSubscribe, ID: "sub", Events: events, Groups: groups}})
		if f := frameOf(t, c); f.Kind != FrameAck {
			t.Fatalf("subscribe reply = %+v, want ack", f)
		}
	}
	return c
}

func TestSelection_Matches(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		groups []string
		event  iot.Event
		want   bool
	}{
		{"nothing selected", nil, nil, iot.Event{Type: iot.EventGroupStarted, GroupID: "g"}, false},
		{"type selected", []string{"group_started"}, nil, iot.Event{Type: iot.EventGroupStarted, GroupID: "g"}, true},
		{"other type", []string{"group_started"}, nil, iot.Event{Type: iot.EventQueryCompleted, GroupID: "g"}, false},
		{"all types", []string{AllEvents}, nil, iot.Event{Type: iot.EventDeviceStopped, GroupID: "g"}, true},
		{"group selected", []string{AllEvents}, []string{"kitchen"}, iot.Event{Type: iot.EventGroupStarted, GroupID: "kitchen"}, true},
		{"other group", []string{AllEvents}, []string{"kitchen"}, iot.Event{Type: iot.EventGroupStarted, GroupID: "hall"}, false},
		{"groups without types", nil, []string{"kitchen"}, iot.Event{Type: iot.EventGroupStarted, GroupID: "kitchen"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := newSelection()
			sel.apply(ClientFrame{Events: tt.events, Groups: tt.groups}, true)
			if got := sel.matches(tt.event); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelection_UnsubscribeAndView(t *testing.T) {
	sel := newSelection()
	sel.apply(ClientFrame{Events: []string{AllEvents, "query_completed", "group_started"}, Groups: []string{"kitchen", "hall"}}, true)
	sel.apply(ClientFrame{Events: []string{AllEvents, "group_started"}, Groups: []string{"hall"}}, false)

	v := sel.view()
	if !slices.Equal(v.Events, []string{"query_completed"}) {
		t.Errorf("events = %v, want [query_completed]", v.Events)
	}
	if !slices.Equal(v.Groups, []string{"kitchen"}) {
		t.Errorf("groups = %v, want [kitchen]", v.Groups)
	}
}

func TestHub_DeliversSelectedEvents(t *testing.T) {
	hub := runHub(t)
	c := attachClient(t, hub, 16, []string{string(iot.EventDeviceStarted)}, []string{"kitchen"})

	hub.Publish(iot.Event{Type: iot.EventDeviceStarted, GroupID: "hall", DeviceID: "t9"})
	hub.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "kitchen"})
	hub.Publish(iot.Event{Type: iot.EventDeviceStarted, GroupID: "kitchen", DeviceID: "t1"})

	f := frameOf(t, c)
	if f.Kind != FrameEvent || f.Event == nil {
		t.Fatalf("frame = %+v, want event", f)
	}
	if f.Event.Type != iot.EventDeviceStarted || f.Event.DeviceID != "t1" {
		t.Errorf("event = %+v, want device_started for t1", f.Event)
	}
	expectNoFrame(t, c)
}

func TestHub_SilentUntilSubscribed(t *testing.T) {
	hub := runHub(t)
	c := attachClient(t, hub, 16, nil, nil)

	hub.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "kitchen"})
	expectNoFrame(t, c)
}

func TestHub_Requests(t *testing.T) {
	hub := runHub(t)
	c := attachClient(t, hub, 16, nil, nil)

	tests := []struct {
		name    string
		req     request
		kind    string
		errPart string
	}{
		{"ping", request{frame: ClientFrame{Op: OpPing, ID: "p1"}}, FramePong, ""},
		{"unknown op", request{frame: ClientFrame{Op: "reboot", ID: "x"}}, FrameError, "unknown op"},
		{"unknown event", request{frame: ClientFrame{Op: OpSubscribe, ID: "s", Events: []string{"door_opened"}}}, FrameError, "door_opened"},
		{"bad json", request{err: "invalid JSON frame"}, FrameError, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.client = c
			hub.submit(tt.req)
			f := frameOf(t, c)
			if f.Kind != tt.kind || f.ID != tt.req.frame.ID {
				t.Errorf("reply = %+v, want %s with id %q", f, tt.kind, tt.req.frame.ID)
			}
			if !strings.Contains(f.Error, tt.errPart) {
				t.Errorf("error = %q, want it to mention %q", f.Error, tt.errPart)
			}
		})
	}

	hub.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "g"})
	expectNoFrame(t, c)
}

func TestHub_FullBufferDropsAndCounts(t *testing.T) {
	hub := runHub(t)
	c := attachClient(t, hub, 1, []string{AllEvents}, nil)

	done := make(chan struct{})
	go func() {
		for range 10 {
			hub.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "g"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}

	deadline := time.Now().Add(time.Second)
	for hub.Dropped() < 9 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Dropped() != 9 {
		t.Errorf("Dropped() = %d, want 9", hub.Dropped())
	}
	if len(c.send) != 1 {
		t.Errorf("queued = %d, want 1", len(c.send))
	}
}

func TestHub_PublishWithoutRunDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	total := cap(hub.events) + 5
	for range total {
		hub.Publish(iot.Event{Type: iot.EventGroupStarted})
	}
	if hub.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", hub.Dropped())
	}
}

func TestHub_ClientCountAndShutdown(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	a := attachClient(t, hub, 4, []string{AllEvents}, nil)
	b := attachClient(t, hub, 4, []string{AllEvents}, nil)
	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}

	hub.detach(a)
	if _, ok := <-a.send; ok {
		t.Error("detached client's send channel should be closed")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() after detach = %d, want 1", hub.ClientCount())
	}

	cancel()
	<-stopped
	if _, ok := <-b.send; ok {
		t.Error("send channel should be closed on shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after shutdown = %d, want 0", hub.ClientCount())
	}
	if hub.attach(&streamClient{send: make(chan []byte, 1), sel: newSelection()}) {
		t.Error("attach() after shutdown should fail")
	}
}

func TestWebSocket_StreamsManagerEvents(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	sub := ClientFrame{
		Op:     OpSubscribe,
		ID:     "sub-1",
		Events: []string{string(iot.EventDeviceStarted)},
		Groups: []string{"kitchen"},
	}
	if err := ws.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack StreamFrame
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Kind != FrameAck || ack.ID != "sub-1" || ack.Selection == nil {
		t.Fatalf("ack = %+v, want subscribe ack", ack)
	}
	if !slices.Equal(ack.Selection.Groups, []string{"kitchen"}) {
		t.Errorf("selection groups = %v, want [kitchen]", ack.Selection.Groups)
	}

	for _, path := range []string{"/api/v1/groups/hall/devices/h1", "/api/v1/groups/kitchen/devices/t1"} {
		if w := do(t, srv.buildRouter(), http.MethodPut, path, ""); w.Code != http.StatusOK {
			t.Fatalf("PUT %s status = %d", path, w.Code)
		}
	}

	var event StreamFrame
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Kind != FrameEvent || event.Event == nil || event.Event.GroupID != "kitchen" || event.Event.DeviceID != "t1" {
		t.Errorf("event = %+v, want device_started for kitchen/t1", event)
	}
}

func TestWebSocket_InvalidFrame(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f StreamFrame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Kind != FrameError {
		t.Errorf("frame = %+v, want error", f)
	}
}
