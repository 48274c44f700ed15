package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"parlor/internal/models"
	"parlor/internal/registry"
	"parlor/internal/router"
)

type mockWS struct {
	readCh      chan router.ClientEvent
	writeCh     chan any
	closeCh     chan struct{}
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan router.ClientEvent, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) WriteJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case ev, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		if ptr, ok := v.(*router.ClientEvent); ok {
			*ptr = ev
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

type mockRouter struct {
	handledCh chan router.ClientEvent
}

func newMockRouter() *mockRouter {
	return &mockRouter{handledCh: make(chan router.ClientEvent, 10)}
}

func (m *mockRouter) HandleEvent(sess *registry.Session, raw router.ClientEvent) {
	m.handledCh <- raw
}

func TestConnection_Lifecycle(t *testing.T) {
	reg := registry.NewRegistry()
	rtr := newMockRouter()
	ws := newMockWS()
	sess, _ := reg.Register("user1", "alice")

	conn := NewConnection(rtr, ws, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// 1. Inbound frame reaches the router
	clientEvent := router.ClientEvent{Type: router.TypeRoomConnect, Destination: "room1"}
	ws.readCh <- clientEvent

	select {
	case received := <-rtr.handledCh:
		if received.Type != clientEvent.Type || received.Destination != clientEvent.Destination {
			t.Errorf("Router received wrong event: %+v", received)
		}
	case <-time.After(1 * time.Second):
		t.Error("Router did not receive inbound event")
	}

	// 2. Session event reaches the wire
	serverEvent := models.ServerEvent{
		Event:    models.EventRoomMessage,
		Response: models.Response{Status: models.StatusOK, Destination: "room1"},
	}
	sess.Send(serverEvent)

	select {
	case received := <-ws.writeCh:
		sEv, ok := received.(models.ServerEvent)
		if !ok {
			t.Fatalf("WS received wrong type: %T", received)
		}
		if sEv.Event != models.EventRoomMessage || sEv.Destination != "room1" {
			t.Errorf("WS received wrong event: %+v", sEv)
		}
	case <-time.After(1 * time.Second):
		t.Error("WS did not receive server event")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after cancel")
	}

	if !ws.closed {
		t.Error("WS Close not called")
	}
}

func TestConnection_WSError(t *testing.T) {
	reg := registry.NewRegistry()
	rtr := newMockRouter()
	ws := newMockWS()
	sess, _ := reg.Register("user2", "bob")

	conn := NewConnection(rtr, ws, sess)

	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error from Handle, got nil")
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return on error")
	}

	if !ws.closed {
		t.Error("WS Close not called")
	}
}

func TestConnection_SessionClosed(t *testing.T) {
	reg := registry.NewRegistry()
	rtr := newMockRouter()
	ws := newMockWS()
	sess, _ := reg.Register("user3", "carol")

	conn := NewConnection(rtr, ws, sess)

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	// Unregistering closes the session channel; the write pump winds down
	// cleanly.
	reg.Unregister(sess)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after session close")
	}
	if !ws.closed {
		t.Error("WS Close not called")
	}
}
