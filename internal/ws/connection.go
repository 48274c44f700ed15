package ws

import (
	"context"
	"errors"
	"sync"

	"parlor/internal/registry"
	"parlor/internal/router"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type eventRouter interface {
	HandleEvent(sess *registry.Session, raw router.ClientEvent)
}

// Connection pumps one websocket: inbound frames go to the event router,
// outbound frames drain the session's event channel.
type Connection struct {
	ws      wsConnection
	router  eventRouter
	sess    *registry.Session
	errorCh chan error
}

func NewConnection(router eventRouter, ws wsConnection, sess *registry.Session) *Connection {
	return &Connection{
		ws:      ws,
		router:  router,
		sess:    sess,
		errorCh: make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.readLoop(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.writeLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		var raw router.ClientEvent
		if err := c.ws.ReadJSON(&raw); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.router.HandleEvent(c.sess, raw)
	}
}

func (c *Connection) writeLoop(ctx context.Context) error {
	for {
		select {
		case ev, ok := <-c.sess.Events():
			if !ok {
				// Session was unregistered.
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
