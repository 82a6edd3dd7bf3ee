package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultInboxCapacity is used when NewInbox is given a non-positive capacity.
const defaultInboxCapacity = 64

// Inbox is a handle backed by a buffered channel instead of an actor. It lets
// code outside the actor tree (HTTP handlers, bridges, tests) receive replies.
//
// Messages that arrive when the buffer is full, or after Close, are dropped.
type Inbox[M any] struct {
	ref *Ref[M]
	ch  chan M
}

// NewInbox creates an inbox.
//
// Parameters:
//   - name: Used in the handle path for logging
//   - capacity: Buffer size (non-positive uses a default)
//
// Returns:
//   - *Inbox[M]: Open inbox
func NewInbox[M any](name string, capacity int) *Inbox[M] {
	if capacity <= 0 {
		capacity = defaultInboxCapacity
	}
	ch := make(chan M, capacity)
	lc := newLifecycle()

	ref := &Ref[M]{
		id:   uuid.NewString(),
		path: "/inbox/" + name,
		lc:   lc,
	}
	ref.deliver = func(msg M) bool {
		if !lc.alive() {
			return false
		}
		select {
		case ch <- msg:
			return true
		default:
			return false
		}
	}

	return &Inbox[M]{ref: ref, ch: ch}
}

// Ref returns the handle to give out as a reply address.
func (i *Inbox[M]) Ref() *Ref[M] {
	return i.ref
}

// Receive waits for the next message.
//
// Returns:
//   - M: The message
//   - error: ErrNoMessage wrapping ctx.Err() if ctx ends first
func (i *Inbox[M]) Receive(ctx context.Context) (M, error) {
	select {
	case msg := <-i.ch:
		return msg, nil
	case <-ctx.Done():
		var zero M
		return zero, fmt.Errorf("%w: %w", ErrNoMessage, ctx.Err())
	}
}

// ReceiveWithin waits at most d for the next message.
func (i *Inbox[M]) ReceiveWithin(d time.Duration) (M, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return i.Receive(ctx)
}

// Len returns the number of buffered messages.
func (i *Inbox[M]) Len() int {
	return len(i.ch)
}

// Close stops accepting messages and notifies anyone watching the inbox handle.
func (i *Inbox[M]) Close() {
	i.ref.lc.terminate()
}

// Ask sends a request built around a one-shot reply handle and waits for the
// reply.
//
// Parameters:
//   - ctx: Bounds the wait
//   - target: Actor to ask
//   - build: Builds the request given the reply handle
//
// Returns:
//   - Resp: The first reply
//   - error: ErrTerminated if target stops before replying, ErrNoMessage if ctx ends first
func Ask[Req, Resp any](ctx context.Context, target *Ref[Req], build func(replyTo *Ref[Resp]) Req) (Resp, error) {
	inbox := NewInbox[Resp]("ask", 1)
	defer inbox.Close()

	dead := make(chan struct{})
	cancel := target.lc.watch(func() { close(dead) })
	defer cancel()

	target.Tell(build(inbox.Ref()))

	select {
	case msg := <-inbox.ch:
		return msg, nil
	case <-dead:
		// A reply may have raced the termination.
		select {
		case msg := <-inbox.ch:
			return msg, nil
		default:
		}
		var zero Resp
		return zero, fmt.Errorf("%w: %s", ErrTerminated, target.Path())
	case <-ctx.Done():
		var zero Resp
		return zero, fmt.Errorf("%w: %w", ErrNoMessage, ctx.Err())
	}
}
