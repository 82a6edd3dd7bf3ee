package actor

import "time"

// Context gives a running actor access to itself and to the substrate:
// spawning children, watching other actors, timers and message adapters.
//
// A Context is bound to its actor's goroutine and must not be shared.
type Context[M any] struct {
	cell     *cell[M]
	log      Logger
	stopping bool
	timers   map[string]*time.Timer
	watches  map[*lifecycle]func()
}

func newContext[M any](c *cell[M]) *Context[M] {
	return &Context[M]{
		cell:    c,
		log:     pathLogger{base: c.sys.logger, path: c.node.path},
		timers:  make(map[string]*time.Timer),
		watches: make(map[*lifecycle]func()),
	}
}

// Self returns the handle of the running actor.
func (c *Context[M]) Self() *Ref[M] {
	return c.cell.ref
}

// Log returns a logger that tags entries with the actor path.
func (c *Context[M]) Log() Logger {
	return c.log
}

// Stop stops this actor once the current message (or factory) returns.
// Messages still queued are discarded.
func (c *Context[M]) Stop() {
	c.stopping = true
}

// Watch arranges for msg to be delivered to this actor when target stops.
// If target has already stopped, msg is enqueued immediately. Watching the
// same target again replaces the previous message.
func (c *Context[M]) Watch(target Watchable, msg M) {
	lc := target.life()
	if cancel, ok := c.watches[lc]; ok {
		cancel()
	}
	self := c.cell.ref
	c.watches[lc] = lc.watch(func() { self.Tell(msg) })
}

// Unwatch cancels a previous Watch. A notification already enqueued is not recalled.
func (c *Context[M]) Unwatch(target Watchable) {
	lc := target.life()
	if cancel, ok := c.watches[lc]; ok {
		cancel()
		delete(c.watches, lc)
	}
}

// StartSingleTimer delivers msg to this actor once after d. Starting a timer
// with a key that is already pending replaces it.
func (c *Context[M]) StartSingleTimer(key string, d time.Duration, msg M) {
	c.CancelTimer(key)
	self := c.cell.ref
	c.timers[key] = time.AfterFunc(d, func() { self.Tell(msg) })
}

// CancelTimer stops a pending timer. A timer that has already fired may still
// deliver its message.
func (c *Context[M]) CancelTimer(key string) {
	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}
}

// release cancels every timer and watch owned by the actor.
func (c *Context[M]) release() {
	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
	for lc, cancel := range c.watches {
		cancel()
		delete(c.watches, lc)
	}
}

// SpawnChild starts a child actor supervised by the actor owning ctx. The
// child is stopped when the parent stops. Must be called from the parent's
// goroutine.
//
// Parameters:
//   - ctx: Parent context
//   - name: Child name (empty generates an anonymous name)
//   - factory: Builds the child's behaviour
//
// Returns:
//   - *Ref[C]: Handle to the child
func SpawnChild[C, M any](ctx *Context[M], name string, factory Factory[C]) *Ref[C] {
	return spawn(ctx.cell.sys, ctx.cell.node, name, factory)
}

// Adapt returns a handle that accepts messages of another protocol R,
// converts each with convert and enqueues the result in this actor's mailbox.
// The adapter lives exactly as long as the actor owning ctx.
func Adapt[R, M any](ctx *Context[M], convert func(R) M) *Ref[R] {
	self := ctx.cell.ref
	return &Ref[R]{
		id:   self.id,
		path: self.path,
		lc:   self.lc,
		deliver: func(msg R) bool {
			return self.deliver(convert(msg))
		},
	}
}
