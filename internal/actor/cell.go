package actor

// cell is the running instance of one actor: its goroutine, mailbox and behaviour.
type cell[M any] struct {
	sys      *System
	node     *node
	mailbox  *mailbox[M]
	ref      *Ref[M]
	factory  Factory[M]
	behavior Behavior[M]
	ctx      *Context[M]
}

// run is the actor goroutine. It builds the behaviour, then processes the
// mailbox until the actor stops itself, is stopped by its parent, or panics.
func (c *cell[M]) run() {
	defer c.sys.wg.Done()

	ctx := newContext(c)
	c.ctx = ctx
	defer c.finish()

	if !c.invoke(func() { c.behavior = c.factory(ctx) }) || ctx.stopping {
		return
	}
	if c.behavior == nil {
		c.sys.logger.Error("actor factory returned nil behaviour", "actor", c.node.path)
		return
	}

	for {
		select {
		case <-c.node.stopCh:
			return
		case <-c.mailbox.signal:
			for _, msg := range c.mailbox.drain() {
				if !c.invoke(func() { c.behavior.Receive(ctx, msg) }) || ctx.stopping {
					return
				}
			}
		}
	}
}

// invoke runs fn, converting a panic into a stop of this actor only.
func (c *cell[M]) invoke(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.sys.logger.Error("actor panic recovered, stopping actor",
				"actor", c.node.path,
				"panic", r,
			)
			ok = false
		}
	}()
	fn()
	return true
}

// finish tears the actor down: mailbox, timers, watches, children, PostStop,
// and finally notifies watchers.
func (c *cell[M]) finish() {
	if dropped := c.mailbox.close(); dropped > 0 {
		c.sys.logger.Debug("discarded queued messages on stop", "actor", c.node.path, "count", dropped)
	}

	c.ctx.release()

	children := c.node.closeChildren()
	for _, child := range children {
		child.requestStop()
	}
	for _, child := range children {
		<-child.life.done
	}

	if ps, ok := c.behavior.(PostStopper[M]); ok {
		c.invoke(func() { ps.PostStop(c.ctx) })
	}

	c.node.parent.removeChild(c.node)
	c.node.life.terminate()
}
