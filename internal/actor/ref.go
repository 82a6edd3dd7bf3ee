package actor

// Ref is an addressable handle to an actor accepting messages of type M.
//
// A Ref carries no actor state. Two Refs are the same handle only if they are
// the same pointer; a restarted entity always gets a new Ref with a new ID.
type Ref[M any] struct {
	id      string
	path    string
	deliver func(M) bool
	lc      *lifecycle
}

// Tell sends msg asynchronously. It never blocks. Messages sent to a stopped
// actor are dropped. Telling a nil Ref is a no-op.
func (r *Ref[M]) Tell(msg M) {
	if r == nil {
		return
	}
	r.deliver(msg)
}

// ID returns the unique identifier of this handle.
func (r *Ref[M]) ID() string {
	return r.id
}

// Path returns the hierarchical name of the actor (e.g. "/user/manager/group-kitchen").
func (r *Ref[M]) Path() string {
	return r.path
}

// String implements fmt.Stringer.
func (r *Ref[M]) String() string {
	if r == nil {
		return "<nil>"
	}
	return r.path + "#" + r.id
}

// Alive reports whether the actor behind this handle is still running.
func (r *Ref[M]) Alive() bool {
	return r.lc.alive()
}

// Done returns a channel that is closed once the actor has terminated.
func (r *Ref[M]) Done() <-chan struct{} {
	return r.lc.done
}

func (r *Ref[M]) life() *lifecycle {
	return r.lc
}

// Watchable is implemented by every Ref regardless of its message type, so an
// actor can watch handles that speak a different protocol.
type Watchable interface {
	Path() string
	life() *lifecycle
}
