package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// rootPath is the path prefix of every actor spawned with Spawn.
const rootPath = "/user"

// Factory builds the behaviour of a new actor. It runs on the actor's own
// goroutine before any message is processed, so it may send messages, watch
// other actors, start timers or even call ctx.Stop().
type Factory[M any] func(ctx *Context[M]) Behavior[M]

// Behavior handles the messages of one actor. Receive is never called
// concurrently for the same actor.
type Behavior[M any] interface {
	Receive(ctx *Context[M], msg M)
}

// BehaviorFunc adapts a plain function to Behavior.
type BehaviorFunc[M any] func(ctx *Context[M], msg M)

// Receive implements Behavior.
func (f BehaviorFunc[M]) Receive(ctx *Context[M], msg M) {
	f(ctx, msg)
}

// PostStopper is optionally implemented by a Behavior that wants to run
// cleanup after its children have stopped and before watchers are notified.
type PostStopper[M any] interface {
	PostStop(ctx *Context[M])
}

// System owns a tree of actors and their goroutines.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type System struct {
	name   string
	logger Logger
	root   *node
	wg     sync.WaitGroup

	// mu serialises top-level spawns against Shutdown so no goroutine is
	// added to wg after shutdown starts waiting.
	mu       sync.Mutex
	shutdown bool
}

// NewSystem creates an empty actor system.
//
// Parameters:
//   - name: Human-readable system name used in log entries
//   - logger: Logger for lifecycle and dead-letter entries (nil disables logging)
//
// Returns:
//   - *System: System ready to spawn actors
func NewSystem(name string, logger Logger) *System {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &System{
		name:   name,
		logger: logger,
		root:   newNode(nil, rootPath),
	}
	logger.Info("actor system started", "system", name)
	return s
}

// Name returns the system name.
func (s *System) Name() string {
	return s.name
}

// Spawn starts a top-level actor.
//
// Parameters:
//   - sys: Owning system
//   - name: Actor name (empty generates an anonymous name)
//   - factory: Builds the actor's behaviour on its own goroutine
//
// Returns:
//   - *Ref[M]: Handle to the new actor. After Shutdown the handle is already terminated.
func Spawn[M any](sys *System, name string, factory Factory[M]) *Ref[M] {
	sys.mu.Lock()
	defer sys.mu.Unlock()

	if sys.shutdown {
		return deadRef[M](sys, sys.root, name)
	}
	return spawn(sys, sys.root, name, factory)
}

// Shutdown stops every top-level actor (and therefore the whole tree) and
// waits for all actor goroutines to exit.
//
// Parameters:
//   - ctx: Bounds how long to wait
//
// Returns:
//   - error: nil once every actor has stopped, ErrShutdownTimeout otherwise
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	for _, child := range s.root.snapshotChildren() {
		child.requestStop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("actor system stopped", "system", s.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

// node is the untyped part of an actor used to build the supervision tree.
type node struct {
	path     string
	parent   *node
	life     *lifecycle
	stopCh   chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	children map[*node]struct{}
	closed   bool
}

func newNode(parent *node, path string) *node {
	return &node{
		path:     path,
		parent:   parent,
		life:     newLifecycle(),
		stopCh:   make(chan struct{}),
		children: make(map[*node]struct{}),
	}
}

// requestStop asks the actor to stop. Safe to call repeatedly from any goroutine.
func (n *node) requestStop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
}

// addChild links a child. Returns false once the node no longer accepts children.
func (n *node) addChild(child *node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	n.children[child] = struct{}{}
	return true
}

func (n *node) removeChild(child *node) {
	n.mu.Lock()
	delete(n.children, child)
	n.mu.Unlock()
}

// closeChildren stops accepting children and returns the current ones.
func (n *node) closeChildren() []*node {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return n.snapshotChildren()
}

func (n *node) snapshotChildren() []*node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*node, 0, len(n.children))
	for c := range n.children {
		out = append(out, c)
	}
	return out
}

// anonymousName generates a name for actors spawned without one.
func anonymousName() string {
	return "$" + uuid.NewString()[:8]
}

// spawn creates the node, mailbox and handle of a new actor and starts its goroutine.
func spawn[M any](sys *System, parent *node, name string, factory Factory[M]) *Ref[M] {
	if name == "" {
		name = anonymousName()
	}
	n := newNode(parent, parent.path+"/"+name)
	mb := newMailbox[M]()

	ref := &Ref[M]{
		id:   uuid.NewString(),
		path: n.path,
		lc:   n.life,
	}
	ref.deliver = func(msg M) bool {
		if mb.push(msg) {
			return true
		}
		sys.logger.Debug("dead letter", "to", n.path, "message", fmt.Sprintf("%T", msg))
		return false
	}

	if !parent.addChild(n) {
		mb.close()
		n.life.terminate()
		return ref
	}

	c := &cell[M]{
		sys:     sys,
		node:    n,
		mailbox: mb,
		ref:     ref,
		factory: factory,
	}

	sys.wg.Add(1)
	go c.run()

	return ref
}

// deadRef returns a handle to an actor that never ran.
func deadRef[M any](sys *System, parent *node, name string) *Ref[M] {
	if name == "" {
		name = anonymousName()
	}
	n := newNode(parent, parent.path+"/"+name)
	n.life.terminate()
	path := n.path
	return &Ref[M]{
		id:   uuid.NewString(),
		path: path,
		lc:   n.life,
		deliver: func(msg M) bool {
			sys.logger.Debug("dead letter", "to", path, "message", fmt.Sprintf("%T", msg))
			return false
		},
	}
}
