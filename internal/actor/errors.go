package actor

import "errors"

// Sentinel errors for the actor substrate.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, actor.ErrTerminated) {
//	    // target stopped before replying
//	}
var (
	// ErrNoMessage is returned when an Inbox receive gives up before a message arrives.
	ErrNoMessage = errors.New("actor: no message received")

	// ErrTerminated is returned by Ask when the target stops before replying.
	ErrTerminated = errors.New("actor: target terminated")

	// ErrShutdownTimeout is returned when actors are still running after the
	// shutdown context expires.
	ErrShutdownTimeout = errors.New("actor: shutdown timed out")
)
