// Package actor provides the in-process message-passing substrate used by the
// telemetry core.
//
// Every entity (device, group, directory, query) runs as an actor: a single
// goroutine that owns its state and processes messages from its own mailbox
// one at a time. Entities never share state; they communicate only by sending
// messages through typed references.
//
// # Guarantees
//
//   - Tell never blocks. Mailboxes are unbounded FIFO queues.
//   - Messages between one sender and one receiver are delivered in send order.
//     No ordering exists across different senders.
//   - Messages to a stopped actor are dropped and logged as dead letters.
//   - Watch delivers a caller-chosen message to the watcher when the target
//     stops. Watching an already-stopped target delivers it immediately.
//   - Children are stopped (and awaited) before their parent terminates.
//   - A panic inside a handler stops that actor only; its watchers are notified.
//
// # Usage
//
//	sys := actor.NewSystem("telemetry", log)
//	ref := actor.Spawn(sys, "manager", iot.NewManager(sink))
//
//	reply, err := actor.Ask(ctx, ref, func(replyTo *actor.Ref[iot.ReplyDeviceList]) iot.ManagerCommand {
//	    return iot.ListDevices{RequestID: 1, GroupID: "kitchen", ReplyTo: replyTo}
//	})
//
//	_ = sys.Shutdown(ctx)
//
// # Thread Safety
//
// Ref, Inbox and System are safe for concurrent use. A Context must only be used
// from the goroutine of the actor it belongs to (inside the factory or Receive).
package actor
