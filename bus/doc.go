// Package bus provides the scheduler's event sink: a pub/sub message bus
// carrying lifecycle notifications (task.started, task.cancelled,
// task.created) to whatever orchestration machinery is listening.
//
// Emission is fire-and-forget. The scheduler publishes and moves on; no
// reply is ever expected, and a full subscriber buffer drops the message
// rather than blocking a lifecycle transition.
//
// Two backends are provided:
//
//   - MemoryBus: channel fan-out for tests and single-process deployments.
//     Supports trailing ">" wildcard subscriptions ("task.>").
//   - NATSBus: NATS-backed for multi-process swarms.
//
// # Usage
//
// Wire a memory bus into a scheduler and watch its lifecycle:
//
//	b := bus.NewMemoryBus(bus.DefaultConfig())
//	sub, _ := b.Subscribe("task.>")
//	go func() {
//	    for msg := range sub.Messages() {
//	        fmt.Println(msg.Subject, string(msg.Data))
//	    }
//	}()
//
// Reassignment consumers should use QueueSubscribe so that each
// task.created signal is handled by exactly one orchestrator:
//
//	sub, _ := b.QueueSubscribe("task.created", "orchestrators")
package bus
