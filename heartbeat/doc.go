// Package heartbeat provides agent liveness tracking over the message
// bus.
//
// Agents run a Sender that publishes a periodic Heartbeat on
// "heartbeat.<agent-id>", carrying the agent's status and its current
// task count. The scheduler side runs a Monitor subscribed to
// "heartbeat.>" that records the last heartbeat per agent and invokes
// OnDead callbacks when an agent falls silent for longer than the
// configured timeout.
//
// The usual wiring hands dead agents back to the scheduler:
//
//	mon, _ := heartbeat.NewMonitor(heartbeat.MonitorConfig{Bus: b})
//	mon.OnDead(func(agentID string) {
//	    sched.RescheduleAgentTasks(agentID)
//	})
//	mon.Start()
//
// Requeued tasks surface as task.created events, which reassignment
// machinery picks up and routes to a surviving agent.
package heartbeat
