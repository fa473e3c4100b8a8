// Package telemetry distributes container events to SSE subscribers.
//
// The hub keeps a bounded replay buffer per job so clients can resume with
// Last-Event-ID, sends periodic heartbeats while subscribers are connected,
// and drops events to slow clients rather than blocking publishers.
package telemetry
