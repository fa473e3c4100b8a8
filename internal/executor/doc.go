// Package executor runs arm jobs one at a time.
//
// A job is the execution of one instruction. At most one job is non-terminal
// at any moment; submissions while a job runs are rejected with BUSY, except
// the privileged home instruction which preempts the running job. The worker
// loop paces at the configured control rate and checks the cooperative cancel
// flag once per tick, so cancellation and preemption take effect within one
// period without interrupting an in-flight actuator command.
package executor
