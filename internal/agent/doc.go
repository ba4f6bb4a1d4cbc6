// Package agent runs the host agent's long-lived engines.
//
// The Provisioner pops jobs from the work queue, the Operator applies guest
// operations received on the operation channel, and the Reporter emits
// heartbeats. Each engine owns its own state and runs on one goroutine
// under a Supervisor; cancelling the Supervisor's context stops them all
// after the command in flight finishes.
//
// Every processed command yields exactly one outcome, success or failure.
// Messages that cannot be parsed and actions the engine does not know are
// logged and dropped without an outcome. A panic while handling a command
// is recovered at the iteration boundary and reported as a failure.
package agent
