// Package daemonctl manages the lifecycle of the detached khome daemon
// process through its pid file: launch, stop with bounded escalation,
// restart, and read-only status probes.
package daemonctl
