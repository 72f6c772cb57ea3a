// Package ipc exposes daemon control and inventory queries to the CLI
// via JSON-RPC over a Unix domain socket.
package ipc
