package ipc

import "khome/internal/inventory"

// ModuleConfig mirrors the firmware module description for IPC callers.
type ModuleConfig = inventory.ModuleConfig

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is a snapshot of the running server.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Revision      int    `json:"revision"`
	Nodes         int    `json:"nodes"`
	NodesAlive    int    `json:"nodes_alive"`
	Actors        int    `json:"actors"`
	DatabasePath  string `json:"database_path"`
	LockPath      string `json:"lock_path"`
	SocketPath    string `json:"socket_path"`
}

// StopRequest asks the daemon to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StructureRequest fetches the inventory structure. With a current
// Revision only the revision number comes back.
type StructureRequest struct {
	Revision string `json:"revision"`
}

// StructureResponse carries the structure export.
type StructureResponse struct {
	Structure map[string]any `json:"structure"`
}

// DataRequest fetches box values for the given keys, or all of them.
type DataRequest struct {
	Keys []string `json:"keys"`
}

// DataResponse carries per-key box values.
type DataResponse struct {
	Data []map[string]any `json:"data"`
}

// TimetableRequest fetches the scheduled events.
type TimetableRequest struct{}

// TimetableResponse maps rendered start times to scheduled values.
type TimetableResponse struct {
	Timetable map[string]any `json:"timetable"`
}

// PingRequest checks one node for liveness.
type PingRequest struct {
	Node string `json:"node"`
}

// PingResponse relays the node's answer. TimedOut is set when the node
// stayed silent.
type PingResponse struct {
	Answer   map[string]any `json:"answer"`
	TimedOut bool           `json:"timed_out"`
}

// SignalRequest sends a value to one module.
type SignalRequest struct {
	Node   string `json:"node"`
	Module string `json:"module"`
	Value  any    `json:"value"`
}

// SignalResponse relays the node's answer.
type SignalResponse struct {
	Answer   map[string]any `json:"answer"`
	TimedOut bool           `json:"timed_out"`
}

// ModuleAddRequest installs modules on a node.
type ModuleAddRequest struct {
	Node string         `json:"node"`
	GPIO []ModuleConfig `json:"gpio"`
}

// ModuleAddResponse reports how many modules were installed.
type ModuleAddResponse struct {
	Count int `json:"count"`
}

// ModuleRemoveRequest removes modules from a node by alias.
type ModuleRemoveRequest struct {
	Node    string   `json:"node"`
	Modules []string `json:"modules"`
}

// ModuleRemoveResponse reports how many modules were removed.
type ModuleRemoveResponse struct {
	Count int `json:"count"`
}

// ModuleRenameRequest updates a module's display name.
type ModuleRenameRequest struct {
	Node   string `json:"node"`
	Module string `json:"module"`
	Name   string `json:"name"`
}

// ModuleRenameResponse reports whether the name changed.
type ModuleRenameResponse struct {
	Count int `json:"count"`
}
