package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Stop requests the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Khome.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Khome.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Structure retrieves the inventory export. Passing the last seen
// revision skips the payload when nothing changed.
func (c *Client) Structure(revision string) (*StructureResponse, error) {
	var resp StructureResponse
	if err := c.client.Call("Khome.Structure", StructureRequest{Revision: revision}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Data retrieves box values for the given keys, or all boxes.
func (c *Client) Data(keys []string) (*DataResponse, error) {
	var resp DataResponse
	if err := c.client.Call("Khome.Data", DataRequest{Keys: keys}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Timetable retrieves the scheduled events.
func (c *Client) Timetable() (*TimetableResponse, error) {
	var resp TimetableResponse
	if err := c.client.Call("Khome.Timetable", TimetableRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks a node for liveness.
func (c *Client) Ping(node string) (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Khome.Ping", PingRequest{Node: node}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signal sends a value to a module and returns the node's answer.
func (c *Client) Signal(node, module string, value any) (*SignalResponse, error) {
	var resp SignalResponse
	req := SignalRequest{Node: node, Module: module, Value: value}
	if err := c.client.Call("Khome.Signal", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModuleAdd installs modules on a node.
func (c *Client) ModuleAdd(node string, gpio []ModuleConfig) (*ModuleAddResponse, error) {
	var resp ModuleAddResponse
	req := ModuleAddRequest{Node: node, GPIO: gpio}
	if err := c.client.Call("Khome.ModuleAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModuleRemove removes modules from a node by alias.
func (c *Client) ModuleRemove(node string, modules []string) (*ModuleRemoveResponse, error) {
	var resp ModuleRemoveResponse
	req := ModuleRemoveRequest{Node: node, Modules: modules}
	if err := c.client.Call("Khome.ModuleRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModuleRename updates a module's display name.
func (c *Client) ModuleRename(node, module, name string) (*ModuleRenameResponse, error) {
	var resp ModuleRenameResponse
	req := ModuleRenameRequest{Node: node, Module: module, Name: name}
	if err := c.client.Call("Khome.ModuleRename", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
