package inventory

import "fmt"

// NodeError reports a request addressed to a node the inventory does not know.
type NodeError struct {
	NID string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("there is no [%s] node in inventory", e.NID)
}

// ModuleError reports a request addressed to a module the inventory does not know.
type ModuleError struct {
	NID string
	MAL string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("there is no [%s]%s module in inventory", e.NID, e.MAL)
}
