// Package inventory tracks the nodes, modules, boxes, and actors known to
// the manager: what hardware is on the bus, the last value every module
// reported, and which actors handle which signal sources.
package inventory
