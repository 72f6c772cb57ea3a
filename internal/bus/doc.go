// Package bus connects the manager to the MQTT broker shared with node
// firmware and web clients, repairing the firmware's quote-less JSON
// dialect on receive and compacting payloads on send.
package bus
