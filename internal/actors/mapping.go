package actors

import "fmt"

// mapping is the signal translation table some actors carry: each unit is
// keyed by the inbound value and may override the outbound value and the
// target.
type mapping map[string]map[string]any

func newMapping(data map[string]any) mapping {
	m := make(mapping)
	units, _ := data["map"].([]any)
	for _, raw := range units {
		unit, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		in, ok := unit["in"]
		if !ok {
			continue
		}
		m[fmt.Sprint(in)] = unit
	}
	return m
}

// match returns the unit keyed by the signal, if any.
func (m mapping) match(signal any) (map[string]any, bool) {
	unit, ok := m[fmt.Sprint(signal)]
	return unit, ok
}
