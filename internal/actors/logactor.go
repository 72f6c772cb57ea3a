package actors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// periodic meters out a logging action: the sink runs once every period
// signals. Signals arrive on concurrent bus dispatch goroutines, so the
// counter is guarded.
type periodic struct {
	mu     sync.Mutex
	period int
	count  int
}

func periodValue(data map[string]any) int {
	period := dataInt(data, "period", 1)
	if period < 1 {
		period = 1
	}
	return period
}

// due reports whether the current signal crosses the period boundary.
func (p *periodic) due() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.count >= p.period {
		p.count = 0
		return true
	}
	return false
}

// reset reloads the period from config and restarts the count.
func (p *periodic) reset(data map[string]any) {
	period := periodValue(data)
	p.mu.Lock()
	p.period = period
	p.count = 0
	p.mu.Unlock()
}

// signalString renders a signal for persistence. Composite signals come
// out with their keys sorted so equal values compare equal as text.
func signalString(signal any) string {
	switch value := signal.(type) {
	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%q:%q", key, anyString(value[key]))
		}
		b.WriteByte('}')
		return b.String()
	case string:
		return value
	case float64, int, bool:
		return anyString(value)
	default:
		return `{"unknown-value-type":}`
	}
}
