package actors

import (
	"fmt"
	"strconv"
	"sync"
)

const defaultAverageDepth = 5

// Average keeps a sliding window per signal key and publishes the window
// mean into its box. Composite signals are averaged field by field. The
// window is guarded: signals for one actor arrive on concurrent bus
// dispatch goroutines.
type Average struct {
	base
	mu      sync.Mutex
	depth   int
	history map[string][]float64
}

func newAverage(cfg Config, id string, env *Env) *Average {
	depth := dataInt(cfg.Data, "depth", defaultAverageDepth)
	if depth < 1 {
		depth = defaultAverageDepth
	}
	return &Average{
		base:    newBase(cfg, id, env),
		depth:   depth,
		history: make(map[string][]float64),
	}
}

func (a *Average) calc(key string, value float64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	window := append(a.history[key], value)
	if len(window) > a.depth {
		window = window[1:]
	}
	a.history[key] = window

	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return fmt.Sprintf("%.1f", sum/float64(len(window)))
}

func (a *Average) ProcessSignal(signal any) {
	switch value := signal.(type) {
	case map[string]any:
		averaged := make(map[string]any, len(value))
		for key, raw := range value {
			number, err := strconv.ParseFloat(anyString(raw), 64)
			if err != nil {
				averaged[key] = raw
				continue
			}
			averaged[key] = a.calc(key, number)
		}
		a.box.SetValue(averaged)
	default:
		number, err := strconv.ParseFloat(anyString(signal), 64)
		if err != nil {
			return
		}
		a.box.SetValue(a.calc(".", number))
	}
}

func (a *Average) ApplyChanges() {
	depth := dataInt(a.cfg.Data, "depth", defaultAverageDepth)
	if depth < 1 {
		depth = defaultAverageDepth
	}
	a.mu.Lock()
	a.depth = depth
	a.history = make(map[string][]float64)
	a.mu.Unlock()
}
