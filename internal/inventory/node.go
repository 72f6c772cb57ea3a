package inventory

import (
	"sort"
	"sync"
	"time"
)

// Node is one ESP8266 unit on the bus, identified by the id it announces
// in its hello message.
type Node struct {
	ID      string
	Session *Session

	mu       sync.RWMutex
	config   map[string]any
	modules  map[string]*Module
	alive    bool
	lastSeen time.Time
}

// NewNode builds a node from its hello config. The config must carry an id.
func NewNode(cfg map[string]any, sessionTimeout time.Duration) *Node {
	id, _ := cfg["id"].(string)
	node := &Node{
		ID:      id,
		config:  cfg,
		modules: make(map[string]*Module),
	}
	node.Session = newSession(node, sessionTimeout)
	return node
}

// MarkAlive records node liveness; true also refreshes the last-seen time.
func (n *Node) MarkAlive(alive bool) {
	n.mu.Lock()
	n.alive = alive
	if alive {
		n.lastSeen = time.Now()
	}
	n.mu.Unlock()
}

// Alive reports whether the node answered recently.
func (n *Node) Alive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.alive
}

// LastSeen returns the time of the node's latest sign of life.
func (n *Node) LastSeen() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastSeen
}

// AddModule registers a module on the node. Returns nil when the alias is
// already taken.
func (n *Node) AddModule(cfg ModuleConfig) *Module {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.modules[cfg.Alias]; exists {
		return nil
	}
	module := NewModule(n.ID, cfg)
	n.modules[cfg.Alias] = module
	return module
}

// DelModule removes a module by alias.
func (n *Node) DelModule(mal string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.modules[mal]; !exists {
		return false
	}
	delete(n.modules, mal)
	return true
}

// Module returns the module with the given alias, or nil.
func (n *Node) Module(mal string) *Module {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.modules[mal]
}

// ModuleConfigs returns the configs of all installed modules, ordered by alias.
func (n *Node) ModuleConfigs() []ModuleConfig {
	n.mu.RLock()
	defer n.mu.RUnlock()
	aliases := make([]string, 0, len(n.modules))
	for alias := range n.modules {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	configs := make([]ModuleConfig, 0, len(aliases))
	for _, alias := range aliases {
		configs = append(configs, n.modules[alias].Config)
	}
	return configs
}

// PinsUsed returns the pins occupied by installed modules.
func (n *Node) PinsUsed() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	pins := make([]string, 0, len(n.modules))
	for _, module := range n.modules {
		pins = append(pins, module.Config.Pin)
	}
	return pins
}

// ConfigSnapshot returns the node's hello config with liveness and the
// installed module list injected, for structure exports.
func (n *Node) ConfigSnapshot() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	snapshot := make(map[string]any, len(n.config)+3)
	for key, value := range n.config {
		snapshot[key] = value
	}
	snapshot["alive"] = n.alive
	if !n.lastSeen.IsZero() {
		snapshot["lta"] = n.lastSeen.Unix()
	}
	gpio := make([]ModuleConfig, 0, len(n.modules))
	aliases := make([]string, 0, len(n.modules))
	for alias := range n.modules {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		gpio = append(gpio, n.modules[alias].Config)
	}
	snapshot["gpio"] = gpio
	return snapshot
}
