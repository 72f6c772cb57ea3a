package inventory

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"khome/internal/logging"
)

// Actor is a configured signal processor registered in the inventory.
// Implementations live in the actors package; the inventory only needs
// identity, activity, the optional output box, and the configured source.
type Actor interface {
	ID() string
	Type() string
	Active() bool
	// Box returns the actor's output box, or nil when it produces none.
	Box() *Box
	// SourceRef returns the configured signal source: a node or actor id
	// plus an optional module alias. An empty src means the actor is a
	// generator fed by the system rather than by bus traffic.
	SourceRef() (src, mdl string)
	// ConfigSnapshot exports the actor's configuration for structure dumps.
	ConfigSnapshot() map[string]any
	ProcessSignal(value any)
}

// Inventory is the registry of nodes, modules, boxes, and actors. The
// revision counter is bumped on every structural change so clients can
// cheaply detect staleness.
type Inventory struct {
	sessionTimeout time.Duration
	logger         *slog.Logger

	mu       sync.RWMutex
	revision int
	nodes    map[string]*Node
	actors   map[string]Actor
	handlers map[string][]Actor
	boxes    map[string][]*Box
}

// New creates an empty inventory. sessionTimeout bounds node exchanges.
func New(sessionTimeout time.Duration, logger *slog.Logger) *Inventory {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Inventory{
		sessionTimeout: sessionTimeout,
		logger:         logging.WithComponent(logger, "inventory"),
		nodes:          make(map[string]*Node),
		actors:         make(map[string]Actor),
		handlers:       make(map[string][]Actor),
		boxes:          make(map[string][]*Box),
	}
}

// Revision returns the current structure revision.
func (inv *Inventory) Revision() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.revision
}

// Changed bumps the structure revision.
func (inv *Inventory) Changed() {
	inv.mu.Lock()
	inv.revision++
	inv.mu.Unlock()
}

// RegisterNode creates a node from its hello config and registers it.
// Returns nil when a node with the same id is already known.
func (inv *Inventory) RegisterNode(cfg map[string]any) *Node {
	node := NewNode(cfg, inv.sessionTimeout)
	if node.ID == "" {
		return nil
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, exists := inv.nodes[node.ID]; exists {
		return nil
	}
	inv.nodes[node.ID] = node
	inv.revision++
	return node
}

// Node returns the node with the given id, or nil.
func (inv *Inventory) Node(nid string) *Node {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.nodes[nid]
}

// Nodes returns all registered nodes ordered by id.
func (inv *Inventory) Nodes() []*Node {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	ids := make([]string, 0, len(inv.nodes))
	for id := range inv.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, inv.nodes[id])
	}
	return nodes
}

// RegisterModule installs a module on the node and registers its box.
// Returns nil when the alias is already taken.
func (inv *Inventory) RegisterModule(node *Node, cfg ModuleConfig) *Module {
	module := node.AddModule(cfg)
	if module == nil {
		return nil
	}
	inv.mu.Lock()
	key := module.BoxKey()
	inv.boxes[key] = append(inv.boxes[key], module.Box)
	inv.revision++
	inv.mu.Unlock()
	return module
}

// WipeModule removes a module and every box registered under its key.
func (inv *Inventory) WipeModule(node *Node, mal string) bool {
	if node == nil || !node.DelModule(mal) {
		return false
	}
	inv.mu.Lock()
	delete(inv.boxes, FormKey(node.ID, mal))
	inv.revision++
	inv.mu.Unlock()
	return true
}

// RegisterActor adds an actor to the registry: to the actor list, to the
// handler chain for its source key, and its box under the chain root key.
// A nil actor (rejected by the factory) is ignored.
func (inv *Inventory) RegisterActor(actor Actor) Actor {
	if actor == nil {
		return nil
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.actors[actor.ID()] = actor
	if key, ok := handlerKey(actor); ok {
		inv.handlers[key] = append(inv.handlers[key], actor)
	}
	if box := actor.Box(); box != nil {
		key := inv.boxKeyLocked(actor, 0)
		inv.boxes[key] = append(inv.boxes[key], box)
	}
	inv.revision++
	return actor
}

// WipeActor removes an actor, its handler registration, and its box.
func (inv *Inventory) WipeActor(actor Actor) {
	if actor == nil {
		return
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if box := actor.Box(); box != nil {
		key := inv.boxKeyLocked(actor, 0)
		inv.boxes[key] = removeBox(inv.boxes[key], box)
		if len(inv.boxes[key]) == 0 {
			delete(inv.boxes, key)
		}
	}
	if key, ok := handlerKey(actor); ok {
		inv.handlers[key] = removeActor(inv.handlers[key], actor)
		if len(inv.handlers[key]) == 0 {
			delete(inv.handlers, key)
		}
	}
	delete(inv.actors, actor.ID())
	inv.revision++
}

// Actor returns the registered actor with the given id, or nil.
func (inv *Inventory) Actor(id string) Actor {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.actors[id]
}

// Actors returns all registered actors ordered by id.
func (inv *Inventory) Actors() []Actor {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	ids := make([]string, 0, len(inv.actors))
	for id := range inv.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	actors := make([]Actor, 0, len(ids))
	for _, id := range ids {
		actors = append(actors, inv.actors[id])
	}
	return actors
}

// HandleValue runs the handler chain registered for the key: each active
// actor processes the value, and actors with boxes feed their own chains
// in turn.
func (inv *Inventory) HandleValue(key string, value any) {
	inv.mu.RLock()
	chain := append([]Actor(nil), inv.handlers[key]...)
	inv.mu.RUnlock()

	for _, actor := range chain {
		if actor.Active() {
			actor.ProcessSignal(value)
		}
		if box := actor.Box(); box != nil {
			inv.HandleValue(actor.ID(), box.Value())
		}
	}
}

// CorrectBoxKeys retries box registration for actors whose chain root was
// unknown when they were loaded. Actors still without a source are wiped.
func (inv *Inventory) CorrectBoxKeys() {
	inv.mu.Lock()
	pending := inv.boxes[BoxKeyNoSource]
	delete(inv.boxes, BoxKeyNoSource)
	owners := make(map[*Box]Actor, len(pending))
	for _, actor := range inv.actors {
		if box := actor.Box(); box != nil {
			owners[box] = actor
		}
	}
	var orphans []Actor
	for _, box := range pending {
		actor := owners[box]
		if actor == nil {
			continue
		}
		key := inv.boxKeyLocked(actor, 0)
		if key == BoxKeyNoSource {
			orphans = append(orphans, actor)
			continue
		}
		inv.boxes[key] = append(inv.boxes[key], box)
	}
	inv.mu.Unlock()

	for _, actor := range orphans {
		inv.logger.Warn("actor wiped, no source found",
			logging.String("type", actor.Type()),
			logging.String("actor", actor.ID()))
		inv.WipeActor(actor)
	}
}

// DataSnapshot exports box values. With no keys, every key is exported.
func (inv *Inventory) DataSnapshot(keys ...string) []map[string]any {
	inv.mu.RLock()
	if len(keys) == 0 {
		keys = make([]string, 0, len(inv.boxes))
		for key := range inv.boxes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
	}
	type entry struct {
		key   string
		boxes []*Box
	}
	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, entry{key: key, boxes: append([]*Box(nil), inv.boxes[key]...)})
	}
	inv.mu.RUnlock()

	result := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		values := make(map[string]any, len(e.boxes))
		for _, box := range e.boxes {
			values[box.Name()] = box.Value()
		}
		result = append(result, map[string]any{"key": e.key, "boxes": values})
	}
	return result
}

// StructureSnapshot exports the revision, allowed module types, and the
// configs of every node and actor.
func (inv *Inventory) StructureSnapshot() map[string]any {
	nodes := inv.Nodes()
	actors := inv.Actors()

	nodeConfigs := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		nodeConfigs = append(nodeConfigs, node.ConfigSnapshot())
	}
	actorConfigs := make([]map[string]any, 0, len(actors))
	for _, actor := range actors {
		actorConfigs = append(actorConfigs, actor.ConfigSnapshot())
	}
	return map[string]any{
		"revision":     inv.Revision(),
		"module-types": ModuleTypes,
		"nodes":        nodeConfigs,
		"actors":       actorConfigs,
	}
}

// boxKeyLocked resolves the chain-root box key for an actor: the module it
// ultimately listens to, BoxKeySystem for generators, or BoxKeyNoSource
// when the source actor is not (yet) registered. Callers hold inv.mu.
func (inv *Inventory) boxKeyLocked(actor Actor, depth int) string {
	if depth > len(inv.actors)+1 {
		// Cycle in actor sources.
		return BoxKeyNoSource
	}
	src, mdl := actor.SourceRef()
	if src == "" {
		return BoxKeySystem
	}
	if mdl != "" {
		return FormKey(src, mdl)
	}
	if source, ok := inv.actors[src]; ok {
		return inv.boxKeyLocked(source, depth+1)
	}
	return BoxKeyNoSource
}

func handlerKey(actor Actor) (string, bool) {
	src, mdl := actor.SourceRef()
	if src == "" {
		return "", false
	}
	return FormKey(src, mdl), true
}

func removeActor(actors []Actor, target Actor) []Actor {
	filtered := actors[:0]
	for _, actor := range actors {
		if actor != target {
			filtered = append(filtered, actor)
		}
	}
	return filtered
}

func removeBox(boxes []*Box, target *Box) []*Box {
	filtered := boxes[:0]
	for _, box := range boxes {
		if box != target {
			filtered = append(filtered, box)
		}
	}
	return filtered
}
