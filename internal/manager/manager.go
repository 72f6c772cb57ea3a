// Package manager is the coordination core: it routes bus traffic between
// node firmware (south) and web clients (north), keeps the inventory in
// sync, and owns the request/response sessions with nodes.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"khome/internal/actors"
	"khome/internal/bus"
	"khome/internal/inventory"
	"khome/internal/logging"
	"khome/internal/scheduler"
	"khome/internal/store"
)

// Sender publishes messages to the bus.
type Sender interface {
	Publish(topic string, message any, compact bool) (string, error)
}

// Manager wires the inventory, scheduler, and store to bus traffic.
type Manager struct {
	logger *slog.Logger
	bus    Sender
	inv    *inventory.Inventory
	sched  *scheduler.Scheduler
	store  *store.Store
}

// New creates a manager. The store may be nil when persistence is down;
// the manager then runs with in-memory state only.
func New(logger *slog.Logger, sender Sender, inv *inventory.Inventory, sched *scheduler.Scheduler, st *store.Store) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		logger: logging.WithComponent(logger, "manager"),
		bus:    sender,
		inv:    inv,
		sched:  sched,
		store:  st,
	}
}

// Inventory exposes the registry for status reporting.
func (m *Manager) Inventory() *inventory.Inventory { return m.inv }

// Scheduler exposes the timetable for status reporting.
func (m *Manager) Scheduler() *scheduler.Scheduler { return m.sched }

// ActorEnv builds the environment actors act through.
func (m *Manager) ActorEnv() *actors.Env {
	env := &actors.Env{
		Logger: m.logger,
		Publish: func(topic string, payload any) {
			if _, err := m.bus.Publish(topic, payload, false); err != nil {
				m.logger.Warn("actor publish failed", logging.String("topic", topic), logging.Error(err))
			}
		},
		SendSignal: func(nid, mal string, value any) error {
			return m.SendSignal(nid, mal, value)
		},
		Jobs: m.sched,
	}
	if m.store != nil {
		env.Readings = m.store
	}
	return env
}

// LoadActors restores the stored actor configs into the inventory and
// resolves chain-root box keys once all of them are registered.
func (m *Manager) LoadActors(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.LoadActors(ctx)
	if err != nil {
		return fmt.Errorf("load actors: %w", err)
	}
	env := m.ActorEnv()
	for _, record := range records {
		m.inv.RegisterActor(actors.NewFromJSON(record.Config, strconv.FormatInt(record.ID, 10), env))
	}
	m.inv.CorrectBoxKeys()
	m.logger.Info("configuration loaded", logging.Int("actors", len(records)))
	return nil
}

// OnConnect asks every node on the bus to introduce itself.
func (m *Manager) OnConnect() {
	if _, err := m.bus.Publish(bus.ConfigTopic(bus.AllNodes), "i!", true); err != nil {
		m.logger.Warn("node roll call failed", logging.Error(err))
	}
}

// OnMessage routes one bus message. South traffic updates the inventory
// and fires handler chains; north traffic is answered on the session's
// reply topic.
func (m *Manager) OnMessage(topic, payload string) {
	segments := bus.SplitTopic(topic)
	if len(segments) == 0 {
		return
	}

	var message any
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		m.reportError(fmt.Sprintf("request is not valid in topic [%s]: %s", topic, payload))
		return
	}

	switch segments[0] {
	case "nodes", "data":
		if len(segments) < 2 {
			m.reportError(fmt.Sprintf("wrong request format in topic [%s]: %s", topic, payload))
			return
		}
		if m.handleResponse(segments, message) {
			return
		}
		if segments[0] == "nodes" {
			m.handleNodeData(segments[1], message)
		} else if len(segments) >= 3 {
			m.handleModuleData(segments[1], segments[2], message)
		}
	case "manager":
		if len(segments) == 1 {
			m.processRequest(payload)
		}
	}
}

func (m *Manager) reportError(text string) {
	m.logger.Warn(text)
	if _, err := m.bus.Publish(bus.TopicError, text, false); err != nil {
		m.logger.Warn("error report failed", logging.Error(err))
	}
}

// handleResponse completes an in-flight node session. Returns true when
// the message is consumed: module data still flows on to its box even
// when it answers a session.
func (m *Manager) handleResponse(segments []string, message any) bool {
	node := m.inv.Node(segments[1])
	if node == nil {
		return false
	}
	node.MarkAlive(true)
	if !node.Session.Active() {
		return false
	}
	response, _ := message.(map[string]any)
	node.Session.Complete(response)
	return segments[0] != "data"
}

// handleNodeData processes a node hello: the node is registered and asked
// for its module setup, which is then uploaded to the inventory.
func (m *Manager) handleNodeData(nid string, message any) {
	hello, ok := message.(map[string]any)
	if !ok {
		return
	}
	if _, ok := hello["id"]; !ok {
		return
	}
	node := m.inv.RegisterNode(hello)
	if node == nil {
		return
	}

	response := m.sendConfigToNode(node, map[string]any{"get": "gpio"}, "")
	if response == nil {
		return
	}
	gpio, _ := response["gpio"].([]any)
	names := make([]string, 0, len(gpio))
	for _, raw := range gpio {
		cfg, ok := moduleConfig(raw)
		if !ok {
			continue
		}
		m.applyStoredName(node.ID, &cfg)
		if module := m.inv.RegisterModule(node, cfg); module != nil {
			names = append(names, module.Config.Name)
		}
	}
	m.logger.Info("node modules uploaded to inventory",
		logging.String("node", nid), logging.Any("modules", names))
}

// handleModuleData stores a module reading in its box and fires the
// handler chain. Firmware nacks are dropped.
func (m *Manager) handleModuleData(nid, mal string, message any) {
	node := m.inv.Node(nid)
	if node == nil {
		return
	}
	module := node.Module(mal)
	if module == nil {
		return
	}
	value := message
	if composite, ok := message.(map[string]any); ok {
		if _, nack := composite["nack"]; nack {
			return
		}
		if ack, ok := composite["ack"]; ok {
			value = ack
		}
	}
	module.Box.SetValue(value)
	m.inv.HandleValue(inventory.FormKey(nid, mal), value)
}

// SendSignal publishes a value to one module and waits for the node's
// answer.
func (m *Manager) SendSignal(nid, mal string, value any) error {
	response, err := m.Signal(nid, mal, value, "")
	if err != nil {
		return err
	}
	if response == nil {
		return fmt.Errorf("no answer from %s/%s", nid, mal)
	}
	return nil
}

// sendSignalToModule publishes on the module's signal topic and awaits the
// node session. Returns nil on timeout.
func (m *Manager) sendSignalToModule(node *inventory.Node, mal string, value any, sid string) map[string]any {
	payload, err := m.bus.Publish(bus.SignalTopic(node.ID, mal), value, true)
	if err != nil {
		m.logger.Warn("signal publish failed",
			logging.String("target", node.ID+"/"+mal), logging.Error(err))
		return nil
	}
	return node.Session.Await(payload, sid)
}

// sendConfigToNode publishes on the node's config topic and awaits the
// node session. Returns nil on timeout.
func (m *Manager) sendConfigToNode(node *inventory.Node, cfg any, sid string) map[string]any {
	payload, err := m.bus.Publish(bus.ConfigTopic(node.ID), cfg, true)
	if err != nil {
		m.logger.Warn("config publish failed",
			logging.String("node", node.ID), logging.Error(err))
		return nil
	}
	return node.Session.Await(payload, sid)
}

// applyStoredName restores the persisted display name for a module.
func (m *Manager) applyStoredName(nid string, cfg *inventory.ModuleConfig) {
	if m.store == nil {
		return
	}
	name, err := m.store.ModuleName(context.Background(), nid, cfg.Alias)
	if err != nil {
		m.logger.Warn("module name lookup failed",
			logging.String("module", nid+"/"+cfg.Alias), logging.Error(err))
		return
	}
	if name != "" {
		cfg.Name = name
	}
}

// moduleConfig extracts the firmware module description from decoded JSON.
func moduleConfig(raw any) (inventory.ModuleConfig, bool) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return inventory.ModuleConfig{}, false
	}
	cfg := inventory.ModuleConfig{
		Pin:   text(fields["p"]),
		Type:  text(fields["t"]),
		Alias: text(fields["a"]),
		Name:  text(fields["name"]),
	}
	if cfg.Pin == "" || cfg.Type == "" || cfg.Alias == "" {
		return inventory.ModuleConfig{}, false
	}
	return cfg, true
}

func text(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
