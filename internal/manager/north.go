package manager

import (
	"context"
	"encoding/json"
	"fmt"

	"khome/internal/bus"
	"khome/internal/inventory"
	"khome/internal/logging"
)

// northRequest is the web client request envelope:
// {"session": <sid>, "request": <command>, "params": ...}. Params is an
// object for most commands but a plain key list for get-data, so it is
// decoded per command.
type northRequest struct {
	Session string          `json:"session"`
	Request string          `json:"request"`
	Params  json.RawMessage `json:"params"`
}

// paramsMap decodes the params object. Missing params yield an empty map.
func (r northRequest) paramsMap() map[string]any {
	var params map[string]any
	if len(r.Params) > 0 {
		_ = json.Unmarshal(r.Params, &params)
	}
	if params == nil {
		params = make(map[string]any)
	}
	return params
}

// paramsList decodes the params key list.
func (r northRequest) paramsList() []string {
	var raw []any
	if len(r.Params) > 0 {
		_ = json.Unmarshal(r.Params, &raw)
	}
	keys := make([]string, 0, len(raw))
	for _, key := range raw {
		keys = append(keys, text(key))
	}
	return keys
}

// processRequest runs one north command and answers on the session's
// reply topic. Failures travel back as {"nack": reason}; a node that does
// not answer in time as {"nack": "timeout"}.
func (m *Manager) processRequest(payload string) {
	var request northRequest
	if err := json.Unmarshal([]byte(payload), &request); err != nil {
		m.reportError(fmt.Sprintf("request is not valid: %s", payload))
		return
	}
	if request.Session == "" {
		m.reportError(fmt.Sprintf("key session is absent in the request: %s", payload))
		return
	}

	var answer any
	var err error
	switch request.Request {
	case "get-structure":
		answer = m.Structure(text(request.paramsMap()["revision"]))
	case "get-data":
		answer = map[string]any{"modules-data": m.Data(request.paramsList())}
	case "get-timetable":
		answer = map[string]any{"timetable": m.Timetable()}
	case "ping":
		answer, err = m.Ping(text(request.paramsMap()["node"]), request.Session)
	case "signal":
		params := request.paramsMap()
		value, ok := params["value"]
		if !ok {
			err = fmt.Errorf("key value is absent in the request")
			break
		}
		answer, err = m.Signal(text(params["node"]), text(params["module"]), value, request.Session)
	case "add-module", "del-module", "edit-module":
		var count int
		count, err = m.manageModules(request)
		if err == nil {
			answer = map[string]any{"ack": fmt.Sprintf("%d", count)}
		}
	default:
		err = fmt.Errorf("unknown request %q", request.Request)
	}

	if err != nil {
		answer = map[string]any{"nack": err.Error()}
	}
	m.answerNorth(request.Session, answer)
}

// answerNorth publishes the answer on the session's reply topic. A nil
// answer means the node never replied.
func (m *Manager) answerNorth(sid string, answer any) {
	if isNil(answer) {
		answer = map[string]any{"nack": "timeout"}
	}
	if _, err := m.bus.Publish(bus.ManagerReplyTopic(sid), answer, false); err != nil {
		m.logger.Warn("north answer failed", logging.String("session", sid), logging.Error(err))
	}
}

func isNil(answer any) bool {
	if answer == nil {
		return true
	}
	if m, ok := answer.(map[string]any); ok {
		return m == nil
	}
	return false
}

// Structure exports the inventory. When the client's revision is current
// only the revision number goes back.
func (m *Manager) Structure(revision string) map[string]any {
	if revision != "" && revision == fmt.Sprintf("%d", m.inv.Revision()) {
		return map[string]any{"revision": m.inv.Revision()}
	}
	return m.inv.StructureSnapshot()
}

// Data exports box values for the requested keys, or all of them.
func (m *Manager) Data(keys []string) []map[string]any {
	return m.inv.DataSnapshot(keys...)
}

// Timetable exports the scheduled events.
func (m *Manager) Timetable() map[string]any {
	return m.sched.Timetable()
}

// Ping forwards a ping to the node and relays its answer. A nil answer
// with nil error means the node did not reply in time.
func (m *Manager) Ping(nid, sid string) (map[string]any, error) {
	node := m.inv.Node(nid)
	if node == nil {
		return nil, &inventory.NodeError{NID: nid}
	}
	return m.sendConfigToNode(node, map[string]any{"ping": ""}, sid), nil
}

// Signal forwards a value to one module and relays the node's answer. A
// nil answer with nil error means the node did not reply in time.
func (m *Manager) Signal(nid, mal string, value any, sid string) (map[string]any, error) {
	node := m.inv.Node(nid)
	if node == nil || node.Module(mal) == nil {
		return nil, &inventory.ModuleError{NID: nid, MAL: mal}
	}
	return m.sendSignalToModule(node, mal, value, sid), nil
}

func (m *Manager) manageModules(request northRequest) (int, error) {
	params := request.paramsMap()
	nid := text(params["node"])

	switch request.Request {
	case "add-module":
		raw, ok := params["gpio"].([]any)
		if !ok {
			return 0, fmt.Errorf("key gpio is absent in the request")
		}
		var configs []inventory.ModuleConfig
		for _, item := range raw {
			if cfg, ok := moduleConfig(item); ok {
				configs = append(configs, cfg)
			}
		}
		return m.AddModules(nid, configs, request.Session)
	case "del-module":
		raw, ok := params["modules"].([]any)
		if !ok {
			return 0, fmt.Errorf("key modules is absent in the request")
		}
		aliases := make([]string, 0, len(raw))
		for _, alias := range raw {
			aliases = append(aliases, text(alias))
		}
		return m.DelModules(nid, aliases, request.Session)
	case "edit-module":
		gpio, ok := params["gpio"].(map[string]any)
		if !ok {
			return 0, fmt.Errorf("key gpio is absent in the request")
		}
		name, ok := gpio["name"]
		if !ok {
			return 0, fmt.Errorf("key name is absent in the request")
		}
		return m.RenameModule(nid, text(params["module"]), text(name))
	}
	return 0, nil
}

// AddModules uploads an extended module layout to the node and, on its
// ack, registers the additions. Configs with unknown pins or types, pins
// already in use, or taken aliases are skipped.
func (m *Manager) AddModules(nid string, configs []inventory.ModuleConfig, sid string) (int, error) {
	node := m.inv.Node(nid)
	if node == nil {
		return 0, &inventory.NodeError{NID: nid}
	}

	pinsUsed := make(map[string]bool)
	for _, pin := range node.PinsUsed() {
		pinsUsed[pin] = true
	}
	var toAdd []inventory.ModuleConfig
	for _, cfg := range configs {
		if !inventory.ValidPin(cfg.Pin) || !inventory.ValidModuleType(cfg.Type) {
			continue
		}
		if pinsUsed[cfg.Pin] || node.Module(cfg.Alias) != nil {
			continue
		}
		pinsUsed[cfg.Pin] = true
		toAdd = append(toAdd, cfg)
	}
	if len(toAdd) == 0 {
		return 0, nil
	}

	response := m.sendConfigToNode(node,
		inventory.GPIOPayload(append(node.ModuleConfigs(), toAdd...)), sid)
	if !southSuccess(response) {
		return 0, nil
	}
	count := 0
	for _, cfg := range toAdd {
		if m.inv.RegisterModule(node, cfg) != nil {
			count++
		}
	}
	return count, nil
}

// DelModules uploads a reduced module layout to the node and, on its ack,
// wipes the removed modules and their stored names.
func (m *Manager) DelModules(nid string, aliases []string, sid string) (int, error) {
	node := m.inv.Node(nid)
	if node == nil {
		return 0, &inventory.NodeError{NID: nid}
	}
	doomed := make(map[string]bool, len(aliases))
	for _, alias := range aliases {
		doomed[alias] = true
	}

	var remaining []inventory.ModuleConfig
	var toDelete []string
	for _, cfg := range node.ModuleConfigs() {
		if doomed[cfg.Alias] {
			toDelete = append(toDelete, cfg.Alias)
		} else {
			remaining = append(remaining, cfg)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	response := m.sendConfigToNode(node, inventory.GPIOPayload(remaining), sid)
	if !southSuccess(response) {
		return 0, nil
	}
	count := 0
	for _, alias := range toDelete {
		if m.inv.WipeModule(node, alias) {
			count++
			m.forgetStoredName(node.ID, alias)
		}
	}
	return count, nil
}

// RenameModule updates a module's display name. The name lives
// manager-side only, so no node round trip is needed.
func (m *Manager) RenameModule(nid, mal, name string) (int, error) {
	node := m.inv.Node(nid)
	if node == nil {
		return 0, &inventory.NodeError{NID: nid}
	}
	module := node.Module(mal)
	if module == nil {
		return 0, &inventory.ModuleError{NID: nid, MAL: mal}
	}
	if module.Config.Name == name {
		return 0, nil
	}
	module.Config.Name = name
	m.inv.Changed()
	if m.store != nil {
		if err := m.store.SetModuleName(context.Background(), nid, mal, name); err != nil {
			m.logger.Warn("module name not stored",
				logging.String("module", nid+"/"+mal), logging.Error(err))
			return 0, fmt.Errorf("there are problems in the storage")
		}
	}
	return 1, nil
}

func (m *Manager) forgetStoredName(nid, mal string) {
	if m.store == nil {
		return
	}
	if err := m.store.ForgetModule(context.Background(), nid, mal); err != nil {
		m.logger.Warn("stored module name not removed",
			logging.String("module", nid+"/"+mal), logging.Error(err))
	}
}

// southSuccess reports whether a node answered without a nack.
func southSuccess(response map[string]any) bool {
	if response == nil {
		return false
	}
	_, nack := response["nack"]
	return !nack
}
