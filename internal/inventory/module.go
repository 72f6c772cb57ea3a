package inventory

// ModuleTypes lists the module type codes allowed for registration.
var ModuleTypes = map[string]string{
	// Sensors
	"1": "Generic Sensor",
	"2": "IR Sensor",
	"3": "DHT Sensor",
	// Actuators
	"51": "Switch",
}

// PinsESP8266 lists the GPIO pins usable on the node hardware.
var PinsESP8266 = []string{"0", "1", "3", "2", "4", "5", "9", "10", "12", "13", "14", "15", "16"}

// ValidPin reports whether the pin exists on the node hardware.
func ValidPin(pin string) bool {
	for _, p := range PinsESP8266 {
		if p == pin {
			return true
		}
	}
	return false
}

// ValidModuleType reports whether the type code is known.
func ValidModuleType(code string) bool {
	_, ok := ModuleTypes[code]
	return ok
}

// ModuleConfig is the per-pin module description exchanged with node
// firmware. Pin, Type, and Alias are the firmware-facing fields; Name is a
// manager-side label persisted in the store.
type ModuleConfig struct {
	Pin   string `json:"p"`
	Type  string `json:"t"`
	Alias string `json:"a"`
	Name  string `json:"name,omitempty"`
}

// Module is a sensor or actuator installed on a node pin. Its alias is
// unique within the node; its box holds the last reported value.
type Module struct {
	NID    string
	Config ModuleConfig
	Box    *Box
}

// NewModule builds a module hosted by the given node.
func NewModule(nid string, cfg ModuleConfig) *Module {
	if cfg.Name == "" {
		cfg.Name = cfg.Alias
	}
	return &Module{
		NID:    nid,
		Config: cfg,
		Box:    NewBox(cfg.Alias),
	}
}

// Alias returns the module alias, its id within the node.
func (m *Module) Alias() string { return m.Config.Alias }

// BoxKey returns the key the module's box is registered under.
func (m *Module) BoxKey() string { return FormKey(m.NID, m.Config.Alias) }

// GPIOPayload filters module configs down to the firmware-facing fields
// and wraps them in the gpio envelope sent to nodes.
func GPIOPayload(configs []ModuleConfig) map[string]any {
	gpio := make([]map[string]string, 0, len(configs))
	for _, cfg := range configs {
		gpio = append(gpio, map[string]string{
			"p": cfg.Pin,
			"t": cfg.Type,
			"a": cfg.Alias,
		})
	}
	return map[string]any{"gpio": gpio}
}
