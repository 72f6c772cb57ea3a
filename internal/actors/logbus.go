package actors

// LogBus republishes every Nth signal to a bus topic, optionally
// translating the value through its mapping table.
type LogBus struct {
	base
	periodic
	mapping mapping
}

func newLogBus(cfg Config, id string, env *Env) *LogBus {
	return &LogBus{
		base:     newBase(cfg, id, env),
		periodic: periodic{period: periodValue(cfg.Data)},
		mapping:  newMapping(cfg.Data),
	}
}

func (a *LogBus) ProcessSignal(signal any) {
	if !a.due() {
		return
	}
	out := signal
	if configured, ok := a.cfg.Data["out"]; ok {
		out = configured
	}
	target := dataString(a.cfg.Data, "trg")

	if unit, ok := a.mapping.match(signal); ok {
		if mapped, ok := unit["out"]; ok {
			out = mapped
		}
		if trg, ok := unit["trg"]; ok {
			target = anyString(trg)
		}
	}

	if target == "" || a.env.Publish == nil {
		return
	}
	a.env.Publish(target, out)
}

func (a *LogBus) ApplyChanges() {
	a.reset(a.cfg.Data)
	a.mapping = newMapping(a.cfg.Data)
}
