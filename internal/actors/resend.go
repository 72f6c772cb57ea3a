package actors

import "khome/internal/logging"

// Resend forwards signals to a module on a node, optionally translating
// the value through its mapping table.
type Resend struct {
	base
	mapping mapping
}

func newResend(cfg Config, id string, env *Env) *Resend {
	return &Resend{base: newBase(cfg, id, env), mapping: newMapping(cfg.Data)}
}

func (a *Resend) ProcessSignal(signal any) {
	out := signal
	if configured, ok := a.cfg.Data["out"]; ok {
		out = configured
	}
	nid := dataString(a.cfg.Data, "trg")
	mal := dataString(a.cfg.Data, "trg_mdl")

	if unit, ok := a.mapping.match(signal); ok {
		if mapped, ok := unit["out"]; ok {
			out = mapped
		}
		if trg, ok := unit["trg"]; ok {
			if trgMdl, ok := unit["trg_mdl"]; ok {
				nid = anyString(trg)
				mal = anyString(trgMdl)
			}
		}
	}

	if nid == "" || mal == "" || a.env.SendSignal == nil {
		return
	}
	if err := a.env.SendSignal(nid, mal, out); err != nil {
		a.env.logger().Warn("resend failed",
			logging.String("actor", a.id),
			logging.String("target", nid+"/"+mal),
			logging.Error(err))
	}
}

func (a *Resend) ApplyChanges() {
	a.mapping = newMapping(a.cfg.Data)
}
