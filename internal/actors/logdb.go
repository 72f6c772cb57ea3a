package actors

import (
	"context"
	"time"

	"khome/internal/logging"
)

// LogDB persists every Nth signal from its source into the readings table,
// keyed by the source box key.
type LogDB struct {
	base
	periodic
}

func newLogDB(cfg Config, id string, env *Env) *LogDB {
	return &LogDB{base: newBase(cfg, id, env), periodic: periodic{period: periodValue(cfg.Data)}}
}

func (a *LogDB) ProcessSignal(signal any) {
	if !a.due() || a.env.Readings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.env.Readings.AppendReading(ctx, a.handlerKey(), signalString(signal)); err != nil {
		a.env.logger().Warn("reading not stored",
			logging.String("actor", a.id), logging.Error(err))
	}
}

func (a *LogDB) ApplyChanges() {
	a.reset(a.cfg.Data)
}
