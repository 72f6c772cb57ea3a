package actors

import "khome/internal/scheduler"

// Schedule is a generator: it files jobs with the scheduler and acts as
// the source of the values they fire into its handler chain. It has no
// bus source of its own.
type Schedule struct {
	base
}

func newSchedule(cfg Config, id string, env *Env) *Schedule {
	a := &Schedule{base: newBase(cfg, id, env)}
	a.schedule()
	return a
}

func (a *Schedule) schedule() {
	if a.env.Jobs == nil {
		return
	}
	jobs, _ := a.cfg.Data["jobs"].([]any)
	for _, raw := range jobs {
		jobCfg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, hasValue := jobCfg["value"]
		if !hasValue {
			continue
		}
		if event, ok := jobCfg["event"]; ok {
			scheduler.NewEventJob(a.id, value, scheduler.ParseScheduleTime(anyString(event))).
				Schedule(a.env.Jobs)
		} else if _, ok := jobCfg["period"]; ok {
			spec := scheduler.IntervalSpec{
				Start:  dataString(jobCfg, "start"),
				Stop:   dataString(jobCfg, "stop"),
				Period: dataString(jobCfg, "period"),
				Value:  value,
			}
			if spec.Start == "" || spec.Stop == "" {
				continue
			}
			scheduler.NewIntervalEventJob(a.id, spec).Schedule(a.env.Jobs)
		}
	}
}

// ProcessSignal is a no-op: schedule values originate from the scheduler
// and flow to the actors chained onto this one.
func (a *Schedule) ProcessSignal(any) {}

func (a *Schedule) ApplyChanges() {
	if a.env.Jobs != nil {
		a.env.Jobs.Clear(a.id)
	}
	a.schedule()
}
