// Package actors implements the configured signal processors: resenders,
// averagers, loggers, and schedule generators. Actors are loaded from
// stored JSON configs and registered in the inventory, where module data
// flows through their handler chains.
package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"khome/internal/inventory"
	"khome/internal/logging"
	"khome/internal/scheduler"
)

// ReadingAppender persists logged sensor values.
type ReadingAppender interface {
	AppendReading(ctx context.Context, sensor, value string) error
}

// PublishFunc sends a payload to a bus topic.
type PublishFunc func(topic string, payload any)

// SignalFunc delivers a value to a module on a node.
type SignalFunc func(nid, mal string, value any) error

// Env provides the services actors act through. Nil members disable the
// corresponding actions.
type Env struct {
	Logger     *slog.Logger
	Readings   ReadingAppender
	Publish    PublishFunc
	SendSignal SignalFunc
	Jobs       *scheduler.Scheduler
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

// Config is the stored actor description: the type selects the
// implementation, data carries type-specific settings like the source
// reference, box name, or mapping table.
type Config struct {
	ID     string         `json:"id,omitempty"`
	Type   string         `json:"type"`
	Active *bool          `json:"active,omitempty"`
	Data   map[string]any `json:"data"`
}

// ParseConfig decodes a stored actor config.
func ParseConfig(raw string) (Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse actor config: %w", err)
	}
	if cfg.Type == "" {
		return Config{}, fmt.Errorf("parse actor config: no type in %q", raw)
	}
	if cfg.Data == nil {
		cfg.Data = make(map[string]any)
	}
	return cfg, nil
}

// base carries the state shared by all actor types and most of the
// inventory.Actor surface.
type base struct {
	id     string
	typ    string
	active bool
	cfg    Config
	box    *inventory.Box
	env    *Env
}

func newBase(cfg Config, id string, env *Env) base {
	active := true
	if cfg.Active != nil {
		active = *cfg.Active
	}
	var box *inventory.Box
	if name := dataString(cfg.Data, "box"); name != "" {
		box = inventory.NewBox(name)
	}
	return base{id: id, typ: strings.ToLower(cfg.Type), active: active, cfg: cfg, box: box, env: env}
}

func (b *base) ID() string          { return b.id }
func (b *base) Type() string        { return b.typ }
func (b *base) Active() bool        { return b.active }
func (b *base) Box() *inventory.Box { return b.box }

func (b *base) SetActive(active bool) {
	b.active = active
	value := active
	b.cfg.Active = &value
}

func (b *base) SourceRef() (string, string) {
	return dataString(b.cfg.Data, "src"), dataString(b.cfg.Data, "src_mdl")
}

// handlerKey is the box key of the actor's immediate source.
func (b *base) handlerKey() string {
	src, mdl := b.SourceRef()
	return inventory.FormKey(src, mdl)
}

func (b *base) ConfigSnapshot() map[string]any {
	data := make(map[string]any, len(b.cfg.Data))
	for key, value := range b.cfg.Data {
		data[key] = value
	}
	return map[string]any{
		"id":     b.id,
		"type":   b.typ,
		"active": b.active,
		"data":   data,
	}
}

// ConfigJSON renders the config for persistence.
func (b *base) ConfigJSON() (string, error) {
	cfg := b.cfg
	cfg.ID = b.id
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode actor %s config: %w", b.id, err)
	}
	return string(raw), nil
}

// Actor extends the inventory surface with persistence and reload hooks.
type Actor interface {
	inventory.Actor
	SetActive(active bool)
	ConfigJSON() (string, error)
	// ApplyChanges re-reads derived state after a config edit.
	ApplyChanges()
}

// New instantiates the actor the config names. Returns nil when the type
// is unknown or a mandatory setting is missing; the reason is logged.
func New(cfg Config, id string, env *Env) Actor {
	logger := env.logger()
	switch strings.ToLower(cfg.Type) {
	case "resend":
		if !requireSource(cfg, id, logger) {
			return nil
		}
		return newResend(cfg, id, env)
	case "average":
		if !requireSource(cfg, id, logger) {
			return nil
		}
		if dataString(cfg.Data, "box") == "" {
			logger.Warn("actor not loaded, no box in config",
				logging.String("type", cfg.Type), logging.String("actor", id))
			return nil
		}
		return newAverage(cfg, id, env)
	case "logdb":
		if !requireSource(cfg, id, logger) {
			return nil
		}
		return newLogDB(cfg, id, env)
	case "logbus":
		if !requireSource(cfg, id, logger) {
			return nil
		}
		return newLogBus(cfg, id, env)
	case "logthingspeak":
		if !requireSource(cfg, id, logger) {
			return nil
		}
		if dataString(cfg.Data, "key") == "" {
			logger.Warn("actor not loaded, no key in config",
				logging.String("type", cfg.Type), logging.String("actor", id))
			return nil
		}
		return newLogThingSpeak(cfg, id, env)
	case "schedule":
		return newSchedule(cfg, id, env)
	}
	logger.Warn("actor not loaded, unknown type",
		logging.String("type", cfg.Type), logging.String("actor", id))
	return nil
}

// NewFromJSON parses and instantiates in one step.
func NewFromJSON(raw, id string, env *Env) Actor {
	cfg, err := ParseConfig(raw)
	if err != nil {
		env.logger().Warn("actor not loaded, invalid config",
			logging.String("actor", id), logging.Error(err))
		return nil
	}
	return New(cfg, id, env)
}

func requireSource(cfg Config, id string, logger *slog.Logger) bool {
	if dataString(cfg.Data, "src") == "" {
		logger.Warn("actor not loaded, no src in config",
			logging.String("type", cfg.Type), logging.String("actor", id))
		return false
	}
	return true
}

// dataString reads a data field as a string, rendering numbers through
// strconv so configs written by hand keep working.
func dataString(data map[string]any, key string) string {
	return anyString(data[key])
}

func anyString(value any) string {
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

// dataInt reads a data field as an int, falling back when absent or
// malformed.
func dataInt(data map[string]any, key string, fallback int) int {
	switch value := data[key].(type) {
	case float64:
		return int(value)
	case string:
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	case int:
		return value
	}
	return fallback
}
