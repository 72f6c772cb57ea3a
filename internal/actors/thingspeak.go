package actors

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"khome/internal/logging"
)

// DefaultThingSpeakURL is the production update endpoint.
const DefaultThingSpeakURL = "https://api.thingspeak.com/update"

// LogThingSpeak uploads every Nth signal to a ThingSpeak channel. The
// mapping table translates module aliases in composite signals into
// channel field names; scalar signals go to the configured out field or
// field1.
type LogThingSpeak struct {
	base
	periodic
	mapping  mapping
	client   *http.Client
	endpoint string
}

func newLogThingSpeak(cfg Config, id string, env *Env) *LogThingSpeak {
	endpoint := dataString(cfg.Data, "url")
	if endpoint == "" {
		endpoint = DefaultThingSpeakURL
	}
	return &LogThingSpeak{
		base:     newBase(cfg, id, env),
		periodic: periodic{period: periodValue(cfg.Data)},
		mapping:  newMapping(cfg.Data),
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
	}
}

func (a *LogThingSpeak) ProcessSignal(signal any) {
	if !a.due() {
		return
	}
	form := url.Values{}
	form.Set("key", dataString(a.cfg.Data, "key"))

	if composite, ok := signal.(map[string]any); ok {
		for alias, value := range composite {
			unit, ok := a.mapping[alias]
			if !ok {
				continue
			}
			if field, ok := unit["out"]; ok {
				form.Set(anyString(field), anyString(value))
			}
		}
	} else {
		field := dataString(a.cfg.Data, "out")
		if field == "" {
			field = "field1"
		}
		form.Set(field, anyString(signal))
	}

	response, err := a.client.Post(a.endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		a.env.logger().Warn("thingspeak upload failed",
			logging.String("actor", a.id), logging.Error(err))
		return
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		a.env.logger().Warn("thingspeak rejected data",
			logging.String("actor", a.id),
			logging.Int("status", response.StatusCode))
	}
}

func (a *LogThingSpeak) ApplyChanges() {
	a.reset(a.cfg.Data)
	a.mapping = newMapping(a.cfg.Data)
}
