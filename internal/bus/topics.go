package bus

import "strings"

// Topic layout shared with node firmware and web clients.
const (
	// TopicManager carries north requests addressed to the manager.
	TopicManager = "/manager"
	// TopicNodes carries node-level traffic (hello, config responses).
	TopicNodes = "/nodes"
	// TopicData carries module readings.
	TopicData = "/data"
	// TopicError receives reports about malformed traffic.
	TopicError = "/error"
)

// AllNodes addresses every node on the config channel.
const AllNodes = "~"

// ConfigTopic returns the config channel for one node (or AllNodes).
func ConfigTopic(nid string) string {
	return "/config/" + nid
}

// SignalTopic returns the signal channel for one module.
func SignalTopic(nid, mal string) string {
	return "/signal/" + nid + "/" + mal
}

// ManagerReplyTopic returns the reply channel for a north session.
func ManagerReplyTopic(sid string) string {
	return TopicManager + "/" + sid
}

// SplitTopic splits a topic path into its non-empty segments.
func SplitTopic(topic string) []string {
	parts := strings.Split(topic, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
