package bus

import "strings"

// RepairJSON restores quoting in the compacted JSON dialect emitted by node
// firmware, which strips all double quotes to shrink packets. A message
// that already contains quotes is returned unchanged.
func RepairJSON(message string) string {
	if strings.Contains(message, `"`) {
		return message
	}
	replacer := strings.NewReplacer(
		"{", `{"`,
		"}", `"}`,
		":", `":"`,
		",", `","`,
	)
	repaired := replacer.Replace(message)
	// Arrays and nested objects are over-quoted by the pass above.
	repaired = strings.ReplaceAll(repaired, `"[`, "[")
	repaired = strings.ReplaceAll(repaired, `]"`, "]")
	return strings.ReplaceAll(repaired, `}","{`, "},{")
}

// Compact prepares a payload for node firmware, which cannot parse quotes
// or spaces.
func Compact(payload string) string {
	compacted := strings.ReplaceAll(payload, `"`, "")
	return strings.ReplaceAll(compacted, " ", "")
}
