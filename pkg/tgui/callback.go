package tgui

import "strings"

// Data formats inline callback data as "scope:action:payload".
// Payload is kept as-is (no escaping); it may itself contain ':'.
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	if payload == "" {
		return scope + ":" + action
	}
	return scope + ":" + action + ":" + payload
}

// SplitData is the inverse of Data. ok is false when data has no action part.
func SplitData(data string) (scope, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 {
		return "", "", "", false
	}
	scope = parts[0]
	action = parts[1]
	if len(parts) == 3 {
		payload = parts[2]
	}
	return scope, action, payload, scope != "" && action != ""
}
