package workflow

import (
	"fmt"
	"strings"

	"draftbot/internal/content"
)

// CallbackScope is the scope token in inline callback data
// ("post:<action>:<payload>").
const CallbackScope = "post"

type ActionKind string

const (
	ActionApprove    ActionKind = "approve"
	ActionEdit       ActionKind = "edit"
	ActionQuickEdit  ActionKind = "quick_edit"
	ActionCustomEdit ActionKind = "custom_edit"
	ActionBack       ActionKind = "back_to_post"
	ActionRegenerate ActionKind = "regenerate"
	ActionCancel     ActionKind = "cancel"
)

// Action is a decoded inline interaction. Malformed callback data never
// becomes an Action; ParseAction rejects it at the boundary.
type Action struct {
	Kind    ActionKind
	DraftID string

	// EditKind is set only for ActionQuickEdit.
	EditKind content.EditKind
}

// QuickEditPayload encodes the quick-edit payload ("<draftID>|<kind>").
// '|' is used because draft ids never contain it and ':' already delimits
// the outer callback format.
func QuickEditPayload(draftID string, kind content.EditKind) string {
	return draftID + "|" + string(kind)
}

// ParseAction decodes (action, payload) from callback data into a typed
// Action. It validates structurally: unknown actions, empty ids and unknown
// edit kinds are all errors.
func ParseAction(action, payload string) (Action, error) {
	kind := ActionKind(action)
	switch kind {
	case ActionApprove, ActionEdit, ActionCustomEdit, ActionBack, ActionRegenerate, ActionCancel:
		id := strings.TrimSpace(payload)
		if id == "" {
			return Action{}, fmt.Errorf("action %q: empty draft id", action)
		}
		return Action{Kind: kind, DraftID: id}, nil

	case ActionQuickEdit:
		id, rawKind, ok := strings.Cut(payload, "|")
		if !ok || strings.TrimSpace(id) == "" {
			return Action{}, fmt.Errorf("quick_edit: malformed payload %q", payload)
		}
		ek, ok := content.ParseEditKind(rawKind)
		if !ok {
			return Action{}, fmt.Errorf("quick_edit: unknown kind %q", rawKind)
		}
		return Action{Kind: ActionQuickEdit, DraftID: strings.TrimSpace(id), EditKind: ek}, nil
	}
	return Action{}, fmt.Errorf("unknown action %q", action)
}
