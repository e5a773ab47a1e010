package domain

import "fmt"

type Action string

const (
	ActionLock    Action = "lock"
	ActionUnlock  Action = "unlock"
	ActionUnknown Action = "unknown"
)

// ParseAction maps free-form command payloads (HTTP path segments,
// MQTT "LOCK"/"UNLOCK" payloads) to an Action.
func ParseAction(s string) Action {
	switch s {
	case "lock", "LOCK", "Lock":
		return ActionLock
	case "unlock", "UNLOCK", "Unlock":
		return ActionUnlock
	default:
		return ActionUnknown
	}
}

type CommandSource string

const (
	SourceHTTP CommandSource = "http"
	SourceMQTT CommandSource = "mqtt"
)

type Command struct {
	Action    Action
	TargetID  string
	RequestID string
	Source    CommandSource
}

func (c *Command) String() string {
	return fmt.Sprintf("%s %s (source=%s request=%s)", c.Action, c.TargetID, c.Source, c.RequestID)
}
