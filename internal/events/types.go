// Package events carries bancho lifecycle notifications from the core to
// observers such as telemetry.
package events

import "time"

// EventType names an event published on the EventBus.
type EventType string

const (
	// Session lifecycle
	EventSessionCreated   EventType = "session_created"
	EventSessionDestroyed EventType = "session_destroyed"
	EventLoginFailed      EventType = "login_failed"
	EventMailboxOverflow  EventType = "mailbox_overflow"

	// Stream membership and chat
	EventStreamJoined EventType = "stream_joined"
	EventStreamLeft   EventType = "stream_left"
	EventChatMessage  EventType = "chat_message"
	EventStatusChange EventType = "status_change"

	// System
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// DestroyReason says why a session ended.
type DestroyReason int

const (
	ReasonLogout DestroyReason = iota
	ReasonTimeout
	ReasonOverflow
	ReasonReplaced
	ReasonShutdown
	ReasonKicked
)

var destroyReasonStrings = map[DestroyReason]string{
	ReasonLogout:   "logout",
	ReasonTimeout:  "timeout",
	ReasonOverflow: "overflow",
	ReasonReplaced: "replaced",
	ReasonShutdown: "shutdown",
	ReasonKicked:   "kicked",
}

// String returns the string representation of DestroyReason.
func (r DestroyReason) String() string {
	if s, ok := destroyReasonStrings[r]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON serializes DestroyReason as a JSON string (e.g. "timeout").
func (r DestroyReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// Event is a single published event.
type Event struct {
	Type    EventType
	Source  string
	Time    time.Time
	Payload interface{}
}

// New stamps an event with the current time.
func New(t EventType, source string, payload interface{}) Event {
	return Event{Type: t, Source: source, Time: time.Now(), Payload: payload}
}

// SessionPayload describes a session that was created or destroyed.
type SessionPayload struct {
	Token    string        `json:"token"`
	UserID   int32         `json:"user_id"`
	Username string        `json:"username"`
	IP       string        `json:"ip,omitempty"`
	Country  string        `json:"country,omitempty"`
	Reason   DestroyReason `json:"reason"`
}

// LoginFailedPayload describes a rejected login.
type LoginFailedPayload struct {
	Username string `json:"username"`
	IP       string `json:"ip"`
	Code     int32  `json:"code"`
}

// StreamPayload describes a membership change.
type StreamPayload struct {
	Stream string `json:"stream"`
	UserID int32  `json:"user_id"`
	Token  string `json:"token"`
}

// ChatPayload describes a delivered chat message.
type ChatPayload struct {
	SenderID int32  `json:"sender_id"`
	Sender   string `json:"sender"`
	Target   string `json:"target"`
	Private  bool   `json:"private"`
	Length   int    `json:"length"`
}

// StatusPayload describes a status change.
type StatusPayload struct {
	UserID    int32 `json:"user_id"`
	Action    uint8 `json:"action"`
	BeatmapID int32 `json:"beatmap_id"`
	Mode      uint8 `json:"mode"`
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string      `json:"section"`
	Key     string      `json:"key"`
	Value   interface{} `json:"value"`
}
