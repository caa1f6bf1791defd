package model

import "time"

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderAssistant Sender = "assistant"
	SenderUser      Sender = "user"
)

// ActionHuman is the single intermediate action: it opens the channel
// sub-menu instead of leaving the widget.
const ActionHuman = "human"

type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Option is one selectable menu entry.
type Option struct {
	Label     string `json:"label" yaml:"label"`
	ActionKey string `json:"action_key" yaml:"action_key"`
	Icon      string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// AssistantScript is the per-language script of the guided assistant.
type AssistantScript struct {
	Name         string            `json:"name" yaml:"name"`
	Greeting     string            `json:"greeting" yaml:"greeting"`
	Typing       string            `json:"typing" yaml:"typing"`
	Options      []Option          `json:"options" yaml:"options"`
	HumanOptions []Option          `json:"human_options" yaml:"human_options"`
	Responses    map[string]string `json:"responses" yaml:"responses"`
}

// MainMenu returns a copy of the top-level option set.
func (s *AssistantScript) MainMenu() []Option {
	return append([]Option(nil), s.Options...)
}

// SubMenu returns a copy of the channel option set.
func (s *AssistantScript) SubMenu() []Option {
	return append([]Option(nil), s.HumanOptions...)
}

// Response returns the canned reply for an action key.
func (s *AssistantScript) Response(actionKey string) (string, bool) {
	text, ok := s.Responses[actionKey]
	return text, ok
}

// IsIntermediate reports whether selecting actionKey drills into a sub-menu.
func IsIntermediate(actionKey string) bool {
	return actionKey == ActionHuman
}

// ActionKind says how the browser should carry out a dispatched action.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionExternal ActionKind = "external"
	ActionMail     ActionKind = "mail"
)

type Action struct {
	Key    string     `json:"key"`
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target"`
}

// Snapshot is a point-in-time copy of a widget session.
type Snapshot struct {
	SessionID         string    `json:"session_id,omitempty"`
	Version           uint64    `json:"version"`
	State             string    `json:"state"`
	Language          Language  `json:"language"`
	Dir               string    `json:"dir"`
	IsOpen            bool      `json:"is_open"`
	IsAssistantTyping bool      `json:"is_assistant_typing"`
	TypingLabel       string    `json:"typing_label"`
	OptionsVisible    bool      `json:"options_visible"`
	Options           []Option  `json:"options"`
	Messages          []Message `json:"messages"`
}

// Transcript is the persisted message history of an assistant session.
type Transcript struct {
	SessionID string    `json:"session_id"`
	VisitorID string    `json:"visitor_id,omitempty"`
	Language  Language  `json:"language"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assistant event types pushed to subscribers.
const (
	EventState     = "state"
	EventAction    = "action"
	EventHeartbeat = "heartbeat"
	EventClosed    = "closed"
)

type AssistantEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	Action    *Action   `json:"action,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
