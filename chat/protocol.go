package chat

import "encoding/json"

// Client to server events.
const (
	EventJoin        = "join"
	EventSendMessage = "send-message"
	EventAdminSend   = "admin-send"
)

// Server to client events.
const (
	EventJoined     = "joined"
	EventNewMessage = "new-message"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventError      = "error"
)

// MaxMessageRunes bounds a chat message after trimming.
const MaxMessageRunes = 1000

type inFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type joinPayload struct {
	Token string `json:"token"`
}

type messagePayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	Room        string `json:"room"`
	UserID      uint   `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Guest       bool   `json:"guest"`
}
