package notifications

import "encoding/json"

// Event types carried over the realtime socket.
const (
	EventHeartbeat        = "heartbeat"
	EventNewNotification  = "new_notification"
	EventNewMessage       = "new_message"
	EventUserStatusChange = "user_status_change"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMessagesDropped  = "messages_dropped"
)

// Event is the wire format for every realtime message.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Encode marshals the event; marshal failures return an empty payload event
// rather than breaking the socket.
func (e Event) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		fallback, _ := json.Marshal(Event{Type: e.Type})
		return fallback
	}
	return data
}

// StatusChangePayload is the payload for user_status_change events.
type StatusChangePayload struct {
	UserID uint   `json:"user_id"`
	Status string `json:"status"` // "online" or "offline"
}

// TypingPayload is the payload for typing_start / typing_stop events.
type TypingPayload struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username,omitempty"`
	// GroupID is set when typing happens in a group chat.
	GroupID uint `json:"group_id,omitempty"`
}
