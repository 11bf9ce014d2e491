package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the discriminant of every frame exchanged over the collaboration socket.
type Kind string

const (
	KindJoin     Kind = "join"
	KindLeave    Kind = "leave"
	KindMutation Kind = "mutation"
	KindCursor   Kind = "cursor"
	KindTitle    Kind = "title"
	KindPresence Kind = "presence"
	KindError    Kind = "error"
)

// Relayable reports whether frames of this kind are fanned out to the rest of a room.
func (k Kind) Relayable() bool {
	switch k {
	case KindMutation, KindCursor, KindTitle:
		return true
	}
	return false
}

// Message is the envelope for all frames. Origin fields are stamped by the
// server on relay; values sent by clients are ignored.
type Message struct {
	Kind               Kind            `json:"kind"`
	DocumentID         string          `json:"documentId"`
	OriginUserID       string          `json:"originUserId,omitempty"`
	OriginConnectionID string          `json:"originConnectionId,omitempty"`
	Seq                uint64          `json:"seq,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	DisplayName string `json:"displayName"`
}

// MutationPayload carries the full element collection. Elements are opaque to
// the server and replace the receiver's collection wholesale.
type MutationPayload struct {
	Elements []json.RawMessage `json:"elements"`
}

type CursorPayload struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	DisplayName string  `json:"displayName"`
}

type TitlePayload struct {
	Title string `json:"title"`
}

// Participant is one live connection in a room.
type Participant struct {
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	JoinedAt     time.Time `json:"joinedAt"`
}

type PresenceEvent string

const (
	PresenceJoined PresenceEvent = "joined"
	PresenceLeft   PresenceEvent = "left"
)

// PresencePayload is emitted once per physical connection joining or leaving.
// UserArrived is set only for a user's first connection in the room and
// UserDeparted only when their last connection leaves.
type PresencePayload struct {
	Event        PresenceEvent `json:"event"`
	UserID       string        `json:"userId"`
	DisplayName  string        `json:"displayName"`
	ConnectionID string        `json:"connectionId"`
	UserArrived  bool          `json:"userArrived"`
	UserDeparted bool          `json:"userDeparted"`
	Participants []Participant `json:"participants"`
}

type ErrorCode string

const (
	ErrorNotFound       ErrorCode = "not-found"
	ErrorAccessDenied   ErrorCode = "access-denied"
	ErrorInvalidRequest ErrorCode = "invalid-request"
	ErrorInternal       ErrorCode = "internal"
)

type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NewMessage builds an envelope with the payload encoded into Data.
func NewMessage(kind Kind, documentID string, payload interface{}) (Message, error) {
	msg := Message{Kind: kind, DocumentID: documentID}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	msg.Data = data
	return msg, nil
}

// Decode unmarshals Data into v.
func (m Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s frame has no data", m.Kind)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Kind, err)
	}
	return nil
}

// Encode serializes the envelope for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Parse decodes a raw frame and checks the envelope shape.
func Parse(frame []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed frame: %w", err)
	}
	if msg.Kind == "" {
		return Message{}, fmt.Errorf("frame missing kind")
	}
	return msg, nil
}
