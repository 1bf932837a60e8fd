package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type MessageType string

const (
	TypeJoin        MessageType = "join"
	TypeLeave       MessageType = "leave"
	TypeShapeUpdate MessageType = "shape_update"
	TypeChat        MessageType = "chat"
)

var (
	// ErrProtocol marks a malformed frame: logged and dropped, the
	// connection stays open.
	ErrProtocol = errors.New("protocol error")
	// ErrAuth marks a frame that must close the connection.
	ErrAuth = errors.New("auth error")
	// ErrIgnored marks a well-formed frame that is a silent no-op.
	ErrIgnored = errors.New("message ignored")

	errBadRoom = errors.New("missing or non-numeric roomId")
)

// Envelope is the JSON frame exchanged in both directions. UserID is only
// set on server broadcasts.
type Envelope struct {
	Type    MessageType `json:"type"`
	RoomID  int64       `json:"roomId"`
	Message string      `json:"message,omitempty"`
	UserID  string      `json:"userId,omitempty"`
}

// Message is the closed set of inbound messages.
type Message interface {
	Type() MessageType
	Room() int64
}

type Join struct{ RoomID int64 }

type Leave struct{ RoomID int64 }

// ShapeUpdate carries an opaque serialized shape forwarded verbatim.
type ShapeUpdate struct {
	RoomID  int64
	Payload string
}

type Chat struct {
	RoomID int64
	Text   string
}

func (Join) Type() MessageType        { return TypeJoin }
func (Leave) Type() MessageType       { return TypeLeave }
func (ShapeUpdate) Type() MessageType { return TypeShapeUpdate }
func (Chat) Type() MessageType        { return TypeChat }

func (m Join) Room() int64        { return m.RoomID }
func (m Leave) Room() int64       { return m.RoomID }
func (m ShapeUpdate) Room() int64 { return m.RoomID }
func (m Chat) Room() int64        { return m.RoomID }

// ──────────────────────────────── decoding ────────────────────────────────────

type rawEnvelope struct {
	Type    string          `json:"type"`
	RoomID  json.RawMessage `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

// DecodeMessage turns one inbound frame into its variant. The returned error
// wraps ErrProtocol, ErrAuth or ErrIgnored.
func DecodeMessage(data []byte) (Message, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	room, roomErr := parseRoomID(raw.RoomID)

	switch MessageType(raw.Type) {
	case TypeJoin:
		if roomErr != nil {
			return nil, fmt.Errorf("%w: join: %v", ErrAuth, roomErr)
		}
		return Join{RoomID: room}, nil

	case TypeLeave:
		if roomErr != nil {
			return nil, fmt.Errorf("%w: leave: %v", ErrIgnored, roomErr)
		}
		return Leave{RoomID: room}, nil

	case TypeShapeUpdate, TypeChat:
		if roomErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIgnored, raw.Type, roomErr)
		}
		text, err := parseMessage(raw.Message)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIgnored, raw.Type, err)
		}
		if MessageType(raw.Type) == TypeChat {
			return Chat{RoomID: room, Text: text}, nil
		}
		return ShapeUpdate{RoomID: room, Payload: text}, nil
	}

	return nil, fmt.Errorf("%w: unknown type %q", ErrIgnored, raw.Type)
}

// parseRoomID accepts a positive integer given as a JSON number or a numeric
// string.
func parseRoomID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errBadRoom
	}

	var id int64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errBadRoom
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, errBadRoom
		}
		id = n
	} else if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		id = n
	} else {
		// 7.0 and 7e0 are still room 7
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, errBadRoom
		}
		if f != math.Trunc(f) || f >= math.MaxInt64 {
			return 0, errBadRoom
		}
		id = int64(f)
	}

	if id <= 0 {
		return 0, errBadRoom
	}
	return id, nil
}

func parseMessage(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing message")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.New("message is not a string")
	}
	if s == "" {
		return "", errors.New("empty message")
	}
	return s, nil
}

// ──────────────────────────────── encoding ────────────────────────────────────

func encodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// ackFor is the echo the server sends back for join and leave.
func ackFor(m Message) Envelope {
	return Envelope{Type: m.Type(), RoomID: m.Room()}
}
