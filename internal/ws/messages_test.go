package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidMessages(t *testing.T) {
	cases := []struct {
		frame string
		want  Message
	}{
		{`{"type":"join","roomId":42}`, Join{RoomID: 42}},
		{`{"type":"join","roomId":"42"}`, Join{RoomID: 42}},
		{`{"type":"join","roomId":7.0}`, Join{RoomID: 7}},
		{`{"type":"leave","roomId":3}`, Leave{RoomID: 3}},
		{`{"type":"shape_update","roomId":7,"message":"{\"type\":\"rect\"}"}`, ShapeUpdate{RoomID: 7, Payload: `{"type":"rect"}`}},
		{`{"type":"chat","roomId":"9","message":"hello"}`, Chat{RoomID: 9, Text: "hello"}},
	}
	for _, tc := range cases {
		t.Run(tc.frame, func(t *testing.T) {
			got, err := DecodeMessage([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeJoinWithBadRoomIsAuthError(t *testing.T) {
	for _, frame := range []string{
		`{"type":"join"}`,
		`{"type":"join","roomId":null}`,
		`{"type":"join","roomId":"abc"}`,
		`{"type":"join","roomId":4.5}`,
		`{"type":"join","roomId":0}`,
		`{"type":"join","roomId":-2}`,
		`{"type":"join","roomId":{}}`,
	} {
		_, err := DecodeMessage([]byte(frame))
		assert.ErrorIs(t, err, ErrAuth, frame)
	}
}

func TestDecodeIgnoredMessages(t *testing.T) {
	for _, frame := range []string{
		`{"type":"leave","roomId":"x"}`,
		`{"type":"chat","roomId":"x","message":"hi"}`,
		`{"type":"chat","roomId":1}`,
		`{"type":"chat","roomId":1,"message":""}`,
		`{"type":"shape_update","roomId":0,"message":"{}"}`,
		`{"type":"shape_update","roomId":1}`,
		`{"type":"shape_update","roomId":1,"message":{"type":"rect"}}`,
		`{"type":"rect","x":1}`,
		`{"roomId":1}`,
	} {
		_, err := DecodeMessage([]byte(frame))
		assert.ErrorIs(t, err, ErrIgnored, frame)
	}
}

func TestDecodeMalformedIsProtocolError(t *testing.T) {
	for _, frame := range []string{`{`, `[]`, `"join"`, ``} {
		_, err := DecodeMessage([]byte(frame))
		assert.ErrorIs(t, err, ErrProtocol, frame)
	}
}

func TestEncodeEnvelope(t *testing.T) {
	b, err := encodeEnvelope(ackFor(Join{RoomID: 42}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join","roomId":42}`, string(b))

	b, err = encodeEnvelope(Envelope{Type: TypeShapeUpdate, RoomID: 7, Message: "{}", UserID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"shape_update","roomId":7,"message":"{}","userId":"u1"}`, string(b))
}
