// Package control implements the proxy engine's remote-control wire
// protocol: a websocket carrying binary-framed messages for querying
// mocked-endpoint state, mutating the rule set, and subscribing to the
// engine's event stream.
//
// version byte + type byte + request ID (4 byte BigEndian) + length (4 byte
// BigEndian) + JSON payload.
// Unlike the breakpoint-editing protocol this is adapted from, every
// message carries a single JSON payload rather than a split header/body
// framing: there is no request/response editing feature here, so the
// extra split buys nothing.
package control

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
)

const protocolVersion = 1

type messageType byte

const (
	typeQueryMockedEndpoints messageType = 1
	typeQueryMockedEndpoint  messageType = 2
	typeMutationAddRule      messageType = 3
	typeMutationReset        messageType = 4
	typeReply                messageType = 5
	typeErrorReply           messageType = 6

	typeEventRequestReceived   messageType = 10
	typeEventResponseCompleted messageType = 11
	typeEventRequestAborted    messageType = 12
	typeEventFailedTLSRequest  messageType = 13
)

var allMessageTypes = []messageType{
	typeQueryMockedEndpoints,
	typeQueryMockedEndpoint,
	typeMutationAddRule,
	typeMutationReset,
	typeReply,
	typeErrorReply,
	typeEventRequestReceived,
	typeEventResponseCompleted,
	typeEventRequestAborted,
	typeEventFailedTLSRequest,
}

func validMessageType(t byte) bool {
	for _, v := range allMessageTypes {
		if byte(v) == t {
			return true
		}
	}
	return false
}

var errInvalidMessage = errors.New("control: malformed message")

// message is a single frame on the wire: a type tag plus an arbitrary
// JSON payload. requestID correlates a query/mutation with its reply
// (zero for frames that need no correlation, e.g. events).
type message struct {
	mType     messageType
	requestID uint32
	payload   []byte
}

func newMessage(t messageType, requestID uint32, v any) (*message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &message{mType: t, requestID: requestID, payload: payload}, nil
}

func (m *message) toBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(protocolVersion)
	buf.WriteByte(byte(m.mType))
	_ = binary.Write(&buf, binary.BigEndian, m.requestID)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(m.payload)))
	buf.Write(m.payload)
	return buf.Bytes()
}

func parseMessage(data []byte) (*message, error) {
	const headerLen = 1 + 1 + 4 + 4
	if len(data) < headerLen {
		return nil, errInvalidMessage
	}
	if data[0] != protocolVersion {
		return nil, errInvalidMessage
	}
	if !validMessageType(data[1]) {
		return nil, errInvalidMessage
	}
	requestID := binary.BigEndian.Uint32(data[2:6])
	payloadLen := binary.BigEndian.Uint32(data[6:10])
	if headerLen+int(payloadLen) != len(data) {
		return nil, errInvalidMessage
	}
	return &message{
		mType:     messageType(data[1]),
		requestID: requestID,
		payload:   data[headerLen:],
	}, nil
}
