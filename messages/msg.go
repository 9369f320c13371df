package messages

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/websocket"
)

// Msg is the wire envelope: a message type and a msgpack-encoded payload.
type Msg struct {
	Type string             `msgpack:"t"`
	Data msgpack.RawMessage `msgpack:"d,omitempty"`
}

// New returns a Msg that carries the given payload.
func New(msgType string, v any) (Msg, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message payload failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}

	return Msg{
		Type: msgType,
		Data: data,
	}, nil
}

// DataTo decodes the message payload into v.
func (m Msg) DataTo(v any) error {
	if err := msgpack.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message payload failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

// Send writes the message to the connection as a single binary frame and
// returns the number of bytes sent.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := msgpack.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Receive reads the next binary frame from the connection and returns the
// decoded message and its size in bytes.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := msgpack.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").Wrap(err)
	}
	return msg, len(b), nil
}

// ResponseSender queues messages to be sent to the connected client.
type ResponseSender interface {
	// Encodes the payload and queues the resulting message. Encoding
	// failures are logged and the message is dropped.
	Send(msgType string, v any)

	// Queues an already-built message.
	SendMsg(Msg)
}
