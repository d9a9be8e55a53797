package syncmsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding indicates which wire encoding is used for sync messages.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingMsgPack
)

func (e Encoding) String() string {
	switch e {
	case EncodingMsgPack:
		return "msgpack"
	default:
		return "json"
	}
}

const (
	magic0  = byte('V')
	magic1  = byte('S')
	version = byte(1)
)

// PreferredEncoding parses a comma-separated preference list (e.g. "msgpack,json").
// Returns EncodingMsgPack if list is empty/unknown.
func PreferredEncoding(list string) Encoding {
	parts := strings.Split(list, ",")
	for _, p := range parts {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "msgpack":
			return EncodingMsgPack
		case "json":
			return EncodingJSON
		}
	}
	return EncodingMsgPack
}

// Marshal encodes a Message for transport with a self-describing envelope:
// [magic][version][encoding][payload].
func Marshal(msg *Message, enc Encoding) ([]byte, error) {
	var payload []byte
	var err error

	switch enc {
	case EncodingJSON:
		payload, err = marshalJSON(msg)
	case EncodingMsgPack:
		payload, err = marshalMsgpack(msg)
	default:
		err = fmt.Errorf("unknown encoding: %d", enc)
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(payload))
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, version, byte(enc)
	copy(buf[4:], payload)
	return buf, nil
}

// Unmarshal decodes an enveloped payload into a Message. A malformed or
// unknown-tag payload returns an error the caller can drop without tearing
// down the session.
func Unmarshal(data []byte) (*Message, Encoding, error) {
	if len(data) < 4 || data[0] != magic0 || data[1] != magic1 {
		return nil, EncodingJSON, errors.New("message missing VS envelope")
	}
	if data[2] != version {
		return nil, EncodingJSON, fmt.Errorf("unsupported envelope version: %d", data[2])
	}

	enc := Encoding(data[3])
	payload := data[4:]
	switch enc {
	case EncodingJSON:
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, enc, err
		}
		return &msg, enc, nil
	case EncodingMsgPack:
		msg, err := unmarshalMsgpack(payload)
		return msg, enc, err
	default:
		return nil, enc, fmt.Errorf("unknown encoding: %d", enc)
	}
}

func (t MessageType) valid() bool {
	return t <= MsgPong
}

type wireMessage struct {
	Id   string      `msgpack:"id"`
	Type MessageType `msgpack:"typ"`
	Data []byte      `msgpack:"dat"`
}

func marshalJSON(msg *Message) ([]byte, error) {
	if !msg.Type.valid() {
		return nil, &ErrUnknownMessageType{Type: msg.Type}
	}
	return json.Marshal(msg)
}

func marshalMsgpack(msg *Message) ([]byte, error) {
	if !msg.Type.valid() {
		return nil, &ErrUnknownMessageType{Type: msg.Type}
	}

	dat, err := msgpack.Marshal(msg.Data)
	if err != nil {
		return nil, err
	}

	w := wireMessage{Id: msg.Id, Type: msg.Type, Data: dat}
	return msgpack.Marshal(&w)
}

func unmarshalMsgpack(payload []byte) (*Message, error) {
	var w wireMessage
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("msgpack")
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	msg := &Message{Id: w.Id, Type: w.Type}
	switch w.Type {
	case MsgRequestData:
		var req RequestData
		if err := msgpack.Unmarshal(w.Data, &req); err != nil {
			return nil, err
		}
		msg.Data = req
	case MsgRequestAllData:
		var req RequestAllData
		if err := msgpack.Unmarshal(w.Data, &req); err != nil {
			return nil, err
		}
		msg.Data = req
	case MsgHealthData:
		var hd HealthData
		if err := msgpack.Unmarshal(w.Data, &hd); err != nil {
			return nil, err
		}
		msg.Data = hd
	case MsgSyncProgress:
		var sp SyncProgress
		if err := msgpack.Unmarshal(w.Data, &sp); err != nil {
			return nil, err
		}
		msg.Data = sp
	case MsgPing:
		var p Ping
		if err := msgpack.Unmarshal(w.Data, &p); err != nil {
			return nil, err
		}
		msg.Data = p
	case MsgPong:
		var p Pong
		if err := msgpack.Unmarshal(w.Data, &p); err != nil {
			return nil, err
		}
		msg.Data = p
	default:
		return nil, &ErrUnknownMessageType{Type: w.Type}
	}

	return msg, nil
}
