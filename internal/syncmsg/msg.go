package syncmsg

import (
	"encoding/json"
	"fmt"

	"github.com/vitalsync/vitalsync/internal/utils"
)

const IdSize = 3

// ErrUnknownMessageType wraps the unrecognized tag. Decode failures are
// recoverable: the session stays up and the bad message is dropped.
type ErrUnknownMessageType struct {
	Type MessageType
}

func (e *ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("unknown message type: %d", uint16(e.Type))
}

type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data any         `json:"dat"`
}

// UnmarshalJSON implements the json.Unmarshaler interface for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}

	var temp tempMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	m.Id = temp.Id
	m.Type = temp.Type

	// Unmarshal Data based on the message type
	switch m.Type {
	case MsgRequestData:
		var req RequestData
		if err := json.Unmarshal(temp.Data, &req); err != nil {
			return err
		}
		m.Data = req
	case MsgRequestAllData:
		var req RequestAllData
		if err := json.Unmarshal(temp.Data, &req); err != nil {
			return err
		}
		m.Data = req
	case MsgHealthData:
		var hd HealthData
		if err := json.Unmarshal(temp.Data, &hd); err != nil {
			return err
		}
		m.Data = hd
	case MsgSyncProgress:
		var sp SyncProgress
		if err := json.Unmarshal(temp.Data, &sp); err != nil {
			return err
		}
		m.Data = sp
	case MsgPing:
		var p Ping
		if err := json.Unmarshal(temp.Data, &p); err != nil {
			return err
		}
		m.Data = p
	case MsgPong:
		var p Pong
		if err := json.Unmarshal(temp.Data, &p); err != nil {
			return err
		}
		m.Data = p
	default:
		return &ErrUnknownMessageType{Type: m.Type}
	}

	return nil
}

func generateID() string {
	return utils.TokenHex(IdSize)
}
