package syncmsg

import (
	"time"

	"github.com/vitalsync/vitalsync/internal/health"
)

// SyncPayload is an opaque batch of per-date records. The sink stores
// records by date key, overwriting any existing record for the same date.
type SyncPayload struct {
	DeviceName    string               `json:"dev" msgpack:"dev"`
	SyncTimestamp time.Time            `json:"ts" msgpack:"ts"`
	HealthRecords []health.DailyRecord `json:"rec" msgpack:"rec"`
}

// HealthData carries a SyncPayload from source to sink.
type HealthData struct {
	Payload SyncPayload `json:"pld" msgpack:"pld"`
}

func NewHealthData(payload SyncPayload) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgHealthData,
		Data: HealthData{Payload: payload},
	}
}
