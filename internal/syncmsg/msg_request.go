package syncmsg

import "time"

// RequestData asks the source for specific calendar days.
type RequestData struct {
	Dates []time.Time `json:"dts" msgpack:"dts"`
}

// RequestAllData asks the source for its entire history.
type RequestAllData struct{}

func NewRequestData(dates []time.Time) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgRequestData,
		Data: RequestData{Dates: dates},
	}
}

func NewRequestAllData() *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgRequestAllData,
		Data: RequestAllData{},
	}
}
