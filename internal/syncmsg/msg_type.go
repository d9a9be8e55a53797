package syncmsg

import "fmt"

type MessageType uint16

const (
	MsgRequestData MessageType = iota
	MsgRequestAllData
	MsgHealthData
	MsgSyncProgress
	MsgPing
	MsgPong
)

func (t MessageType) String() string {
	switch t {
	case MsgRequestData:
		return "REQUEST_DATA"
	case MsgRequestAllData:
		return "REQUEST_ALL_DATA"
	case MsgHealthData:
		return "HEALTH_DATA"
	case MsgSyncProgress:
		return "SYNC_PROGRESS"
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	default:
		return fmt.Sprintf("???(%d)", t)
	}
}
