package syncmsg

// SyncProgressInfo is emitted by the source during long transfers so the
// sink can render progress before the final payload arrives.
type SyncProgressInfo struct {
	TotalDays      int    `json:"tot" msgpack:"tot"`
	ProcessedDays  int    `json:"prc" msgpack:"prc"`
	RecordsInBatch int    `json:"bat" msgpack:"bat"`
	IsComplete     bool   `json:"cmp" msgpack:"cmp"`
	Message        string `json:"msg,omitempty" msgpack:"msg"`
}

// FractionComplete returns processed/total, or 0 when total is 0.
func (i SyncProgressInfo) FractionComplete() float64 {
	if i.TotalDays == 0 {
		return 0
	}
	return float64(i.ProcessedDays) / float64(i.TotalDays)
}

// SyncProgress wraps SyncProgressInfo for the wire.
type SyncProgress struct {
	Info SyncProgressInfo `json:"inf" msgpack:"inf"`
}

func NewSyncProgress(info SyncProgressInfo) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgSyncProgress,
		Data: SyncProgress{Info: info},
	}
}
