package syncmsg

// Ping is a keep-alive probe. Either peer may send it.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

func NewPing() *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgPing,
		Data: Ping{},
	}
}

func NewPong() *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgPong,
		Data: Pong{},
	}
}
