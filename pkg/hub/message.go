// Package hub fans JSON frames out to websocket subscribers.
package hub

// Message is one encoded frame queued for a client.
type Message struct {
	Data []byte
}

// Frame is the envelope of every JSON message the hub sends.
type Frame struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Data any    `json:"data"`
}
