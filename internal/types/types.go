package types

import "time"

// Message is what one VM sends to a neighbor. On the wire it is the flat
// triple "<action>,<sender>,<clock>".
type Message struct {
	Action int    `json:"action"`
	Sender int    `json:"sender"`
	Clock  uint64 `json:"clock"`
}

type EventKind string

const (
	KindSend      EventKind = "send"
	KindRecv      EventKind = "recv"
	KindInternal  EventKind = "internal"
	KindRecvError EventKind = "recv_error"
)

// Event is one line of a VM's event log.
// Payload is the remaining queue length for recv, the action code for send
// and internal.
type Event struct {
	Kind    EventKind `json:"kind"`
	VM      int       `json:"vm"`
	Payload int       `json:"payload"`
	Clock   uint64    `json:"clock"`
	Wall    time.Time `json:"wall"`
}

// Record wraps an event for the durable mirror.
type Record struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`
	Seq   uint64 `json:"seq"`
	Event Event  `json:"event"`
}
