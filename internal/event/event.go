package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	CopyStarted Type = iota + 1
	BatchRead
	BatchWritten
	ShortRead
	ShortWrite
	EndOfInput
	CopyCompleted
	CopyFailed
)

var typeNames = [...]string{
	CopyStarted:   "CopyStarted",
	BatchRead:     "BatchRead",
	BatchWritten:  "BatchWritten",
	ShortRead:     "ShortRead",
	ShortWrite:    "ShortWrite",
	EndOfInput:    "EndOfInput",
	CopyCompleted: "CopyCompleted",
	CopyFailed:    "CopyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Offset    int64 // file offset the event refers to
	Size      int64 // bytes transferred (or declared size for CopyStarted)
	Slots     int   // slots engaged in the batch
	Slot      int   // slot index for per-slot events
	Total     int64 // bytes copied so far
	Remaining int64 // bytes not yet read after this event
	Error     error
}

// Emit sends e on ch without blocking. A nil channel discards the event; a
// full channel drops it so a slow presenter never stalls the copy.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
