package ui

import "github.com/bamsammich/ringcp/internal/event"

// Event is re-exported so presenters read as part of this package.
type Event = event.Event

// Re-export event types for convenience.
const (
	CopyStarted   = event.CopyStarted
	BatchRead     = event.BatchRead
	BatchWritten  = event.BatchWritten
	ShortRead     = event.ShortRead
	ShortWrite    = event.ShortWrite
	EndOfInput    = event.EndOfInput
	CopyCompleted = event.CopyCompleted
	CopyFailed    = event.CopyFailed
)
