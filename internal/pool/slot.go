package pool

import "fmt"

// State is the lifecycle position of a slot.
type State int

const (
	Free State = iota
	ReadPending
	ReadPartial
	ReadFull
	WritePending
	WritePartial
	WriteDone
)

var stateNames = [...]string{
	Free:         "FREE",
	ReadPending:  "READ_PENDING",
	ReadPartial:  "READ_PARTIAL",
	ReadFull:     "READ_FULL",
	WritePending: "WRITE_PENDING",
	WritePartial: "WRITE_PARTIAL",
	WriteDone:    "WRITE_DONE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// transitions lists the legal successor states of each state.
var transitions = map[State][]State{
	Free:         {ReadPending},
	ReadPending:  {ReadPartial, ReadFull, WriteDone},
	ReadPartial:  {WritePending},
	ReadFull:     {WritePending},
	WritePending: {WritePending, WritePartial, WriteDone},
	WritePartial: {WritePending, WritePartial, WriteDone},
	WriteDone:    {Free},
}

// Slot is one fixed-capacity buffer plus its descriptor. The pending region
// is buf[offset:length]; offset is only nonzero while a short write is being
// recovered.
type Slot struct {
	index  int
	buf    []byte
	length int
	offset int
	state  State

	// FileOffset is the position in the file that buf[0] maps to for the
	// current cycle. Set by the scheduler when a read is assigned.
	FileOffset int64
}

func (s *Slot) Index() int    { return s.index }
func (s *Slot) State() State  { return s.state }
func (s *Slot) Length() int   { return s.length }
func (s *Slot) Offset() int   { return s.offset }
func (s *Slot) Capacity() int { return len(s.buf) }

// Pending is the number of bytes still owed to the destination.
func (s *Slot) Pending() int { return s.length - s.offset }

// ReadBuf is the region the next read fills.
func (s *Slot) ReadBuf() []byte { return s.buf[:s.length] }

// PendingBuf is the region the next write must submit.
func (s *Slot) PendingBuf() []byte { return s.buf[s.offset:s.length] }

// Canonical reports whether the descriptor is in its reusable shape.
func (s *Slot) Canonical() bool {
	return s.length == len(s.buf) && s.offset == 0
}

// Base returns the address of the slot's first byte. Used by tests to check
// that the descriptor always points back into its own region of the arena.
func (s *Slot) Base() *byte {
	return &s.buf[0]
}

// SetLength sets how many bytes of the slot the next read may fill. Only
// legal while the read has not been issued.
func (s *Slot) SetLength(n int) error {
	if s.state != ReadPending {
		return fmt.Errorf("slot %d: set length in %s: %w", s.index, s.state, ErrBadTransition)
	}
	if n < 0 || n > len(s.buf) {
		return fmt.Errorf("slot %d: length %d outside [0, %d]", s.index, n, len(s.buf))
	}
	s.length = n
	return nil
}

// Filled records the outcome of a read that returned n bytes into the slot.
// A slot that received nothing is marked WriteDone so it is skipped without
// I/O; one that received less than requested is ReadPartial.
func (s *Slot) Filled(n int) error {
	if n < 0 || n > s.length {
		return fmt.Errorf("slot %d: filled %d of %d", s.index, n, s.length)
	}
	switch {
	case n == 0:
		s.length = 0
		return s.moveTo(WriteDone)
	case n < s.length:
		s.length = n
		return s.moveTo(ReadPartial)
	default:
		return s.moveTo(ReadFull)
	}
}

// BeginWrite marks the slot as handed to the writer.
func (s *Slot) BeginWrite() error {
	if s.state == WriteDone && s.length == 0 {
		return nil
	}
	return s.moveTo(WritePending)
}

// Wrote consumes n bytes of the pending region. The slot becomes WriteDone
// once nothing is pending, otherwise WritePartial with offset advanced.
func (s *Slot) Wrote(n int) error {
	if n < 0 || n > s.Pending() {
		return fmt.Errorf("slot %d: wrote %d of %d pending", s.index, n, s.Pending())
	}
	if n == 0 {
		return nil
	}
	s.offset += n
	if s.offset == s.length {
		return s.moveTo(WriteDone)
	}
	return s.moveTo(WritePartial)
}

// Resubmit marks a partially written slot as pending again.
func (s *Slot) Resubmit() error {
	return s.moveTo(WritePending)
}

func (s *Slot) moveTo(next State) error {
	for _, ok := range transitions[s.state] {
		if ok == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("slot %d: %s -> %s: %w", s.index, s.state, next, ErrBadTransition)
}

func (s *Slot) reset() {
	s.length = len(s.buf)
	s.offset = 0
	s.state = Free
	s.FileOffset = 0
}
