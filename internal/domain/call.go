package domain

import (
	"strings"
	"time"
)

// DialogueState is the position of a call in the slot-filling sequence.
type DialogueState int

const (
	StateAwaitEmergency DialogueState = iota
	StateAwaitLocation
	StateAwaitName
	StateAwaitNumber
	StateFollowup
	StateTerminated
)

func (s DialogueState) String() string {
	switch s {
	case StateAwaitEmergency:
		return "AWAIT_EMERGENCY"
	case StateAwaitLocation:
		return "AWAIT_LOCATION"
	case StateAwaitName:
		return "AWAIT_NAME"
	case StateAwaitNumber:
		return "AWAIT_NUMBER"
	case StateFollowup:
		return "FOLLOWUP"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// SlotKind tells whether a slot holds nothing, a caller-provided value or a placeholder.
type SlotKind int

const (
	SlotUnset SlotKind = iota
	SlotFilled
	SlotPlaceholder
)

// SlotValue is the content of one slot.
type SlotValue struct {
	Kind SlotKind
	Text string
}

func Filled(text string) SlotValue      { return SlotValue{Kind: SlotFilled, Text: text} }
func Placeholder(text string) SlotValue { return SlotValue{Kind: SlotPlaceholder, Text: text} }

func (v SlotValue) IsSet() bool { return v.Kind != SlotUnset }

// Turn is one line of the call transcript.
type Turn struct {
	Speaker Role
	Text    string
	At      time.Time
}

// CallSession is the mutable state of one live call.
// It is owned by the dialogue engine and must only be touched while the
// session store grants exclusive access to its call id.
type CallSession struct {
	ID          CallID
	Initialized bool
	HangUp      bool
	State       DialogueState

	Retries       map[RetryKey]int
	FollowupCount int

	transcript []Turn

	Emergency SlotValue
	Location  SlotValue
	Name      SlotValue
	Number    SlotValue

	Coordinates *Coordinates
	Region      Region
	CreatedAt   time.Time

	// Classification is the result for the current Emergency text, nil until
	// the first save.
	Classification *ClassificationResult
}

func NewCallSession(id CallID, now time.Time) *CallSession {
	return &CallSession{
		ID:        id,
		State:     StateAwaitEmergency,
		Retries:   make(map[RetryKey]int),
		Region:    UnknownRegion(),
		CreatedAt: now,
	}
}

// Slot returns the current value of a slot.
func (s *CallSession) Slot(slot Slot) SlotValue {
	switch slot {
	case SlotEmergency:
		return s.Emergency
	case SlotLocation:
		return s.Location
	case SlotName:
		return s.Name
	case SlotNumber:
		return s.Number
	}
	return SlotValue{}
}

// SetSlot fills a slot. Slots never return to unset and nothing changes
// after hang-up; it reports whether the value was applied.
func (s *CallSession) SetSlot(slot Slot, v SlotValue) bool {
	if s.HangUp || !v.IsSet() {
		return false
	}
	switch slot {
	case SlotEmergency:
		s.Emergency = v
	case SlotLocation:
		s.Location = v
	case SlotName:
		s.Name = v
	case SlotNumber:
		s.Number = v
	default:
		return false
	}
	return true
}

// Append records a transcript turn. The transcript only grows.
func (s *CallSession) Append(speaker Role, text string, at time.Time) {
	s.transcript = append(s.transcript, Turn{Speaker: speaker, Text: text, At: at})
}

// Transcript returns a copy of the turns recorded so far.
func (s *CallSession) Transcript() []Turn {
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TranscriptText renders the transcript as "Dispatcher: ..." / "Caller: ..." lines.
func (s *CallSession) TranscriptText() string {
	var b strings.Builder
	for i, t := range s.transcript {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Speaker == RoleCaller {
			b.WriteString("Caller: ")
		} else {
			b.WriteString("Dispatcher: ")
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// RetryCount returns how many re-prompts were spent on key.
func (s *CallSession) RetryCount(key RetryKey) int {
	return s.Retries[key]
}

func (s *CallSession) SpendRetry(key RetryKey) {
	if s.Retries == nil {
		s.Retries = make(map[RetryKey]int)
	}
	s.Retries[key]++
}
