package domain

import "time"

// Case is the persisted projection of a call that the dispatch queue reads.
type Case struct {
	ID         CaseID
	Emergency  string
	Name       string
	Location   string
	Number     string
	Transcript string

	// Priority is derived from Emergency and recomputed whenever it changes.
	Priority Priority
	Method   ClassificationMethod

	Status      CaseStatus
	InProgress  bool
	Coordinates *Coordinates
	Region      Region

	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Clone returns a deep copy safe to hand to observers.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	if c.Coordinates != nil {
		coords := *c.Coordinates
		out.Coordinates = &coords
	}
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		out.ResolvedAt = &at
	}
	return &out
}

type ClassificationMethod string

const (
	MethodNone     ClassificationMethod = "none"
	MethodSemantic ClassificationMethod = "semantic"
	MethodFallback ClassificationMethod = "fallback"
)

// ClassificationResult is the output of the priority pipeline.
type ClassificationResult struct {
	Priority   Priority
	Confidence float64
	Method     ClassificationMethod
	// Label is the semantic category or the rule tier that matched.
	Label string

	CriticalOverride bool
	StressAdjusted   bool
}

type ActionKind string

const (
	ActionSpeak    ActionKind = "SPEAK"
	ActionListen   ActionKind = "LISTEN"
	ActionHangup   ActionKind = "HANGUP"
	ActionRedirect ActionKind = "REDIRECT"
)

// Action is one protocol-neutral instruction for the telephony layer.
type Action struct {
	Kind ActionKind
	Text string
}
