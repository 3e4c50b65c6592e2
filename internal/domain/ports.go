package domain

import (
	"context"
	"time"
)

// Extractor prompts an external language model.
// found is false when the model answered with the "no value" sentinel.
// Implementations retry transport failures before returning an error.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (value string, found bool, err error)
}

// ZeroShotClassifier scores text against a fixed set of candidate labels.
type ZeroShotClassifier interface {
	Classify(ctx context.Context, text string, labels []string) (label string, score float64, err error)
}

// Place is what a geocoder knows about an address or a position.
type Place struct {
	DisplayName string
	Lat         float64
	Lon         float64
	Region      Region
}

// Geocoder resolves addresses and positions. Failures are never fatal to a call.
type Geocoder interface {
	Search(ctx context.Context, address string) (*Place, error)
	Reverse(ctx context.Context, lat, lon float64) (*Place, error)
}

// SessionStore holds one CallSession per call id with exclusive per-key access.
type SessionStore interface {
	// Acquire returns the session for id, creating it on first use, and
	// holds its lock until release is called.
	Acquire(id CallID, now time.Time) (session *CallSession, release func())
	// Lookup is like Acquire but never creates.
	Lookup(id CallID) (session *CallSession, release func(), err error)
	Delete(id CallID)
}

// CaseStore is the authoritative set of cases.
type CaseStore interface {
	UpsertCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id CaseID) (*Case, error)
	ListOpenCases(ctx context.Context) ([]*Case, error)
	ListResolvedCases(ctx context.Context) ([]*Case, error)
	ResolveCase(ctx context.Context, id CaseID, at time.Time) (bool, error)
}

// Notifier receives case snapshots. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, snapshot *Case)
}
