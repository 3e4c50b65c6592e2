package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PabloGalante/resq-agent/internal/app/dialogue"
	"github.com/PabloGalante/resq-agent/internal/app/locate"
	"github.com/PabloGalante/resq-agent/internal/app/priority"
	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

// Service runs live calls: it serializes turns per call, drives the dialogue
// engine, classifies the emergency and keeps the case store current.
type Service struct {
	engine     *dialogue.Engine
	classifier *priority.Classifier
	sessions   domain.SessionStore
	cases      domain.CaseStore
	locations  *locate.Resolver
	notifier   domain.Notifier
	now        func() time.Time
}

func NewService(
	engine *dialogue.Engine,
	classifier *priority.Classifier,
	sessions domain.SessionStore,
	cases domain.CaseStore,
	locations *locate.Resolver,
	notifier domain.Notifier,
) *Service {
	return &Service{
		engine:     engine,
		classifier: classifier,
		sessions:   sessions,
		cases:      cases,
		locations:  locations,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Reply is what the telephony layer renders for one turn.
type Reply struct {
	Text    string
	HangUp  bool
	Actions []domain.Action
	Case    *domain.Case
}

// Start handles the first webhook of a call.
func (s *Service) Start(ctx context.Context, callID domain.CallID, callerNumber string) (*Reply, error) {
	if callID == "" {
		return nil, domain.ErrNoCallID
	}
	ctx = observability.WithCallID(ctx, string(callID))
	log := observability.LoggerFromContext(ctx)

	if c, ok := s.resolvedCase(ctx, callID); ok {
		log.Info("call already resolved, hanging up")
		return hangUp(c), nil
	}

	sess, release := s.sessions.Acquire(callID, s.now())
	defer release()

	out := s.engine.Greet(sess, callerNumber)
	log.Info("call started", "state", sess.State.String(), "caller_id", sess.Number.Text != "")

	return s.reply(ctx, sess, out), nil
}

// Advance feeds one caller utterance into the call.
func (s *Service) Advance(ctx context.Context, callID domain.CallID, utterance string) (*Reply, error) {
	if callID == "" {
		return nil, domain.ErrNoCallID
	}
	ctx = observability.WithCallID(ctx, string(callID))
	log := observability.LoggerFromContext(ctx)

	if c, ok := s.resolvedCase(ctx, callID); ok {
		log.Info("call already resolved, hanging up")
		return hangUp(c), nil
	}

	sess, release := s.sessions.Acquire(callID, s.now())
	defer release()

	log.Info("caller turn", "state", sess.State.String(), "utterance", utterance)
	out := s.engine.Advance(ctx, sess, utterance)
	if out.HangUp {
		log.Info("call ended", "followups", sess.FollowupCount)
	}

	return s.reply(ctx, sess, out), nil
}

// UpdateLocation records a device position for a live call. The spoken
// location is only replaced when the caller has not given one yet. Unknown
// calls get domain.ErrSessionNotFound.
func (s *Service) UpdateLocation(ctx context.Context, callID domain.CallID, lat, lon, accuracy float64) (*domain.Case, error) {
	if callID == "" {
		return nil, domain.ErrNoCallID
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || (lat == 0 && lon == 0) {
		return nil, fmt.Errorf("%w: %f,%f", domain.ErrInvalidCoordinates, lat, lon)
	}
	ctx = observability.WithCallID(ctx, string(callID))
	log := observability.LoggerFromContext(ctx)

	sess, release, err := s.sessions.Lookup(callID)
	if err != nil {
		return nil, err
	}
	defer release()

	coords := &domain.Coordinates{Lat: lat, Lon: lon, Accuracy: accuracy, Source: domain.SourceDeviceGPS}
	if loc, ok := s.locations.Reverse(ctx, lat, lon); ok {
		coords.DisplayName = loc.Display
		if !sess.Location.IsSet() && sess.SetSlot(domain.SlotLocation, domain.Filled(loc.Display)) {
			sess.Region = loc.Region
		}
	}
	if !sess.HangUp {
		sess.Coordinates = coords
	}
	log.Info("device location received", "lat", lat, "lon", lon, "accuracy", accuracy)

	return s.save(ctx, sess, false), nil
}

func (s *Service) reply(ctx context.Context, sess *domain.CallSession, out dialogue.Outcome) *Reply {
	return &Reply{
		Text:    out.Text,
		HangUp:  out.HangUp,
		Actions: out.Actions,
		Case:    s.save(ctx, sess, out.EmergencyChanged),
	}
}

// resolvedCase returns the stored case for callID when a dispatcher has
// already resolved it.
func (s *Service) resolvedCase(ctx context.Context, callID domain.CallID) (*domain.Case, bool) {
	c, err := s.cases.GetCase(ctx, domain.CaseID(callID))
	if err != nil {
		if !errors.Is(err, domain.ErrCaseNotFound) {
			observability.LoggerFromContext(ctx).Warn("case lookup failed", "error", err)
		}
		return nil, false
	}
	return c, c.Status == domain.StatusResolved
}

func hangUp(c *domain.Case) *Reply {
	return &Reply{
		HangUp:  true,
		Actions: []domain.Action{{Kind: domain.ActionHangup}},
		Case:    c,
	}
}

// save writes the case and tells the observer. The emergency is classified
// once per change and the result reused until it changes again. Store errors
// are logged: the caller must still hear the next line.
func (s *Service) save(ctx context.Context, sess *domain.CallSession, reclassify bool) *domain.Case {
	log := observability.LoggerFromContext(ctx)

	if reclassify || sess.Classification == nil {
		var emergency string
		if sess.Emergency.Kind == domain.SlotFilled {
			emergency = sess.Emergency.Text
		}
		res := s.classifier.Classify(ctx, emergency, nil)
		sess.Classification = &res
	}

	c := CaseFromSession(sess, *sess.Classification)
	if err := s.cases.UpsertCase(ctx, c); err != nil {
		log.Error("failed to save case", "error", err)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, c.Clone())
	}
	return c
}

// CaseFromSession projects a live session onto its persisted case.
func CaseFromSession(sess *domain.CallSession, res domain.ClassificationResult) *domain.Case {
	c := &domain.Case{
		ID:         domain.CaseID(sess.ID),
		Emergency:  sess.Emergency.Text,
		Name:       sess.Name.Text,
		Location:   sess.Location.Text,
		Number:     sess.Number.Text,
		Transcript: strings.TrimSpace(sess.TranscriptText()),
		Priority:   res.Priority,
		Method:     res.Method,
		Status:     domain.StatusOpen,
		InProgress: !sess.HangUp,
		Region:     sess.Region,
		CreatedAt:  sess.CreatedAt,
	}
	if sess.Coordinates != nil {
		coords := *sess.Coordinates
		c.Coordinates = &coords
	}
	return c
}
