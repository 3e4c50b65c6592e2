package dialogue

import (
	"context"
	"strings"
	"time"

	"github.com/PabloGalante/resq-agent/internal/app/locate"
	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

const (
	// slotRetryBudget is how many re-prompts location, name and phone each get.
	slotRetryBudget = 2
	// phoneFormatBudget bounds re-prompts for wrong-length phone numbers.
	phoneFormatBudget = 3

	defaultExtractTimeout = 90 * time.Second
)

// Engine drives the slot-filling and follow-up sequence of one call.
// It holds no per-call state: callers pass the session they hold exclusively.
type Engine struct {
	extractor domain.Extractor
	locations *locate.Resolver
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Engine)

// WithResolver enables geocoding of extracted locations.
func WithResolver(r *locate.Resolver) Option {
	return func(e *Engine) { e.locations = r }
}

// WithExtractTimeout bounds each extractor call, retries included.
func WithExtractTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(extractor domain.Extractor, opts ...Option) *Engine {
	e := &Engine{
		extractor: extractor,
		timeout:   defaultExtractTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the engine's answer to one caller turn.
type Outcome struct {
	Text             string
	HangUp           bool
	EmergencyChanged bool
	Actions          []domain.Action
}

// Greet opens the call: it records the greeting and pre-fills the phone
// number from caller ID when one is known.
func (e *Engine) Greet(sess *domain.CallSession, callerNumber string) Outcome {
	if sess.HangUp {
		return terminated()
	}
	if sess.Initialized {
		settle(sess)
		return e.say(sess, genericPrompt(sess.State))
	}

	sess.Initialized = true
	if n := CallerIDNumber(callerNumber); n != "" {
		sess.SetSlot(domain.SlotNumber, domain.Filled(n))
	}
	settle(sess)
	return e.say(sess, Greeting)
}

// Advance processes one caller utterance and returns the next dispatcher line.
func (e *Engine) Advance(ctx context.Context, sess *domain.CallSession, utterance string) Outcome {
	if sess.HangUp {
		return terminated()
	}
	if !sess.Initialized {
		sess.Initialized = true
		sess.Append(domain.RoleDispatcher, Greeting, e.now())
	}
	settle(sess)

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return e.say(sess, genericPrompt(sess.State))
	}
	sess.Append(domain.RoleCaller, utterance, e.now())

	switch sess.State {
	case domain.StateAwaitEmergency:
		return e.fillEmergency(ctx, sess)
	case domain.StateAwaitLocation, domain.StateAwaitName:
		return e.fillSlot(ctx, sess)
	case domain.StateAwaitNumber:
		return e.fillNumber(ctx, sess)
	case domain.StateFollowup:
		return e.followup(ctx, sess)
	default:
		return e.close(sess)
	}
}

func (e *Engine) extract(ctx context.Context, prompt string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	value, found, err := e.extractor.Extract(ctx, prompt)
	if err != nil {
		return "", false, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		found = false
	}
	return value, found, nil
}

func (e *Engine) fillEmergency(ctx context.Context, sess *domain.CallSession) Outcome {
	log := observability.LoggerFromContext(ctx).With("state", sess.State.String())

	value, found, err := e.extract(ctx, slotPrompt(domain.SlotEmergency, sess.TranscriptText()))
	if err != nil {
		log.Warn("emergency extraction failed", "error", err)
		return e.say(sess, failurePrompt(sess.State))
	}
	if !found {
		return e.say(sess, genericPrompt(sess.State))
	}

	sess.SetSlot(domain.SlotEmergency, domain.Filled(value))
	log.Info("emergency set", "emergency", value)
	advance(sess)

	out := e.say(sess, nextQuestion(sess.State))
	out.EmergencyChanged = true
	return out
}

// fillSlot handles the location and name slots, which share the same retry policy.
func (e *Engine) fillSlot(ctx context.Context, sess *domain.CallSession) Outcome {
	slot := gatingSlot[sess.State]
	key := retryKeys[slot]
	log := observability.LoggerFromContext(ctx).With("state", sess.State.String())

	value, found, err := e.extract(ctx, slotPrompt(slot, sess.TranscriptText()))
	if err != nil {
		log.Warn("slot extraction failed", "slot", slot, "error", err)
		return e.say(sess, failurePrompt(sess.State))
	}

	switch {
	case !found && sess.RetryCount(key) < slotRetryBudget:
		line := rePrompt(slot, sess.RetryCount(key))
		sess.SpendRetry(key)
		log.Info("no value given, re-prompting", "slot", slot, "retries", sess.RetryCount(key))
		return e.say(sess, line)
	case !found:
		sess.SetSlot(slot, domain.Placeholder(placeholders[slot]))
		log.Info("retry budget spent, using placeholder", "slot", slot)
	case slot == domain.SlotLocation:
		loc := e.locations.Resolve(ctx, value)
		sess.SetSlot(slot, domain.Filled(loc.Display))
		if loc.Coordinates != nil && !hasDeviceFix(sess) {
			sess.Coordinates = loc.Coordinates
		}
		sess.Region = loc.Region
		log.Info("location set", "location", loc.Display)
	default:
		sess.SetSlot(slot, domain.Filled(value))
		log.Info("slot set", "slot", slot, "value", value)
	}

	advance(sess)
	return e.say(sess, nextQuestion(sess.State))
}

func (e *Engine) fillNumber(ctx context.Context, sess *domain.CallSession) Outcome {
	log := observability.LoggerFromContext(ctx).With("state", sess.State.String())

	value, found, err := e.extract(ctx, slotPrompt(domain.SlotNumber, sess.TranscriptText()))
	if err != nil {
		log.Warn("phone extraction failed", "error", err)
		return e.say(sess, failurePrompt(sess.State))
	}

	var digits string
	if found {
		var formatted string
		var ok bool
		formatted, digits, ok = NormalizePhone(value)
		if ok {
			sess.SetSlot(domain.SlotNumber, domain.Filled(formatted))
			log.Info("phone set", "number", formatted)
			advance(sess)
			return e.say(sess, nextQuestion(sess.State))
		}
	}

	switch {
	case digits != "" && sess.RetryCount(domain.RetryPhoneFormat) < phoneFormatBudget:
		sess.SpendRetry(domain.RetryPhoneFormat)
		log.Info("phone has wrong length, re-prompting", "digits", len(digits))
		return e.say(sess, askPhoneDigits)
	case digits != "":
		sess.SetSlot(domain.SlotNumber, domain.Placeholder(InvalidPhonePlaceholder))
	case sess.RetryCount(domain.RetryPhone) < slotRetryBudget:
		line := rePrompt(domain.SlotNumber, sess.RetryCount(domain.RetryPhone))
		sess.SpendRetry(domain.RetryPhone)
		return e.say(sess, line)
	default:
		sess.SetSlot(domain.SlotNumber, domain.Placeholder(PhonePlaceholder))
	}

	log.Info("phone unresolved, using placeholder", "number", sess.Number.Text)
	advance(sess)
	return e.say(sess, nextQuestion(sess.State))
}

func (e *Engine) followup(ctx context.Context, sess *domain.CallSession) Outcome {
	count := sess.FollowupCount
	if count >= closingTurn {
		return e.close(sess)
	}

	stage := followupStages[count]
	log := observability.LoggerFromContext(ctx).With("state", sess.State.String(), "stage", stage.name, "followup", count)

	reply, found, err := e.extract(ctx, followupPrompt(sess, stage))
	if err != nil {
		log.Warn("follow-up generation failed", "error", err)
		if count >= forcedCloseAfter {
			return e.close(sess)
		}
		return e.say(sess, followupRetry)
	}
	if !found {
		return e.say(sess, followupNoReply)
	}

	sess.FollowupCount++
	log.Info("follow-up asked")
	return e.say(sess, reply)
}

// close speaks the scripted closing line and ends the call.
func (e *Engine) close(sess *domain.CallSession) Outcome {
	sess.Append(domain.RoleDispatcher, ClosingLine, e.now())
	sess.HangUp = true
	sess.State = domain.StateTerminated
	return Outcome{
		Text:    ClosingLine,
		HangUp:  true,
		Actions: Actions(ClosingLine, true),
	}
}

func (e *Engine) say(sess *domain.CallSession, text string) Outcome {
	sess.Append(domain.RoleDispatcher, text, e.now())
	return Outcome{
		Text:    text,
		Actions: Actions(text, false),
	}
}

func terminated() Outcome {
	return Outcome{
		HangUp:  true,
		Actions: []domain.Action{{Kind: domain.ActionHangup}},
	}
}

// Actions turns a dispatcher line into telephony actions. A live call keeps
// listening and redirects back on timeout; a finished one only hangs up.
func Actions(text string, hangUp bool) []domain.Action {
	acts := []domain.Action{{Kind: domain.ActionSpeak, Text: text}}
	if hangUp {
		return append(acts, domain.Action{Kind: domain.ActionHangup})
	}
	return append(acts,
		domain.Action{Kind: domain.ActionListen},
		domain.Action{Kind: domain.ActionRedirect},
	)
}

// hasDeviceFix reports whether the phone already sent its own position,
// which always beats a geocoded guess.
func hasDeviceFix(sess *domain.CallSession) bool {
	return sess.Coordinates != nil && sess.Coordinates.Source == domain.SourceDeviceGPS
}

func nextQuestion(state domain.DialogueState) string {
	switch state {
	case domain.StateAwaitLocation:
		return askLocation
	case domain.StateAwaitName:
		return askName
	case domain.StateAwaitNumber:
		return askNumber
	case domain.StateFollowup:
		return askDetails
	default:
		return holdLine
	}
}

var retryKeys = map[domain.Slot]domain.RetryKey{
	domain.SlotLocation: domain.RetryLocation,
	domain.SlotName:     domain.RetryName,
	domain.SlotNumber:   domain.RetryPhone,
}

var placeholders = map[domain.Slot]string{
	domain.SlotLocation: LocationPlaceholder,
	domain.SlotName:     NamePlaceholder,
	domain.SlotNumber:   PhonePlaceholder,
}
