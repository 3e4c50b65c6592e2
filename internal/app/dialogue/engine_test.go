package dialogue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/resq-agent/internal/app/dialogue"
	"github.com/PabloGalante/resq-agent/internal/domain"
)

type reply struct {
	value string
	found bool
	err   error
}

// scriptedExtractor answers prompts from a fixed queue and counts calls.
type scriptedExtractor struct {
	replies []reply
	calls   int
}

func (s *scriptedExtractor) Extract(_ context.Context, _ string) (string, bool, error) {
	if s.calls >= len(s.replies) {
		s.calls++
		return "", false, nil
	}
	r := s.replies[s.calls]
	s.calls++
	return r.value, r.found, r.err
}

func found(v string) reply { return reply{value: v, found: true} }
func none() reply          { return reply{} }
func failed() reply        { return reply{err: errors.New("model unavailable")} }

func newEngine(ex domain.Extractor) *dialogue.Engine {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return dialogue.NewEngine(ex, dialogue.WithClock(func() time.Time { return fixed }))
}

func newSession() *domain.CallSession {
	return domain.NewCallSession("CA-test", time.Now())
}

func TestGreetPrefillsCallerID(t *testing.T) {
	eng := newEngine(&scriptedExtractor{})
	sess := newSession()

	out := eng.Greet(sess, "+919876543210")

	assert.Equal(t, dialogue.Greeting, out.Text)
	assert.True(t, sess.Initialized)
	assert.Equal(t, domain.Filled("98765-43210"), sess.Number)
	require.Len(t, out.Actions, 3)
	assert.Equal(t, domain.ActionSpeak, out.Actions[0].Kind)
	assert.Equal(t, domain.ActionListen, out.Actions[1].Kind)
	assert.Equal(t, domain.ActionRedirect, out.Actions[2].Kind)
}

func TestSilenceNeverHangsUp(t *testing.T) {
	ex := &scriptedExtractor{}
	eng := newEngine(ex)
	sess := newSession()
	eng.Greet(sess, "")

	for i := 0; i < 10; i++ {
		out := eng.Advance(context.Background(), sess, "   ")
		assert.False(t, out.HangUp)
		assert.NotEmpty(t, out.Text)
	}
	assert.Equal(t, domain.StateAwaitEmergency, sess.State)
	assert.Zero(t, ex.calls, "silence must not reach the extractor")
	for _, turn := range sess.Transcript() {
		assert.Equal(t, domain.RoleDispatcher, turn.Speaker)
	}
}

func TestAdvanceWithoutGreetInitializes(t *testing.T) {
	eng := newEngine(&scriptedExtractor{replies: []reply{found("house fire")}})
	sess := newSession()

	out := eng.Advance(context.Background(), sess, "my house is on fire")

	assert.True(t, sess.Initialized)
	assert.True(t, out.EmergencyChanged)
	assert.Equal(t, "house fire", sess.Emergency.Text)
	assert.Equal(t, domain.StateAwaitLocation, sess.State)

	turns := sess.Transcript()
	require.GreaterOrEqual(t, len(turns), 2)
	assert.Equal(t, dialogue.Greeting, turns[0].Text)
	assert.Equal(t, domain.RoleCaller, turns[1].Speaker)
}

func TestEmergencyNotFoundStaysInState(t *testing.T) {
	eng := newEngine(&scriptedExtractor{replies: []reply{none()}})
	sess := newSession()
	eng.Greet(sess, "")

	out := eng.Advance(context.Background(), sess, "hello?")

	assert.False(t, out.EmergencyChanged)
	assert.False(t, sess.Emergency.IsSet())
	assert.Equal(t, domain.StateAwaitEmergency, sess.State)
}

func TestLocationPlaceholderAfterRetries(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{found("car accident"), none(), none(), none()}}
	eng := newEngine(ex)
	sess := newSession()
	ctx := context.Background()
	eng.Greet(sess, "")

	eng.Advance(ctx, sess, "there was a car accident")
	require.Equal(t, domain.StateAwaitLocation, sess.State)

	first := eng.Advance(ctx, sess, "I don't know")
	second := eng.Advance(ctx, sess, "not sure")
	assert.NotEqual(t, first.Text, second.Text)
	assert.Equal(t, domain.StateAwaitLocation, sess.State)
	assert.Equal(t, 2, sess.RetryCount(domain.RetryLocation))

	eng.Advance(ctx, sess, "no idea")
	assert.Equal(t, domain.Placeholder(dialogue.LocationPlaceholder), sess.Location)
	assert.Equal(t, domain.StateAwaitName, sess.State)
}

func TestExtractionFailureDoesNotAdvance(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{found("fall"), failed(), failed()}}
	eng := newEngine(ex)
	sess := newSession()
	ctx := context.Background()
	eng.Greet(sess, "")
	eng.Advance(ctx, sess, "my father fell")

	for i := 0; i < 2; i++ {
		out := eng.Advance(ctx, sess, "near the market")
		assert.False(t, out.HangUp)
	}
	assert.Equal(t, domain.StateAwaitLocation, sess.State)
	assert.False(t, sess.Location.IsSet())
	assert.Zero(t, sess.RetryCount(domain.RetryLocation))
}

func TestPhoneNormalizedAndReprompted(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{
		found("fire"),
		found("MG Road, Pune"),
		found("Asha Rao"),
		found("98765 43"),
		found("98765 43210"),
	}}
	eng := newEngine(ex)
	sess := newSession()
	ctx := context.Background()
	eng.Greet(sess, "")

	eng.Advance(ctx, sess, "fire in the kitchen")
	eng.Advance(ctx, sess, "MG Road, Pune")
	eng.Advance(ctx, sess, "Asha Rao")
	require.Equal(t, domain.StateAwaitNumber, sess.State)

	out := eng.Advance(ctx, sess, "98765 43")
	assert.Contains(t, out.Text, "10 digit")
	assert.Equal(t, domain.StateAwaitNumber, sess.State)

	eng.Advance(ctx, sess, "98765 43210")
	assert.Equal(t, domain.Filled("98765-43210"), sess.Number)
	assert.Equal(t, domain.StateFollowup, sess.State)
	assert.Equal(t, "Pune", sess.Region.City)
}

func TestPhoneFormatBudgetExhausted(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{
		found("fire"), found("Pune"), found("Ravi"),
		found("123"), found("123"), found("123"), found("123"),
	}}
	eng := newEngine(ex)
	sess := newSession()
	ctx := context.Background()
	eng.Greet(sess, "")
	for _, u := range []string{"fire", "Pune", "Ravi"} {
		eng.Advance(ctx, sess, u)
	}

	for i := 0; i < 3; i++ {
		eng.Advance(ctx, sess, "one two three")
		require.Equal(t, domain.StateAwaitNumber, sess.State)
	}
	eng.Advance(ctx, sess, "one two three")

	assert.Equal(t, domain.Placeholder(dialogue.InvalidPhonePlaceholder), sess.Number)
	assert.Equal(t, domain.StateFollowup, sess.State)
}

func TestCallerIDSkipsNumberState(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{found("fire"), found("Pune"), found("Ravi")}}
	eng := newEngine(ex)
	sess := newSession()
	ctx := context.Background()
	eng.Greet(sess, "+91 98765 43210")

	eng.Advance(ctx, sess, "fire")
	eng.Advance(ctx, sess, "Pune")
	out := eng.Advance(ctx, sess, "Ravi")

	assert.Equal(t, domain.StateFollowup, sess.State)
	assert.Equal(t, 3, ex.calls)
	assert.Contains(t, out.Text, "more details")
}

func filledSession(t *testing.T, eng *dialogue.Engine) *domain.CallSession {
	t.Helper()
	sess := newSession()
	eng.Greet(sess, "+919876543210")
	ctx := context.Background()
	for _, u := range []string{"fire", "Pune", "Ravi"} {
		eng.Advance(ctx, sess, u)
	}
	require.Equal(t, domain.StateFollowup, sess.State)
	return sess
}

func TestFollowupEndsWithScriptedClose(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{
		found("fire"), found("Pune"), found("Ravi"),
		found("Is anyone hurt?"),
		found("Are there any hazards nearby?"),
		found("Is traffic affected?"),
		found("Anything else I should know?"),
	}}
	eng := newEngine(ex)
	sess := filledSession(t, eng)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		out := eng.Advance(ctx, sess, "everyone is out of the building")
		require.False(t, out.HangUp, "turn %d", i)
	}
	assert.Equal(t, 4, sess.FollowupCount)

	out := eng.Advance(ctx, sess, "no that's all")
	assert.True(t, out.HangUp)
	assert.Equal(t, dialogue.ClosingLine, out.Text)
	assert.True(t, sess.HangUp)
	assert.Equal(t, domain.StateTerminated, sess.State)
	require.Len(t, out.Actions, 2)
	assert.Equal(t, domain.ActionHangup, out.Actions[1].Kind)
	assert.Equal(t, 7, ex.calls, "closing line is never model generated")
}

func TestFollowupFailureForcesCloseLate(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{
		found("fire"), found("Pune"), found("Ravi"),
		failed(),
		found("q1"), found("q2"), found("q3"),
		failed(),
	}}
	eng := newEngine(ex)
	sess := filledSession(t, eng)
	ctx := context.Background()

	out := eng.Advance(ctx, sess, "hello")
	assert.False(t, out.HangUp)
	assert.Zero(t, sess.FollowupCount)

	for i := 0; i < 3; i++ {
		eng.Advance(ctx, sess, "yes")
	}
	require.Equal(t, 3, sess.FollowupCount)

	out = eng.Advance(ctx, sess, "yes")
	assert.True(t, out.HangUp)
	assert.Equal(t, dialogue.ClosingLine, out.Text)
}

func TestFollowupNoReplyKeepsCount(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{found("fire"), found("Pune"), found("Ravi"), none()}}
	eng := newEngine(ex)
	sess := filledSession(t, eng)

	out := eng.Advance(context.Background(), sess, "ok")
	assert.False(t, out.HangUp)
	assert.Zero(t, sess.FollowupCount)
}

func TestNoMutationAfterHangUp(t *testing.T) {
	ex := &scriptedExtractor{}
	eng := newEngine(ex)
	sess := newSession()
	sess.Initialized = true
	sess.HangUp = true
	before := len(sess.Transcript())

	out := eng.Advance(context.Background(), sess, "wait, one more thing")

	assert.True(t, out.HangUp)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, domain.ActionHangup, out.Actions[0].Kind)
	assert.Equal(t, before, len(sess.Transcript()))
	assert.False(t, sess.SetSlot(domain.SlotName, domain.Filled("late")))
	assert.Zero(t, ex.calls)
}

func TestSlotPlaceholdersUseIndependentBudgets(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		slot      domain.Slot
		want      domain.SlotValue
		wantState domain.DialogueState
		retries   map[domain.RetryKey]int
	}{
		{
			name:      "name placeholder",
			replies:   []reply{found("fall"), found("MG Road"), none(), none(), none()},
			slot:      domain.SlotName,
			want:      domain.Placeholder(dialogue.NamePlaceholder),
			wantState: domain.StateAwaitNumber,
			retries:   map[domain.RetryKey]int{domain.RetryLocation: 0, domain.RetryName: 2},
		},
		{
			name:      "name keeps its budget after location spent its own",
			replies:   []reply{found("fall"), none(), none(), found("MG Road"), none(), none(), none()},
			slot:      domain.SlotName,
			want:      domain.Placeholder(dialogue.NamePlaceholder),
			wantState: domain.StateAwaitNumber,
			retries:   map[domain.RetryKey]int{domain.RetryLocation: 2, domain.RetryName: 2},
		},
		{
			name:      "phone placeholder",
			replies:   []reply{found("fall"), found("MG Road"), found("Ravi"), none(), none(), none()},
			slot:      domain.SlotNumber,
			want:      domain.Placeholder(dialogue.PhonePlaceholder),
			wantState: domain.StateFollowup,
			retries:   map[domain.RetryKey]int{domain.RetryPhone: 2, domain.RetryPhoneFormat: 0},
		},
		{
			name:      "phone keeps its budget after name spent its own",
			replies:   []reply{found("fall"), found("MG Road"), none(), none(), found("Ravi"), none(), none(), none()},
			slot:      domain.SlotNumber,
			want:      domain.Placeholder(dialogue.PhonePlaceholder),
			wantState: domain.StateFollowup,
			retries:   map[domain.RetryKey]int{domain.RetryName: 2, domain.RetryPhone: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newEngine(&scriptedExtractor{replies: tt.replies})
			sess := newSession()
			ctx := context.Background()
			eng.Greet(sess, "")

			last := len(tt.replies) - 1
			for i := 0; i < last; i++ {
				eng.Advance(ctx, sess, "caller speaks")
			}
			assert.False(t, sess.Slot(tt.slot).IsSet(), "budget not yet spent")

			out := eng.Advance(ctx, sess, "still nothing")
			assert.False(t, out.HangUp)
			assert.Equal(t, tt.want, sess.Slot(tt.slot))
			assert.Equal(t, tt.wantState, sess.State)
			for key, n := range tt.retries {
				assert.Equal(t, n, sess.RetryCount(key), "retries for %s", key)
			}
		})
	}
}
