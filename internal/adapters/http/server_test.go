package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/resq-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/resq-agent/internal/adapters/telephony"
	"github.com/PabloGalante/resq-agent/internal/app/dialogue"
	"github.com/PabloGalante/resq-agent/internal/app/dispatch"
	"github.com/PabloGalante/resq-agent/internal/app/priority"
	"github.com/PabloGalante/resq-agent/internal/app/triage"
	"github.com/PabloGalante/resq-agent/internal/domain"
)

type answers struct {
	mu     sync.Mutex
	values []string
}

func (a *answers) Extract(context.Context, string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.values) == 0 {
		return "", false, nil
	}
	v := a.values[0]
	a.values = a.values[1:]
	return v, v != "", nil
}

type testEnv struct {
	handler http.Handler
	hub     *Hub
	cases   *memory.CaseStore
}

func newTestEnv(t *testing.T, replies ...string) testEnv {
	t.Helper()

	sessions := memory.NewSessionStore()
	cases := memory.NewCaseStore()
	hub := NewHub(time.Second)
	classifier := priority.NewClassifier(nil, time.Second)
	engine := dialogue.NewEngine(&answers{values: replies})

	h := NewServer(Config{
		Triage:     triage.NewService(engine, classifier, sessions, cases, nil, hub),
		Dispatch:   dispatch.NewService(cases, sessions, hub),
		Classifier: classifier,
		Hub:        hub,
		Renderer:   telephony.NewRenderer(),
	})
	return testEnv{handler: h, hub: hub, cases: cases}
}

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestVoiceGreetsCaller(t *testing.T) {
	env := newTestEnv(t)

	w := postForm(t, env.handler, "/voice", url.Values{"CallSid": {"CA1"}, "From": {"+919876543210"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	body := w.Body.String()
	assert.Contains(t, body, dialogue.Greeting)
	assert.Contains(t, body, `<Gather`)
	assert.Contains(t, body, `/respond?callId=CA1`)
}

func TestVoiceUsageOnGet(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.handler, http.MethodGet, "/voice", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, voiceUsage, w.Body.String())
}

func TestRespondWithoutCallIDEndsCall(t *testing.T) {
	env := newTestEnv(t)

	w := postForm(t, env.handler, "/respond", url.Values{"SpeechResult": {"hello"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), telephony.SystemError)
	assert.Contains(t, w.Body.String(), "<Hangup>")
}

func TestRespondAdvancesAndQueues(t *testing.T) {
	env := newTestEnv(t, "house fire")

	postForm(t, env.handler, "/voice", url.Values{"CallSid": {"CA2"}})
	w := postForm(t, env.handler, "/respond?callId=CA2", url.Values{"SpeechResult": {"my house is on fire"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Can you tell me your exact location?")

	w = doJSON(t, env.handler, http.MethodGet, "/api/calls", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var queue []CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, "CA2", queue[0].ID)
	assert.Equal(t, "house fire", queue[0].Emergency)
	assert.Equal(t, 1, queue[0].Priority)
	assert.Equal(t, "CRITICAL", queue[0].PriorityLabel)
	assert.Equal(t, 1, queue[0].Position)
}

func TestGetAndResolveCase(t *testing.T) {
	env := newTestEnv(t, "minor complaint about noise")

	postForm(t, env.handler, "/voice", url.Values{"CallSid": {"CA3"}})
	postForm(t, env.handler, "/respond?callId=CA3", url.Values{"SpeechResult": {"neighbours are loud"}})

	w := doJSON(t, env.handler, http.MethodGet, "/api/calls/CA3", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got PositionedCase
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Position)
	assert.Equal(t, 1, got.Total)

	w = doJSON(t, env.handler, http.MethodPost, "/api/calls/CA3/resolve", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, env.handler, http.MethodGet, "/api/calls/resolved", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resolved []CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	require.Len(t, resolved, 1)
	assert.Equal(t, "resolved", resolved[0].Status)
	assert.NotNil(t, resolved[0].ResolvedAt)
}

func TestResolveUnknownCase(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.handler, http.MethodPost, "/api/calls/nope/resolve", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLocationRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.handler, http.MethodPost, "/location", `{"latitude": 0, "longitude": 0, "callId": "CA4"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, env.handler, http.MethodPost, "/location", `{"latitude": 19.07, "longitude": 72.87}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, env.handler, http.MethodPost, "/location", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocationForUnknownCall(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.handler, http.MethodPost, "/location",
		`{"latitude": 18.5, "longitude": 73.8, "accuracy": 10, "callId": "no-such-call"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := env.cases.GetCase(context.Background(), "no-such-call")
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestLocationAttachesCoordinates(t *testing.T) {
	env := newTestEnv(t)

	postForm(t, env.handler, "/voice", url.Values{"CallSid": {"CA5"}})
	w := doJSON(t, env.handler, http.MethodPost, "/location",
		`{"latitude": 19.07, "longitude": 72.87, "accuracy": 12, "callId": "CA5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c, err := env.cases.GetCase(context.Background(), "CA5")
	require.NoError(t, err)
	require.NotNil(t, c.Coordinates)
	assert.Equal(t, domain.SourceDeviceGPS, c.Coordinates.Source)
	assert.InDelta(t, 19.07, c.Coordinates.Lat, 1e-9)
}

func TestClassifyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.handler, http.MethodPost, "/api/classify", `{"text": "there is smoke everywhere"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res ClassifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Priority)
	assert.Equal(t, "fallback", res.Method)
}

func TestCasesFilterByPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, env.cases.UpsertCase(ctx, &domain.Case{ID: "a", Priority: 1, Status: domain.StatusOpen, Region: domain.UnknownRegion(), CreatedAt: now}))
	require.NoError(t, env.cases.UpsertCase(ctx, &domain.Case{ID: "b", Priority: 4, Status: domain.StatusOpen, Region: domain.UnknownRegion(), CreatedAt: now}))

	w := doJSON(t, env.handler, http.MethodGet, "/api/cases?priority=4", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cases []CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, "b", cases[0].ID)

	w = doJSON(t, env.handler, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st StatsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 2, st.TotalOpen)
	assert.Len(t, st.Cases, 2)
}

// fakeConn records what the hub writes.
type fakeConn struct {
	mu     sync.Mutex
	events []caseEvent
	closed bool
	fail   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return websocket.ErrCloseSent
	}
	c.events = append(c.events, v.(caseEvent))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() ([]caseEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]caseEvent(nil), c.events...), c.closed
}

func TestHubReplacesObserver(t *testing.T) {
	hub := NewHub(time.Second)
	first, second := &fakeConn{}, &fakeConn{}

	hub.Set(first)
	hub.Set(second)
	hub.Notify(context.Background(), &domain.Case{ID: "x", Status: domain.StatusOpen})

	require.Eventually(t, func() bool {
		events, _ := second.snapshot()
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, closed := first.snapshot()
	assert.Empty(t, events)
	assert.True(t, closed)

	got, _ := second.snapshot()
	assert.Equal(t, eventProgress, got[0].Event)
	assert.Equal(t, "x", got[0].Case.ID)
}

func TestHubClearsFailedObserver(t *testing.T) {
	hub := NewHub(time.Second)
	conn := &fakeConn{fail: true}

	hub.Set(conn)
	hub.Notify(context.Background(), &domain.Case{ID: "x", Status: domain.StatusResolved})

	require.Eventually(t, func() bool { return !hub.Connected() }, time.Second, 10*time.Millisecond)
}

func TestWebsocketReceivesCallProgress(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, env.hub.Connected, time.Second, 10*time.Millisecond)

	postForm(t, env.handler, "/voice", url.Values{"CallSid": {"CA6"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev caseEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, eventProgress, ev.Event)
	assert.Equal(t, "CA6", ev.Case.ID)
}
