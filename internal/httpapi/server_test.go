package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/assistant"
	"github.com/ent0n29/callassist/internal/audio"
	"github.com/ent0n29/callassist/internal/calls"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/config"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/protocol"
	"github.com/ent0n29/callassist/internal/schedule"
	"github.com/ent0n29/callassist/internal/session"
	"github.com/ent0n29/callassist/internal/settings"
	"github.com/ent0n29/callassist/internal/transcribe"
	"github.com/ent0n29/callassist/internal/voice"
)

type testServer struct {
	ts       *httptest.Server
	engine   *voice.RecordingEngine
	registry *callstate.Registry
	mode     *callstate.ModeStore
	gate     *connectivity.StaticGate
	settings *settings.Store
	hub      *ShimHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metrics := observability.NewMetrics("test_httpapi")
	engine := voice.NewRecordingEngine()
	renderer := voice.NewRenderer(engine, nil, metrics)
	if err := renderer.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { _ = renderer.Close() })

	st := &testServer{
		engine:   engine,
		registry: callstate.NewRegistry(),
		mode:     callstate.NewModeStore(callstate.AssistantMode{VoiceStyle: "شاب"}),
		gate:     connectivity.NewStaticGate(false),
		settings: settings.NewStore(settings.Values{}),
	}
	st.hub = NewShimHub(nil, metrics)
	tracker := session.NewManager(time.Minute)
	client := agent.NewClient(st.settings, time.Second, nil, metrics)

	coord := calls.NewCoordinator(calls.Config{
		Registry: st.registry,
		Mode:     st.mode,
		Gate:     st.gate,
		Agent:    client,
		Speaker:  renderer,
		Dialer:   st.hub,
		Notifier: st.hub,
		Tracker:  tracker,
		Metrics:  metrics,
	})
	t.Cleanup(coord.Wait)

	pipeline := transcribe.NewPipeline(transcribe.Config{
		OpenSource: func() (audio.Source, error) {
			return audio.NewMockSource(16000, 5*time.Millisecond), nil
		},
		Offline: &transcribe.ScriptedRecognizer{Partials: []string{"شو"}, Final: "شو أخبارك"},
		Gate:    st.gate,
		Metrics: metrics,
	})
	svc := assistant.NewService(assistant.Config{
		Capturer:        pipeline,
		Agent:           client,
		Gate:            st.gate,
		Mode:            st.mode,
		Speaker:         renderer,
		CaptureDuration: 30 * time.Millisecond,
		Metrics:         metrics,
	})
	sched := schedule.NewScheduler(schedule.NewInMemoryStore(), func(context.Context, schedule.Request) error { return nil }, time.Second, nil, metrics)

	srv := New(Deps{
		Config:      config.Config{AudioSource: "mock"},
		Coordinator: coord,
		Tracker:     tracker,
		Scheduler:   sched,
		Settings:    st.settings,
		Gate:        st.gate,
		Assistant:   svc,
		Capture:     pipeline,
		Renderer:    renderer,
		Prober:      agent.NewProber(time.Second),
		Hub:         st.hub,
		Metrics:     metrics,
	})
	st.ts = httptest.NewServer(srv.Router())
	t.Cleanup(st.ts.Close)
	return st
}

func (st *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, st.ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res, data
}

func (st *testServer) dialWS(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(st.ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (st *testServer) spoke(text string) bool {
	for _, u := range st.engine.Spoken() {
		if u.Text == text {
			return true
		}
	}
	return false
}

func TestHealthAndReady(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodGet, "/healthz", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", res.StatusCode)
	}
	res, body := st.do(t, http.MethodGet, "/readyz", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", res.StatusCode)
	}
	var ready map[string]any
	if err := json.Unmarshal(body, &ready); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if ready["speech_engine_ready"] != true || ready["online"] != false {
		t.Fatalf("readyz = %v", ready)
	}
}

func TestPendingCallLifecycle(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodPost, "/v1/calls/pending", map[string]string{"number": "  "})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty number status = %d, want 400", res.StatusCode)
	}
	res, _ = st.do(t, http.MethodPost, "/v1/calls/pending", map[string]string{"number": "+201000", "reason": "موعد"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("set pending status = %d, want 201", res.StatusCode)
	}
	res, body := st.do(t, http.MethodGet, "/v1/calls/pending", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "+201000") {
		t.Fatalf("get pending = %d %s", res.StatusCode, body)
	}
	res, _ = st.do(t, http.MethodDelete, "/v1/calls/pending", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", res.StatusCode)
	}
	res, _ = st.do(t, http.MethodGet, "/v1/calls/pending", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after clear = %d, want 404", res.StatusCode)
	}
}

func TestOutgoingWithoutShimIsUnavailable(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodPost, "/v1/calls/outgoing", map[string]string{"number": "+201000", "purpose": "موعد"})
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.StatusCode)
	}
	if st.registry.HasPendingFor("+201000") {
		t.Fatalf("registry still armed after failed dial")
	}
}

func TestShimDialAndOutgoingGreeting(t *testing.T) {
	st := newTestServer(t)
	conn := st.dialWS(t, "/v1/calls/events/ws")
	waitFor(t, "shim registration", func() bool { return st.hub.Connected() == 1 })

	res, _ := st.do(t, http.MethodPost, "/v1/calls/outgoing", map[string]string{"number": "+201000", "purpose": "حجز موعد"})
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("outgoing status = %d, want 202", res.StatusCode)
	}
	dial := readWS(t, conn)
	if dial["type"] != string(protocol.TypeDialCommand) || dial["number"] != "+201000" {
		t.Fatalf("dial command = %v", dial)
	}

	if err := conn.WriteJSON(protocol.CallEvent{
		Type:         protocol.TypeCallEvent,
		Direction:    "outgoing",
		State:        "dialing",
		RemoteNumber: "+201000",
	}); err != nil {
		t.Fatalf("write call_event: %v", err)
	}
	ack := readWS(t, conn)
	if ack["type"] != string(protocol.TypeAck) || ack["of"] != string(protocol.TypeCallEvent) {
		t.Fatalf("ack = %v", ack)
	}

	want := calls.CannedIntro("حجز موعد")
	waitFor(t, "canned intro", func() bool { return st.spoke(want) })
	if st.registry.HasPendingFor("+201000") {
		t.Fatalf("registry still armed after greeting")
	}
}

func TestShimLinkStateDrivesGate(t *testing.T) {
	st := newTestServer(t)
	conn := st.dialWS(t, "/v1/calls/events/ws")

	if err := conn.WriteJSON(protocol.LinkState{Type: protocol.TypeLinkState, Online: true}); err != nil {
		t.Fatalf("write link_state: %v", err)
	}
	if ack := readWS(t, conn); ack["type"] != string(protocol.TypeAck) {
		t.Fatalf("ack = %v", ack)
	}
	if !st.gate.IsOnline() {
		t.Fatalf("gate still offline")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, conn); msg["type"] != string(protocol.TypeErrorEvent) {
		t.Fatalf("bogus frame reply = %v", msg)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodGet, "/v1/calls/schedule", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("empty schedule status = %d, want 404", res.StatusCode)
	}
	fireAt := time.Now().Add(time.Hour).UnixMilli()
	res, body := st.do(t, http.MethodPost, "/v1/calls/schedule", map[string]any{
		"number":               "+201000",
		"reason":               "تذكير",
		"fire_at_epoch_millis": fireAt,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("schedule status = %d body=%s", res.StatusCode, body)
	}
	var created struct {
		Number            string `json:"number"`
		FireAtEpochMillis int64  `json:"fire_at_epoch_millis"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Number != "+201000" || created.FireAtEpochMillis != fireAt {
		t.Fatalf("created = %+v", created)
	}

	res, _ = st.do(t, http.MethodPost, "/v1/calls/schedule", map[string]any{"number": "+1"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fire time status = %d, want 400", res.StatusCode)
	}
	res, _ = st.do(t, http.MethodDelete, "/v1/calls/schedule", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", res.StatusCode)
	}
	res, _ = st.do(t, http.MethodDelete, "/v1/calls/schedule", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("second cancel status = %d, want 404", res.StatusCode)
	}
}

func TestModePatchKeepsUnsetFields(t *testing.T) {
	st := newTestServer(t)

	res, body := st.do(t, http.MethodPut, "/v1/mode", map[string]bool{"auto_reply_enabled": true})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var mode callstate.AssistantMode
	if err := json.Unmarshal(body, &mode); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !mode.AutoReplyEnabled || mode.VoiceStyle != "شاب" {
		t.Fatalf("mode = %+v", mode)
	}
}

func TestQuickReply(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodPost, "/v1/calls/quick-reply", map[string]int{"index": 0})
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", res.StatusCode)
	}
	waitFor(t, "quick reply", func() bool { return st.spoke(calls.QuickReplies[0]) })

	res, _ = st.do(t, http.MethodPost, "/v1/calls/quick-reply", map[string]int{"index": len(calls.QuickReplies)})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown index status = %d, want 400", res.StatusCode)
	}
}

func TestSettingsTestProbesEndpoints(t *testing.T) {
	st := newTestServer(t)
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"qwen2:7b"},{"name":"llama3"}]}`))
		case "/api/generate":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ollama.Close()

	res, _ := st.do(t, http.MethodPut, "/v1/settings", settings.Values{OllamaServerURL: ollama.URL})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put settings status = %d", res.StatusCode)
	}
	res, body := st.do(t, http.MethodPost, "/v1/settings/test", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("test status = %d", res.StatusCode)
	}
	var out settingsTestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Agent.Reachable || out.Agent.StatusCode != http.StatusBadRequest {
		t.Fatalf("agent probe = %+v", out.Agent)
	}
	if out.Transcription.Configured {
		t.Fatalf("transcription probe = %+v, want unconfigured", out.Transcription)
	}
	if out.SuggestedModel != "qwen2:7b" {
		t.Fatalf("suggested model = %q", out.SuggestedModel)
	}
}

func TestConnectivityPut(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodPut, "/v1/connectivity", map[string]bool{"online": true})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !st.gate.IsOnline() {
		t.Fatalf("gate still offline")
	}
}

func TestSpeakAndStyles(t *testing.T) {
	st := newTestServer(t)

	res, _ := st.do(t, http.MethodPost, "/v1/voice/speak", map[string]string{"text": " "})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty text status = %d, want 400", res.StatusCode)
	}
	res, _ = st.do(t, http.MethodPost, "/v1/voice/speak", map[string]string{"text": "أهلاً", "voice_style": "عجوز"})
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("speak status = %d, want 202", res.StatusCode)
	}
	waitFor(t, "speech", func() bool { return st.spoke("أهلاً") })

	res, _ = st.do(t, http.MethodPost, "/v1/voice/stop", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("stop status = %d, want 204", res.StatusCode)
	}
	res, body := st.do(t, http.MethodGet, "/v1/voice/styles", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "styles") {
		t.Fatalf("styles = %d %s", res.StatusCode, body)
	}
}

func TestAssistantWSStreamsTurn(t *testing.T) {
	st := newTestServer(t)
	conn := st.dialWS(t, "/v1/assistant/ws")

	if err := conn.WriteJSON(protocol.AssistantControl{Type: protocol.TypeAssistantControl, Action: protocol.ActionReplyNow}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var seen []string
	for {
		msg := readWS(t, conn)
		typ, _ := msg["type"].(string)
		seen = append(seen, typ)
		if typ == string(protocol.TypeErrorEvent) {
			t.Fatalf("error event: %v", msg)
		}
		if typ == string(protocol.TypeAssistantReply) {
			if msg["transcript"] != "شو أخبارك" || msg["reply"] != assistant.FallbackReply || msg["dialect"] != "شامي" {
				t.Fatalf("reply = %v", msg)
			}
			break
		}
	}
	if seen[0] != string(protocol.TypeTranscriptPartial) {
		t.Fatalf("message order = %v", seen)
	}
	waitFor(t, "spoken reply", func() bool { return st.spoke(assistant.FallbackReply) })
}

func TestOnboardingStatus(t *testing.T) {
	st := newTestServer(t)

	res, body := st.do(t, http.MethodGet, "/v1/onboarding/status", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var out onboardingStatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ScheduleStore != "in-memory" || len(out.Checks) == 0 {
		t.Fatalf("status = %+v", out)
	}
}
