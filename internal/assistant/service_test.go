package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/audio"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/transcribe"
)

type recordingSpeaker struct {
	mu     sync.Mutex
	said   []string
	styles []string
}

func (s *recordingSpeaker) Speak(message, style string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, message)
	s.styles = append(s.styles, style)
}

type stubAgent struct {
	configured bool
	reply      string
	err        error
	inputs     []string
}

func (a *stubAgent) Configured() bool { return a.configured }
func (a *stubAgent) Generate(_ context.Context, input string) (string, error) {
	a.inputs = append(a.inputs, input)
	return a.reply, a.err
}

func newService(rec *transcribe.ScriptedRecognizer, ag *stubAgent, online bool, mode callstate.AssistantMode) (*Service, *recordingSpeaker) {
	pipeline := transcribe.NewPipeline(transcribe.Config{
		OpenSource: func() (audio.Source, error) {
			return audio.NewMockSource(16000, 5*time.Millisecond), nil
		},
		Offline: rec,
	})
	speaker := &recordingSpeaker{}
	return NewService(Config{
		Capturer:        pipeline,
		Agent:           ag,
		Gate:            connectivity.NewStaticGate(online),
		Mode:            callstate.NewModeStore(mode),
		Speaker:         speaker,
		CaptureDuration: 20 * time.Millisecond,
	}), speaker
}

func TestReplyNowOnlineSpeaksAgentReply(t *testing.T) {
	rec := &transcribe.ScriptedRecognizer{Partials: []string{"انت"}, Final: "انت بتعمل ايه دلوقتي"}
	ag := &stubAgent{configured: true, reply: "بشتغل على طلبك"}
	svc, speaker := newService(rec, ag, true, callstate.AssistantMode{VoiceStyle: "شاب"})

	var partials []string
	turn, err := svc.ReplyNow(context.Background(), func(r transcribe.Result) { partials = append(partials, r.Text) })
	if err != nil {
		t.Fatalf("ReplyNow() error = %v", err)
	}
	if turn.Reply != "بشتغل على طلبك" || turn.ReplyPath != "online" || turn.Dialect != "مصري" {
		t.Fatalf("turn = %+v", turn)
	}
	if len(partials) != 1 || partials[0] != "انت" {
		t.Fatalf("partials = %v", partials)
	}
	if len(speaker.said) != 1 || speaker.said[0] != turn.Reply || speaker.styles[0] != "شاب" {
		t.Fatalf("spoken = %v / %v", speaker.said, speaker.styles)
	}
}

func TestReplyNowCleansAgentMarkup(t *testing.T) {
	ag := &stubAgent{configured: true, reply: "## تمام\n- هبعتلك التفاصيل 😊"}
	svc, speaker := newService(&transcribe.ScriptedRecognizer{Final: "ابعتلي التفاصيل"}, ag, true, callstate.AssistantMode{})

	turn, err := svc.ReplyNow(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReplyNow() error = %v", err)
	}
	if turn.Reply != "تمام هبعتلك التفاصيل" || speaker.said[0] != turn.Reply {
		t.Fatalf("turn = %+v, spoken = %v", turn, speaker.said)
	}
}

func TestReplyNowMarkupOnlyReplyFallsBack(t *testing.T) {
	ag := &stubAgent{configured: true, reply: "✅ 👍"}
	svc, _ := newService(&transcribe.ScriptedRecognizer{Final: "سلام"}, ag, true, callstate.AssistantMode{})

	turn, err := svc.ReplyNow(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReplyNow() error = %v", err)
	}
	if turn.Reply != FallbackReply || turn.ReplyPath != "fallback" {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestReplyNowEmptyTranscript(t *testing.T) {
	ag := &stubAgent{configured: true, reply: "unused"}
	svc, speaker := newService(&transcribe.ScriptedRecognizer{}, ag, true, callstate.AssistantMode{})
	turn, err := svc.ReplyNow(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReplyNow() error = %v", err)
	}
	if turn.Reply != EmptyTranscriptReply || len(ag.inputs) != 0 {
		t.Fatalf("turn = %+v, agent inputs = %v", turn, ag.inputs)
	}
	if speaker.said[0] != EmptyTranscriptReply {
		t.Fatalf("spoken = %v", speaker.said)
	}
}

func TestReplyNowFallsBackOnAgentError(t *testing.T) {
	ag := &stubAgent{configured: true, err: agent.ErrTimeout}
	svc, _ := newService(&transcribe.ScriptedRecognizer{Final: "سلام"}, ag, true, callstate.AssistantMode{})
	turn, err := svc.ReplyNow(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReplyNow() error = %v", err)
	}
	if turn.Reply != FallbackReply || turn.ReplyPath != "fallback" {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestReplyNowOfflinePreferredSkipsAgent(t *testing.T) {
	ag := &stubAgent{configured: true, reply: "unused"}
	svc, _ := newService(&transcribe.ScriptedRecognizer{Final: "سلام"}, ag, true, callstate.AssistantMode{OfflinePreferred: true})
	turn, _ := svc.ReplyNow(context.Background(), nil)
	if turn.ReplyPath != "offline" || len(ag.inputs) != 0 {
		t.Fatalf("turn = %+v, agent inputs = %v", turn, ag.inputs)
	}
}

func TestReplyNowReportsMissingModel(t *testing.T) {
	rec := &transcribe.ScriptedRecognizer{OpenErr: transcribe.ErrModelUnavailable}
	svc, speaker := newService(rec, &stubAgent{}, false, callstate.AssistantMode{})
	if _, err := svc.ReplyNow(context.Background(), nil); !errors.Is(err, transcribe.ErrModelUnavailable) {
		t.Fatalf("ReplyNow() error = %v, want ErrModelUnavailable", err)
	}
	if len(speaker.said) != 0 {
		t.Fatalf("spoke after recognizer failure")
	}
}
