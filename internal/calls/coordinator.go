package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/policy"
	"github.com/ent0n29/callassist/internal/session"
	"github.com/ent0n29/callassist/internal/voice"
)

var (
	ErrNoDialer      = errors.New("no dialer configured")
	ErrUnknownQuick  = errors.New("unknown quick reply")
	errPoolSaturated = errors.New("greeting workers saturated")
)

// Speaker renders a message in a voice style without blocking.
type Speaker interface {
	Speak(message, style string)
}

// ReplyAgent is the online reply generator.
type ReplyAgent interface {
	agent.Generator
	Configured() bool
}

// Dialer places an outgoing call on the phone.
type Dialer interface {
	Dial(ctx context.Context, number string) error
}

// Notifier surfaces a ringing call that the assistant will not answer.
type Notifier interface {
	IncomingCall(ev callstate.CallEvent)
}

type Config struct {
	Registry     *callstate.Registry
	Mode         *callstate.ModeStore
	Gate         connectivity.Gate
	Agent        ReplyAgent
	Speaker      Speaker
	Dialer       Dialer
	Notifier     Notifier
	Tracker      *session.Manager
	ReplyTimeout time.Duration
	WorkerLimit  int
	// OnCallEnded runs after an ended event, e.g. to stop a live capture.
	OnCallEnded func()
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Coordinator decides what the assistant says on each call transition.
// HandleEvent never blocks on network or audio.
type Coordinator struct {
	cfg     Config
	logger  *zap.Logger
	workers errgroup.Group
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Registry == nil {
		cfg.Registry = callstate.NewRegistry()
	}
	if cfg.Mode == nil {
		cfg.Mode = callstate.NewModeStore(callstate.AssistantMode{})
	}
	if cfg.Gate == nil {
		cfg.Gate = connectivity.NewStaticGate(false)
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	if cfg.WorkerLimit < 1 {
		cfg.WorkerLimit = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{cfg: cfg, logger: logger}
	c.workers.SetLimit(cfg.WorkerLimit)
	return c
}

func (c *Coordinator) Registry() *callstate.Registry { return c.cfg.Registry }
func (c *Coordinator) Mode() *callstate.ModeStore    { return c.cfg.Mode }

// HandleEvent applies one telephony transition. Failures are logged and
// counted, never returned: the call itself must proceed.
func (c *Coordinator) HandleEvent(ev callstate.CallEvent) {
	c.cfg.Metrics.ObserveCallEvent(string(ev.Direction), string(ev.State))
	callID := ""
	if c.cfg.Tracker != nil {
		call := c.cfg.Tracker.Observe(ev)
		callID = call.ID
		c.cfg.Metrics.SetActiveCalls(c.cfg.Tracker.ActiveCount())
	}
	logger := c.logger.With(
		zap.String("direction", string(ev.Direction)),
		zap.String("state", string(ev.State)),
		zap.String("remote", policy.RedactNumber(ev.RemoteNumber)),
	)

	switch ev.State {
	case callstate.StateRinging:
		if ev.Direction == callstate.DirectionIncoming {
			c.handleRinging(ev, callID, logger)
		}
	case callstate.StateDialing, callstate.StateConnecting:
		if ev.Direction == callstate.DirectionOutgoing {
			c.handleDialing(ev, callID, logger)
		}
	case callstate.StateEnded:
		if c.cfg.OnCallEnded != nil {
			c.cfg.OnCallEnded()
		}
	}
}

func (c *Coordinator) handleRinging(ev callstate.CallEvent, callID string, logger *zap.Logger) {
	mode := c.cfg.Mode.Get()
	if !mode.AutoReplyEnabled {
		if c.cfg.Notifier != nil {
			c.cfg.Notifier.IncomingCall(ev)
		}
		logger.Debug("auto reply off, incoming call surfaced")
		return
	}
	greeting, path := c.incomingGreeting()
	c.say(greeting, mode.VoiceStyle, callID)
	c.cfg.Metrics.ObserveGreeting("incoming", path)
	logger.Info("incoming call greeted", zap.String("path", path))
}

func (c *Coordinator) incomingGreeting() (string, string) {
	if c.cfg.Gate.IsOnline() {
		return GreetingOnline, "online"
	}
	return GreetingOffline, "offline"
}

func (c *Coordinator) handleDialing(ev callstate.CallEvent, callID string, logger *zap.Logger) {
	pending, ok := c.cfg.Registry.ConsumeAndClear()
	if !ok {
		return
	}
	if ev.RemoteNumber == "" || pending.TargetNumber != ev.RemoteNumber {
		logger.Info("pending call did not match dialed number, discarded",
			zap.String("pending", policy.RedactNumber(pending.TargetNumber)))
		return
	}

	started := c.workers.TryGo(func() error {
		c.greetOutgoing(context.Background(), pending, callID, logger)
		return nil
	})
	if started {
		return
	}
	c.cfg.Metrics.ObserveWorkerRejection()
	logger.Warn("greeting workers saturated, using canned intro", zap.Error(errPoolSaturated))
	reason := effectiveReason(pending.Reason)
	c.say(CannedIntro(reason), c.effectiveStyle(pending), callID)
	c.cfg.Registry.ClearFor(pending.TargetNumber)
	c.cfg.Metrics.ObserveGreeting("outgoing", "saturated")
}

func (c *Coordinator) greetOutgoing(ctx context.Context, pending callstate.PendingCall, callID string, logger *zap.Logger) {
	began := time.Now()
	reason := effectiveReason(pending.Reason)
	line, path := c.OpeningLine(ctx, reason)
	c.say(line, c.effectiveStyle(pending), callID)
	c.cfg.Registry.ClearFor(pending.TargetNumber)
	c.cfg.Metrics.ObserveGreeting("outgoing", path)
	c.cfg.Metrics.ObserveStage("outgoing_greeting", time.Since(began))
	logger.Info("outgoing call greeted", zap.String("path", path))
}

// OpeningLine asks the reply agent for an introduction when online, and
// falls back to the canned intro on any failure. The canned intro carries
// the reason verbatim. The second result names
// the path taken.
func (c *Coordinator) OpeningLine(ctx context.Context, reason string) (string, string) {
	reason = effectiveReason(reason)
	if !c.online() {
		return CannedIntro(reason), "offline"
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReplyTimeout)
	defer cancel()
	line, err := c.cfg.Agent.Generate(ctx, OpeningPrompt(reason))
	line = voice.SpeechText(line)
	if err != nil || line == "" {
		c.logger.Info("opening line generation failed, using canned intro", zap.Error(err))
		return CannedIntro(reason), "fallback"
	}
	return line, "online"
}

func (c *Coordinator) online() bool {
	return c.cfg.Gate.IsOnline() && c.cfg.Agent != nil && c.cfg.Agent.Configured()
}

func (c *Coordinator) effectiveStyle(p callstate.PendingCall) string {
	if p.VoiceStyle != "" {
		return p.VoiceStyle
	}
	return c.cfg.Mode.Get().VoiceStyle
}

func effectiveReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return DefaultReason
	}
	return reason
}

func (c *Coordinator) say(message, style, callID string) {
	if c.cfg.Speaker == nil {
		return
	}
	c.cfg.Speaker.Speak(message, style)
	if callID != "" && c.cfg.Tracker != nil {
		_ = c.cfg.Tracker.MarkGreeted(callID)
	}
}

// QuickReply speaks the chosen template. A negative index speaks the
// regular incoming greeting instead.
func (c *Coordinator) QuickReply(index int, style string) (string, error) {
	if index >= len(QuickReplies) {
		return "", fmt.Errorf("%w: %d", ErrUnknownQuick, index)
	}
	if strings.TrimSpace(style) == "" {
		style = c.cfg.Mode.Get().VoiceStyle
	}
	var msg, path string
	if index < 0 {
		msg, path = c.incomingGreeting()
	} else {
		msg, path = QuickReplies[index], "template"
	}
	c.say(msg, style, "")
	c.cfg.Metrics.ObserveGreeting("quick_reply", path)
	return msg, nil
}

// PlaceAICall confirms the call to the user, arms the registry and dials.
// The registry is disarmed again if dialing fails.
func (c *Coordinator) PlaceAICall(ctx context.Context, number, purpose, style string) (string, error) {
	number = strings.TrimSpace(number)
	purpose = strings.TrimSpace(purpose)
	if number == "" {
		return "", callstate.ErrEmptyNumber
	}
	if c.cfg.Dialer == nil {
		return "", ErrNoDialer
	}
	intro := PlaceCallIntro(purpose)
	speakStyle := style
	if strings.TrimSpace(speakStyle) == "" {
		speakStyle = c.cfg.Mode.Get().VoiceStyle
	}
	c.say(intro, speakStyle, "")

	if err := c.cfg.Registry.SetPending(number, purpose, style); err != nil {
		return "", err
	}
	if err := c.cfg.Dialer.Dial(ctx, number); err != nil {
		c.cfg.Registry.ClearFor(number)
		return "", fmt.Errorf("dial %s: %w", policy.RedactNumber(number), err)
	}
	c.logger.Info("ai call placed", zap.String("remote", policy.RedactNumber(number)))
	return intro, nil
}

// Wait blocks until in-flight greetings finish.
func (c *Coordinator) Wait() {
	_ = c.workers.Wait()
}

// ArmAndDial is the scheduled-call path: arm the registry with no explicit
// style and dial. An empty number does nothing.
func (c *Coordinator) ArmAndDial(ctx context.Context, number, reason string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil
	}
	if c.cfg.Dialer == nil {
		return ErrNoDialer
	}
	if err := c.cfg.Registry.SetPending(number, reason, ""); err != nil {
		return err
	}
	if err := c.cfg.Dialer.Dial(ctx, number); err != nil {
		c.cfg.Registry.ClearFor(number)
		return fmt.Errorf("dial %s: %w", policy.RedactNumber(number), err)
	}
	return nil
}
