package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/calls"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/protocol"
)

// ErrNoShim means no phone shim is connected to carry out a command.
var ErrNoShim = errors.New("no phone shim connected")

type shimConn struct {
	outbound chan any
}

// ShimHub fans commands out to the connected phone shims. It is the
// Dialer and Notifier the call coordinator uses.
type ShimHub struct {
	logger  *zap.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	conns map[*shimConn]struct{}
}

func NewShimHub(logger *zap.Logger, metrics *observability.Metrics) *ShimHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShimHub{logger: logger.Named("shim"), metrics: metrics, conns: make(map[*shimConn]struct{})}
}

func (h *ShimHub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *ShimHub) register() *shimConn {
	c := &shimConn{outbound: make(chan any, 32)}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *ShimHub) unregister(c *shimConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// broadcast queues msg on every shim and reports how many took it.
func (h *ShimHub) broadcast(msg any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.conns {
		select {
		case c.outbound <- msg:
			delivered++
		default:
			h.logger.Warn("shim outbound queue full, message dropped")
		}
	}
	return delivered
}

func (h *ShimHub) Dial(_ context.Context, number string) error {
	if h.broadcast(protocol.DialCommand{Type: protocol.TypeDialCommand, Number: number}) == 0 {
		return ErrNoShim
	}
	return nil
}

func (h *ShimHub) IncomingCall(ev callstate.CallEvent) {
	h.broadcast(protocol.IncomingPrompt{
		Type:         protocol.TypeIncomingPrompt,
		RemoteNumber: ev.RemoteNumber,
		QuickReplies: calls.QuickReplies,
	})
}

func (s *Server) handleShimWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "call coordinator not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hub := s.deps.Hub
	shim := hub.register()
	defer hub.unregister(shim)
	s.logger.Info("phone shim connected", zap.Int("shims", hub.Connected()))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	writerDone := make(chan struct{})
	go s.writeLoop(ctx, cancel, conn, shim.outbound, writerDone)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		reply := s.handleShimMessage(data)
		select {
		case shim.outbound <- reply:
		default:
			s.deps.Metrics.ObserveWSMessage("outbound", "drop_full")
		}
	}

	cancel()
	<-writerDone
	s.logger.Info("phone shim disconnected")
}

func (s *Server) handleShimMessage(data []byte) any {
	parsed, err := protocol.ParseShimMessage(data)
	if err != nil {
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_shim_message", Detail: err.Error()}
	}
	switch m := parsed.(type) {
	case protocol.CallEvent:
		s.deps.Metrics.ObserveWSMessage("inbound", string(m.Type))
		ev := callstate.CallEvent{
			Direction:    callstate.Direction(m.Direction),
			State:        callstate.State(m.State),
			RemoteNumber: m.RemoteNumber,
		}
		if err := ev.Validate(); err != nil {
			return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_call_event", Detail: err.Error()}
		}
		s.deps.Coordinator.HandleEvent(ev)
		return protocol.Ack{Type: protocol.TypeAck, Of: m.Type}
	case protocol.LinkState:
		s.deps.Metrics.ObserveWSMessage("inbound", string(m.Type))
		setter, ok := s.deps.Gate.(connectivity.Setter)
		if !ok {
			return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "link_state_unsupported", Detail: "connectivity is detected from interfaces"}
		}
		setter.SetOnline(m.Online)
		return protocol.Ack{Type: protocol.TypeAck, Of: m.Type}
	}
	return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_shim_message"}
}

// writeLoop keeps websocket writes on one goroutine.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan any, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				s.deps.Metrics.ObserveWSMessage("outbound", "write_error")
				cancel()
				return
			}
			if t, ok := messageTypeOf(msg); ok {
				s.deps.Metrics.ObserveWSMessage("outbound", string(t))
			}
		}
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.DialCommand:
		return m.Type, true
	case protocol.IncomingPrompt:
		return m.Type, true
	case protocol.Ack:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	case protocol.Transcript:
		return m.Type, true
	case protocol.AssistantReply:
		return m.Type, true
	default:
		return "", false
	}
}
