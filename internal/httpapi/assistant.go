package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/assistant"
	"github.com/ent0n29/callassist/internal/protocol"
	"github.com/ent0n29/callassist/internal/transcribe"
)

func (s *Server) handleReplyNow(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	turn, err := s.deps.Assistant.ReplyNow(r.Context(), nil)
	if err != nil {
		status, code := replyErrorStatus(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, turn)
}

func replyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, transcribe.ErrCaptureActive):
		return http.StatusConflict, "capture_active"
	case errors.Is(err, transcribe.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "recognizer_unavailable"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "cancelled"
	default:
		return http.StatusInternalServerError, "capture_failed"
	}
}

func (s *Server) handleAssistantWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go s.writeLoop(ctx, cancel, conn, outbound, writerDone)

	send := func(msg any) {
		select {
		case outbound <- msg:
		case <-ctx.Done():
		}
	}

	var turns sync.WaitGroup
	conn.SetReadLimit(16 << 10)
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
		ctrl, err := protocol.ParseAssistantMessage(data)
		if err != nil {
			send(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_assistant_message", Detail: err.Error()})
			continue
		}
		s.deps.Metrics.ObserveWSMessage("inbound", string(ctrl.Type))
		switch ctrl.Action {
		case protocol.ActionStop:
			if s.deps.Capture != nil {
				s.deps.Capture.StopActive()
			}
		case protocol.ActionReplyNow:
			turns.Add(1)
			go func() {
				defer turns.Done()
				s.streamTurn(ctx, send)
			}()
		}
	}

	cancel()
	turns.Wait()
	<-writerDone
}

func (s *Server) streamTurn(ctx context.Context, send func(any)) {
	turn, err := s.deps.Assistant.ReplyNow(ctx, func(r transcribe.Result) {
		send(protocol.Transcript{Type: protocol.TypeTranscriptPartial, Text: r.Text, Source: string(r.Source)})
	})
	if err != nil {
		_, code := replyErrorStatus(err)
		if !errors.Is(err, context.Canceled) {
			s.logger.Info("assistant turn failed", zap.Error(err))
		}
		send(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: code, Detail: err.Error()})
		return
	}
	send(protocol.Transcript{Type: protocol.TypeTranscriptFinal, Text: turn.Transcript, Source: string(turn.Source)})
	send(replyMessage(turn))
}

func replyMessage(turn assistant.Turn) protocol.AssistantReply {
	return protocol.AssistantReply{
		Type:       protocol.TypeAssistantReply,
		Transcript: turn.Transcript,
		Reply:      turn.Reply,
		ReplyPath:  turn.ReplyPath,
		Dialect:    turn.Dialect,
	}
}
