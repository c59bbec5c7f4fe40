package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Phone shim to service.
	TypeCallEvent MessageType = "call_event"
	TypeLinkState MessageType = "link_state"
	// Service to phone shim.
	TypeDialCommand    MessageType = "dial_command"
	TypeIncomingPrompt MessageType = "incoming_prompt"

	TypeAssistantControl  MessageType = "assistant_control"
	TypeTranscriptPartial MessageType = "transcript_partial"
	TypeTranscriptFinal   MessageType = "transcript_final"
	TypeAssistantReply    MessageType = "assistant_reply"

	TypeAck        MessageType = "ack"
	TypeErrorEvent MessageType = "error_event"
)

const (
	ActionReplyNow = "reply_now"
	ActionStop     = "stop"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type CallEvent struct {
	Type         MessageType `json:"type"`
	Direction    string      `json:"direction"`
	State        string      `json:"state"`
	RemoteNumber string      `json:"remote_number,omitempty"`
}

type LinkState struct {
	Type   MessageType `json:"type"`
	Online bool        `json:"online"`
}

type DialCommand struct {
	Type   MessageType `json:"type"`
	Number string      `json:"number"`
}

type IncomingPrompt struct {
	Type         MessageType `json:"type"`
	RemoteNumber string      `json:"remote_number,omitempty"`
	QuickReplies []string    `json:"quick_replies"`
}

type AssistantControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

type Transcript struct {
	Type   MessageType `json:"type"`
	Text   string      `json:"text"`
	Source string      `json:"source"`
}

type AssistantReply struct {
	Type       MessageType `json:"type"`
	Transcript string      `json:"transcript"`
	Reply      string      `json:"reply"`
	ReplyPath  string      `json:"reply_path"`
	Dialect    string      `json:"dialect,omitempty"`
}

type Ack struct {
	Type MessageType `json:"type"`
	Of   MessageType `json:"of"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

// ParseShimMessage decodes a frame from the phone shim.
func ParseShimMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeCallEvent:
		var msg CallEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Direction == "" || msg.State == "" {
			return nil, errors.New("invalid call_event")
		}
		return msg, nil
	case TypeLinkState:
		var msg LinkState
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// ParseAssistantMessage decodes a frame on the assistant stream.
func ParseAssistantMessage(raw []byte) (AssistantControl, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return AssistantControl{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type != TypeAssistantControl {
		return AssistantControl{}, ErrUnsupportedType
	}
	var msg AssistantControl
	if err := json.Unmarshal(raw, &msg); err != nil {
		return AssistantControl{}, err
	}
	switch msg.Action {
	case ActionReplyNow, ActionStop:
		return msg, nil
	default:
		return AssistantControl{}, fmt.Errorf("invalid assistant_control action %q", msg.Action)
	}
}
