package protocol

import (
	"errors"
	"testing"
)

func TestParseShimMessageCallEvent(t *testing.T) {
	raw := []byte(`{"type":"call_event","direction":"outgoing","state":"dialing","remote_number":"0100000001"}`)
	msg, err := ParseShimMessage(raw)
	if err != nil {
		t.Fatalf("ParseShimMessage() error = %v", err)
	}
	ev, ok := msg.(CallEvent)
	if !ok {
		t.Fatalf("message type = %T, want CallEvent", msg)
	}
	if ev.Direction != "outgoing" || ev.State != "dialing" || ev.RemoteNumber != "0100000001" {
		t.Fatalf("unexpected call event: %+v", ev)
	}
}

func TestParseShimMessageLinkState(t *testing.T) {
	msg, err := ParseShimMessage([]byte(`{"type":"link_state","online":true}`))
	if err != nil {
		t.Fatalf("ParseShimMessage() error = %v", err)
	}
	if ls, ok := msg.(LinkState); !ok || !ls.Online {
		t.Fatalf("message = %+v", msg)
	}
}

func TestParseShimMessageRejectsIncompleteEvent(t *testing.T) {
	if _, err := ParseShimMessage([]byte(`{"type":"call_event","state":"ringing"}`)); err == nil {
		t.Fatalf("expected error for call_event without direction")
	}
}

func TestParseShimMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseShimMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseAssistantMessage(t *testing.T) {
	msg, err := ParseAssistantMessage([]byte(`{"type":"assistant_control","action":"reply_now"}`))
	if err != nil || msg.Action != ActionReplyNow {
		t.Fatalf("ParseAssistantMessage() = %+v, %v", msg, err)
	}
	if _, err := ParseAssistantMessage([]byte(`{"type":"assistant_control","action":"dance"}`)); err == nil {
		t.Fatalf("expected error for unknown action")
	}
	if _, err := ParseAssistantMessage([]byte(`{"type":"call_event"}`)); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}
