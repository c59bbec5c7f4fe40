package callstate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestHasPendingForTracksSetAndClear(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"0100000001", "+201234", "x"} {
		if err := r.SetPending(n, "reason", ""); err != nil {
			t.Fatalf("SetPending(%q) error = %v", n, err)
		}
		if !r.HasPendingFor(n) {
			t.Fatalf("HasPendingFor(%q) = false after SetPending", n)
		}
		if _, ok := r.ConsumeAndClear(); !ok {
			t.Fatalf("ConsumeAndClear() found nothing")
		}
		if r.HasPendingFor(n) {
			t.Fatalf("HasPendingFor(%q) = true after ConsumeAndClear", n)
		}

		_ = r.SetPending(n, "reason", "")
		r.Clear()
		if r.HasPendingFor(n) {
			t.Fatalf("HasPendingFor(%q) = true after Clear", n)
		}
	}
}

func TestHasPendingForIsExact(t *testing.T) {
	r := NewRegistry()
	_ = r.SetPending("0100000001", "", "")
	for _, n := range []string{"", "100000001", "0100000001 ", "+20100000001"} {
		if r.HasPendingFor(n) {
			t.Fatalf("HasPendingFor(%q) = true, want exact match only", n)
		}
	}
}

func TestSetPendingRejectsEmptyNumber(t *testing.T) {
	r := NewRegistry()
	if err := r.SetPending("", "reason", "شاب"); !errors.Is(err, ErrEmptyNumber) {
		t.Fatalf("SetPending(\"\") error = %v, want ErrEmptyNumber", err)
	}
	if _, ok := r.Peek(); ok {
		t.Fatalf("registry armed with empty number")
	}
}

func TestSetPendingOverwrites(t *testing.T) {
	r := NewRegistry()
	_ = r.SetPending("1", "first", "")
	_ = r.SetPending("2", "second", "طفل")
	p, ok := r.ConsumeAndClear()
	if !ok || p != (PendingCall{TargetNumber: "2", Reason: "second", VoiceStyle: "طفل"}) {
		t.Fatalf("ConsumeAndClear() = %+v, %v", p, ok)
	}
}

func TestConsumeAndClearTwice(t *testing.T) {
	r := NewRegistry()
	_ = r.SetPending("1", "", "")
	if _, ok := r.ConsumeAndClear(); !ok {
		t.Fatalf("first ConsumeAndClear() empty")
	}
	if _, ok := r.ConsumeAndClear(); ok {
		t.Fatalf("second ConsumeAndClear() returned a call")
	}
}

func TestConsumeAndClearAppliesOnceUnderContention(t *testing.T) {
	r := NewRegistry()
	_ = r.SetPending("1", "", "")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.ConsumeAndClear(); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("consumers that won = %d, want 1", wins.Load())
	}
}

func TestModeStoreUpdate(t *testing.T) {
	s := NewModeStore(AssistantMode{VoiceStyle: "شاب"})
	got := s.Update(func(m *AssistantMode) { m.AutoReplyEnabled = true })
	if !got.AutoReplyEnabled || got.VoiceStyle != "شاب" {
		t.Fatalf("Update() = %+v", got)
	}
	s.Update(func(m *AssistantMode) { m.OfflinePreferred = true })
	if m := s.Get(); !m.AutoReplyEnabled || !m.OfflinePreferred {
		t.Fatalf("Get() after second Update = %+v", m)
	}
}

func TestCallEventValidate(t *testing.T) {
	ev := CallEvent{Direction: " Outgoing", State: "DIALING"}
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if ev.Direction != DirectionOutgoing || ev.State != StateDialing {
		t.Fatalf("normalized event = %+v", ev)
	}
	bad := []CallEvent{
		{Direction: "sideways", State: StateRinging},
		{Direction: DirectionIncoming, State: "on-hold"},
	}
	for _, ev := range bad {
		if err := ev.Validate(); err == nil {
			t.Fatalf("Validate(%+v) expected error", ev)
		}
	}
}

func TestClearForLeavesOtherNumbers(t *testing.T) {
	r := NewRegistry()
	_ = r.SetPending("2", "", "")
	r.ClearFor("1")
	if !r.HasPendingFor("2") {
		t.Fatalf("ClearFor(1) removed the call for 2")
	}
	r.ClearFor("2")
	if r.HasPendingFor("2") {
		t.Fatalf("ClearFor(2) left the call armed")
	}
}
