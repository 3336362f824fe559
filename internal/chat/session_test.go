package chat

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSession_StartsConnecting(t *testing.T) {
	s := NewSession(1, "alice", nil)
	if s.State() != StateConnecting {
		t.Errorf("State() = %v, want StateConnecting", s.State())
	}
}

func TestSession_BuffersLiveMessagesDuringReplay(t *testing.T) {
	s := NewSession(1, "alice", nil)

	// 回放未结束，实时消息进暂存队列。
	if !s.Send([]byte("live-1")) {
		t.Fatal("Send() during replay = false, want true")
	}
	if !s.Replay([]byte("history-1")) {
		t.Fatal("Replay() = false, want true")
	}
	if !s.Send([]byte("live-2")) {
		t.Fatal("Send() during replay = false, want true")
	}
	s.EndReplay()

	got := drain(s)
	want := []string{"history-1", "live-1", "live-2"}
	if len(got) != len(want) {
		t.Fatalf("drained %d frames %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSession_SendAfterEndReplayGoesStraightThrough(t *testing.T) {
	s := NewSession(1, "alice", nil)
	s.EndReplay()
	if s.State() != StateActive {
		t.Fatalf("State() = %v, want StateActive", s.State())
	}
	if !s.Send([]byte("direct")) {
		t.Fatal("Send() = false, want true")
	}
	got := drain(s)
	if len(got) != 1 || got[0] != "direct" {
		t.Errorf("drained %v, want [direct]", got)
	}
}

func TestSession_ActivatedOnlyAfterEndReplay(t *testing.T) {
	s := NewSession(1, "alice", nil)
	if s.Activated() {
		t.Error("Activated() before EndReplay = true, want false")
	}
	s.EndReplay()
	if !s.Activated() {
		t.Error("Activated() after EndReplay = false, want true")
	}
}

func TestSession_ClosedBeforeEndReplayStaysUnactivated(t *testing.T) {
	s := NewSession(1, "alice", nil)
	s.Close(websocket.CloseInternalServerErr, "")
	if s.Activated() {
		t.Error("Activated() after aborted replay = true, want false")
	}
	s.EndReplay()
	if s.Activated() {
		t.Error("EndReplay() on closed session flipped Activated, want false")
	}
}

func TestSession_SendAfterCloseFails(t *testing.T) {
	s := NewSession(1, "alice", nil)
	s.Close(websocket.CloseNormalClosure, "")
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want StateClosed", s.State())
	}
	if s.Send([]byte("late")) {
		t.Error("Send() after Close = true, want false")
	}
	if s.Replay([]byte("late")) {
		t.Error("Replay() after Close = true, want false")
	}
}

func TestSession_CloseRunsTeardownOnce(t *testing.T) {
	s := NewSession(1, "alice", nil)
	calls := 0
	s.SetTeardown(func() { calls++ })
	s.Close(websocket.CloseNormalClosure, "")
	s.Close(websocket.CloseGoingAway, "")
	if calls != 1 {
		t.Errorf("teardown ran %d times, want 1", calls)
	}
}

func TestSession_FullBufferClosesSlowSession(t *testing.T) {
	s := NewSession(1, "alice", nil)
	s.EndReplay()

	for i := 0; i < sendBuffer; i++ {
		if !s.Send([]byte("fill")) {
			t.Fatalf("Send() filled only %d frames", i)
		}
	}
	if s.Send([]byte("overflow")) {
		t.Error("Send() on full buffer = true, want false")
	}

	// 关闭是异步触发的。
	deadline := time.Now().Add(time.Second)
	for s.State() != StateClosed {
		if time.Now().After(deadline) {
			t.Fatal("session not closed after buffer overflow")
		}
		time.Sleep(time.Millisecond)
	}
}
