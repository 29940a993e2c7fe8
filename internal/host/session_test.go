package host

import (
	"testing"

	"go.uber.org/zap"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(Options{
		Width: 80, Height: 40,
		RXFifoDepth: 8, TXFifoDepth: 800,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewAssignsUUIDAndWiresScreen(t *testing.T) {
	s := newTestSession(t)
	if s.ID == "" {
		t.Fatalf("expected non-empty session ID")
	}
	if s.Screen().Width() != 80 || s.Screen().Height() != 40 {
		t.Fatalf("unexpected screen dims: %dx%d", s.Screen().Width(), s.Screen().Height())
	}
}

func TestNewRejectsOversizedScreen(t *testing.T) {
	_, err := New(Options{Width: 200, Height: 200, RXFifoDepth: 8, TXFifoDepth: 800}, zap.NewNop())
	if err == nil {
		t.Fatalf("expected error for oversized screen")
	}
}

func TestWriteInputBeforeStartQueuesWithoutPanicking(t *testing.T) {
	s := newTestSession(t)
	n := s.WriteInput([]byte("echo hi\n"))
	if n != len("echo hi\n") {
		t.Fatalf("accepted = %d, want %d", n, len("echo hi\n"))
	}
}

func TestWriteInputRespectsFifoCapacity(t *testing.T) {
	s, err := New(Options{Width: 80, Height: 40, RXFifoDepth: 8, TXFifoDepth: 4}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := s.WriteInput([]byte("abcdef"))
	if n != 4 {
		t.Fatalf("accepted = %d, want 4 (tx fifo capacity)", n)
	}
}

func TestResizeWithoutStartFails(t *testing.T) {
	s := newTestSession(t)
	if err := s.Resize(100, 40); err == nil {
		t.Fatalf("expected error resizing a session with no active pty")
	}
}
