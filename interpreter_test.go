package loomterm

import "testing"

func newTestTerminal(t *testing.T, w, h int) (*Screen, *Interpreter) {
	t.Helper()
	s, err := NewScreen(w, h)
	if err != nil {
		t.Fatalf("NewScreen: %v", err)
	}
	return s, NewInterpreter(s)
}

func feedString(in *Interpreter, s string) {
	for i := 0; i < len(s); i++ {
		in.Feed(s[i])
	}
}

// S1: feed "Hi"; glyphs[0]='H', glyphs[1]='i', cursor=2, default attrs.
func TestScenarioS1(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "Hi")

	if g := s.GlyphAt(0, 0); g != 'H' {
		t.Fatalf("glyph 0 = %q, want 'H'", g)
	}
	if g := s.GlyphAt(1, 0); g != 'i' {
		t.Fatalf("glyph 1 = %q, want 'i'", g)
	}
	x, y, _ := s.Cursor()
	if x != 2 || y != 0 {
		t.Fatalf("cursor = (%d,%d), want (2,0)", x, y)
	}
	if a := s.AttrAt(0, 0); a != DefaultAttributeCell {
		t.Fatalf("attr 0 = %+v, want default", a)
	}
}

// S2: ESC[31mA ESC[0mB -> glyphs[0]='A' foreground=red; glyphs[1]='B' default; cursor=2.
func TestScenarioS2(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[31mA\x1b[0mB")

	if g := s.GlyphAt(0, 0); g != 'A' {
		t.Fatalf("glyph 0 = %q, want 'A'", g)
	}
	if fg := s.AttrAt(0, 0).Foreground; fg != ColorRed {
		t.Fatalf("fg 0 = %v, want red", fg)
	}
	if g := s.GlyphAt(1, 0); g != 'B' {
		t.Fatalf("glyph 1 = %q, want 'B'", g)
	}
	if a := s.AttrAt(1, 0); a != DefaultAttributeCell {
		t.Fatalf("attr 1 = %+v, want default", a)
	}
	x, y, _ := s.Cursor()
	if x != 2 || y != 0 {
		t.Fatalf("cursor = (%d,%d), want (2,0)", x, y)
	}
}

// S3: ESC[5;10H* -> '*' lands at row 5 col 10; cursor = 5*80+11.
func TestScenarioS3(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[5;10H*")

	if g := s.GlyphAt(10, 5); g != '*' {
		t.Fatalf("glyph(10,5) = %q, want '*'", g)
	}
	x, y, _ := s.Cursor()
	if got, want := y*80+x, 5*80+11; got != want {
		t.Fatalf("cursor index = %d, want %d", got, want)
	}
}

// S4: ESC[2J -> all space, all default attrs, cursor=0.
func TestScenarioS4(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "hello")
	feedString(in, "\x1b[2J")

	for i := 0; i < s.Size(); i++ {
		x, y := i%s.Width(), i/s.Width()
		if g := s.GlyphAt(x, y); g != ' ' {
			t.Fatalf("glyph(%d,%d) = %q, want space", x, y, g)
		}
		if a := s.AttrAt(x, y); a != DefaultAttributeCell {
			t.Fatalf("attr(%d,%d) = %+v, want default", x, y, a)
		}
	}
	x, y, _ := s.Cursor()
	if x != 0 || y != 0 {
		t.Fatalf("cursor = (%d,%d), want (0,0)", x, y)
	}
}

// S5: ESC[s ABC ESC[n X -> saved_cursor=0, restore, X overwrites glyphs[0], final cursor=1.
func TestScenarioS5(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[sABC\x1b[nX")

	if g := s.GlyphAt(0, 0); g != 'X' {
		t.Fatalf("glyph 0 = %q, want 'X'", g)
	}
	if g := s.GlyphAt(1, 0); g != 'B' {
		t.Fatalf("glyph 1 = %q, want 'B' (untouched)", g)
	}
	x, y, _ := s.Cursor()
	if x != 1 || y != 0 {
		t.Fatalf("cursor = (%d,%d), want (1,0)", x, y)
	}
}

// S6: DECTCEM toggling; an invalid private-mode value fails silently.
func TestScenarioS6(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[?25l")
	if s.CursorBlinks() {
		t.Fatalf("cursor_blinks should remain false")
	}
	if _, _, on := s.Cursor(); on {
		t.Fatalf("expected cursor hidden after ?25l")
	}
	feedString(in, "\x1b[?25h")
	if _, _, on := s.Cursor(); !on {
		t.Fatalf("expected cursor visible after ?25h")
	}
	feedString(in, "\x1b[?99l")
	if _, _, on := s.Cursor(); !on {
		t.Fatalf("?99l should fail silently, cursor should remain visible")
	}
}

// Property 6: ESC[s ESC[n leaves cursor unchanged from before the 's'.
func TestSaveRestoreRoundTrip(t *testing.T) {
	_, in := newTestTerminal(t, 80, 40)
	feedString(in, "abcdef")
	before := in.screen.cursor
	feedString(in, "\x1b[s\x1b[n")
	if in.screen.cursor != before {
		t.Fatalf("cursor after save/restore = %d, want %d", in.screen.cursor, before)
	}
}

// Property 7: ESC[0m applied twice yields the same current_attr as once.
func TestSGRResetIdempotent(t *testing.T) {
	_, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[31;1m")
	feedString(in, "\x1b[0m")
	once := in.screen.currentAttr
	feedString(in, "\x1b[0m")
	twice := in.screen.currentAttr
	if once != twice {
		t.Fatalf("attr changed on second reset: %+v vs %+v", once, twice)
	}
	if once != DefaultAttributeCell {
		t.Fatalf("expected default attr after reset, got %+v", once)
	}
}

// Property 8: ESC[2J twice yields an all-space screen both times, cursor at 0.
func TestClearScreenTwice(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "stuff")
	feedString(in, "\x1b[2J")
	feedString(in, "\x1b[2J")
	for i := 0; i < s.Size(); i++ {
		if s.glyphs[i] != ' ' {
			t.Fatalf("cell %d not space after double clear", i)
		}
	}
	if s.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", s.cursor)
	}
}

// Property 9: ESC[999;999H clamps to (79,39) on an 80x40 screen.
func TestCursorPositionClamp(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[999;999H")
	x, y, _ := s.Cursor()
	if x != 79 || y != 39 {
		t.Fatalf("cursor = (%d,%d), want (79,39)", x, y)
	}
}

// Property 10: a five-digit parameter overflows the four-digit limit and fails.
func TestParamOverflowFails(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	startX, startY, _ := s.Cursor()
	feedString(in, "\x1b[12345A")
	if in.state != stateNormal {
		t.Fatalf("state after overflow = %v, want Normal", in.state)
	}
	x, y, _ := s.Cursor()
	if x != startX || y != startY {
		t.Fatalf("cursor moved on failed sequence: (%d,%d)", x, y)
	}
}

// Property 11: BS at column 0 stays at column 0 and writes a space there.
func TestBackspaceAtColumnZero(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	in.Feed(0x08)
	x, y, _ := s.Cursor()
	if x != 0 || y != 0 {
		t.Fatalf("cursor = (%d,%d), want (0,0)", x, y)
	}
	if g := s.GlyphAt(0, 0); g != ' ' {
		t.Fatalf("glyph(0,0) = %q, want space", g)
	}
}

// Property 4: ESC followed by a non-'[' byte leaves state, glyphs and cursor untouched.
func TestEscNonBracketLeavesStateUntouched(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "ab")
	beforeCursor := s.cursor
	beforeGlyph := s.GlyphAt(0, 0)

	in.Feed(0x1B)
	in.Feed('X')

	if in.state != stateNormal {
		t.Fatalf("state = %v, want Normal", in.state)
	}
	if s.cursor != beforeCursor {
		t.Fatalf("cursor changed: %d vs %d", s.cursor, beforeCursor)
	}
	if s.GlyphAt(0, 0) != beforeGlyph {
		t.Fatalf("glyph(0,0) changed")
	}
}

// Property 5 / overflow clear: writing enough printables to reach the end
// of the buffer clears the whole screen and wraps the cursor to 0.
func TestOverflowClearsScreen(t *testing.T) {
	s, in := newTestTerminal(t, 4, 2) // size 8
	feedString(in, "ABCDEFGH")        // fills exactly to the boundary

	for i := 0; i < s.Size(); i++ {
		if s.glyphs[i] != ' ' {
			t.Fatalf("cell %d = %q, want space after overflow clear", i, s.glyphs[i])
		}
	}
	if s.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", s.cursor)
	}
}

// Invariant 1/2: cursor always stays within [0, size) across varied input,
// including TAB runs near the end of the buffer (Open Question 3).
func TestCursorAlwaysInBounds(t *testing.T) {
	s, in := newTestTerminal(t, 10, 3)
	input := "Hello\tWorld\x1b[5;5H\tmore text\t\t\t\x1b[2J\x1b[?25l\x1b[?25h"
	feedString(in, input)
	if s.cursor < 0 || s.cursor >= s.size {
		t.Fatalf("cursor %d out of bounds [0,%d)", s.cursor, s.size)
	}
	if in.state != stateNormal {
		t.Fatalf("state = %v, want Normal at end of feed", in.state)
	}
}

// Open Question 4: ESC[;H with no digits lands on (1,1), not (0,0).
func TestSemicolonHDefaultsToOneOne(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "\x1b[;H")
	x, y, _ := s.Cursor()
	if x != 1 || y != 1 {
		t.Fatalf("cursor = (%d,%d), want (1,1)", x, y)
	}
}

// Bare ESC[H (no digits, no leading ';') is not a recognized Command-state
// terminator and fails, per the grammar's Command-state table.
func TestBareHFailsWithoutDigitOrSemicolon(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	feedString(in, "abc")
	before := s.cursor
	feedString(in, "\x1b[H")
	if s.cursor != before {
		t.Fatalf("cursor moved on bare ESC[H: %d vs %d", s.cursor, before)
	}
	if in.state != stateNormal {
		t.Fatalf("state not reset to Normal after failed sequence")
	}
}

func TestEraseInDisplayVariants(t *testing.T) {
	t.Run("explicit zero clears before cursor", func(t *testing.T) {
		s, in := newTestTerminal(t, 20, 1)
		feedString(in, "0123456789")
		in.moveAbsolute(5, 0, true)
		feedString(in, "\x1b[0J")
		for i := 0; i < 5; i++ {
			if s.glyphs[i] != ' ' {
				t.Fatalf("cell %d not cleared", i)
			}
		}
		for i := 5; i < 10; i++ {
			if s.glyphs[i] == ' ' {
				t.Fatalf("cell %d unexpectedly cleared", i)
			}
		}
	})

	t.Run("1 without digit behaves like 0", func(t *testing.T) {
		s, in := newTestTerminal(t, 20, 1)
		feedString(in, "0123456789")
		in.moveAbsolute(3, 0, true)
		// ESC [ J fails in Command state, so the Number1 state that 'J' is
		// handled in is set up directly: n1 at its default (1), no digit.
		in.resetParams()
		in.state = stateNumber1
		in.Feed('J')
		for i := 0; i < 3; i++ {
			if s.glyphs[i] != ' ' {
				t.Fatalf("cell %d not cleared under default-J", i)
			}
		}
		for i := 3; i < 10; i++ {
			if s.glyphs[i] == ' ' {
				t.Fatalf("cell %d unexpectedly cleared under default-J", i)
			}
		}
	})

	t.Run("3 zeroes cursor then clears everything", func(t *testing.T) {
		s, in := newTestTerminal(t, 10, 1)
		feedString(in, "0123456789")
		feedString(in, "\x1b[3J")
		for i := 0; i < s.Size(); i++ {
			if s.glyphs[i] != ' ' {
				t.Fatalf("cell %d not cleared", i)
			}
		}
		if s.cursor != 0 {
			t.Fatalf("cursor = %d, want 0", s.cursor)
		}
	})
}

func TestFifoQueueBasics(t *testing.T) {
	q := NewFifoQueue(4)
	if !q.IsEmpty() {
		t.Fatalf("new queue should be empty")
	}
	for _, b := range []byte{1, 2, 3, 4} {
		if !q.Push(b) {
			t.Fatalf("push %d should succeed", b)
		}
	}
	if !q.IsFull() {
		t.Fatalf("queue should be full")
	}
	if q.Push(5) {
		t.Fatalf("push on full queue should fail")
	}
	for _, want := range []byte{1, 2, 3, 4} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("pop = (%d,%v), want (%d,true)", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop on empty queue should fail")
	}
}

func TestFifoQueueDrainFeedsInterpreterInOrder(t *testing.T) {
	s, in := newTestTerminal(t, 80, 40)
	q := NewFifoQueue(8)
	for _, b := range []byte("Hi") {
		q.Push(b)
	}
	q.Drain(in.Feed)

	if g := s.GlyphAt(0, 0); g != 'H' {
		t.Fatalf("glyph 0 = %q, want 'H'", g)
	}
	if g := s.GlyphAt(1, 0); g != 'i' {
		t.Fatalf("glyph 1 = %q, want 'i'", g)
	}
}
