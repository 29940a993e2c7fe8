package loomterm

// parserState is a tagged variant over the five named escape-sequence
// states plus Normal. The zero value is stateNormal, the state the
// machine starts and ends in between sequences.
type parserState int

const (
	stateNormal parserState = iota
	stateCsi
	stateCommand
	stateNumber1
	stateNumber2
	stateDectcem
)

// maxParamDigits is the four-decimal-digit limit on CSI parameters: a
// fifth digit is a parameter overflow and fails the sequence.
const maxParamDigits = 4

// Interpreter is the byte-stream state machine that drives a Screen: it
// owns no state of its own beyond the in-flight escape sequence (the
// current parserState plus its accumulated n1/n2/commandIndex); every
// committed effect lands directly on the Screen it was constructed with.
type Interpreter struct {
	screen *Screen

	state        parserState
	n1, n2       uint
	commandIndex int
}

// NewInterpreter returns an Interpreter that mutates screen.
func NewInterpreter(screen *Screen) *Interpreter {
	return &Interpreter{screen: screen}
}

// Feed consumes one byte and advances the state machine. It never returns
// an error: a malformed sequence silently resets to Normal and any side
// effects already committed by earlier, successfully-terminated sequences
// are retained.
func (in *Interpreter) Feed(b byte) {
	s := in.screen
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.state == stateNormal {
		in.feedNormal(b)
		return
	}
	in.feedEscape(b)
}

// feedNormal handles a byte while state is Normal: control bytes move the
// cursor or erase a cell, anything else is written as a glyph. Caller
// holds s.mu.
func (in *Interpreter) feedNormal(b byte) {
	s := in.screen
	switch b {
	case 0x1B: // ESC
		in.state = stateCsi
		return
	case 0x09: // TAB
		s.cursor += 8
		s.cursor &^= 7
	case 0x0A, 0x0D: // LF, CR
		s.cursor = ((s.cursor / s.width) + 1) * s.width
	case 0x08, 0x7F: // BS, DEL
		x := s.cursor % s.width
		y := s.cursor / s.width
		if x > 0 {
			x--
		}
		s.cursor = y*s.width + x
		s.glyphs[s.cursor] = ' '
		return // clamped motion can never overflow; attrs untouched
	default:
		s.glyphs[s.cursor] = b
		s.attrs[s.cursor] = s.currentAttr
		s.cursor++
	}
	if s.cursor >= s.size {
		s.resetLocked()
		s.cursor %= s.size
	}
}

// feedEscape dispatches a byte belonging to an in-flight escape sequence
// (state != Normal) to the matching state handler.
func (in *Interpreter) feedEscape(b byte) {
	switch in.state {
	case stateCsi:
		in.feedCsi(b)
	case stateCommand:
		in.feedCommand(b)
	case stateNumber1:
		in.feedNumber1(b)
	case stateNumber2:
		in.feedNumber2(b)
	case stateDectcem:
		in.feedDectcem(b)
	}
}

func (in *Interpreter) fail() {
	in.state = stateNormal
}

func (in *Interpreter) success() {
	in.state = stateNormal
}

// resetParams applies the CSI parameter defaults: n1=1, n2=1,
// commandIndex=0 (no digit seen yet for the number about to be parsed).
func (in *Interpreter) resetParams() {
	in.n1 = 1
	in.n2 = 1
	in.commandIndex = 0
}

// Csi: "received ESC; awaiting '['".
func (in *Interpreter) feedCsi(b byte) {
	if b == '[' {
		in.state = stateCommand
		return
	}
	in.fail()
}

// Command: "received ESC [; awaiting the first byte of a CSI body".
func (in *Interpreter) feedCommand(b byte) {
	s := in.screen
	switch {
	case b == 's':
		s.savedCursor = s.cursor
		in.success()
	case b == 'n':
		s.cursor = s.savedCursor
		in.success()
	case b == '?':
		in.resetParams()
		in.state = stateDectcem
	case b == ';':
		in.resetParams()
		in.state = stateNumber2
	case isDigit(b):
		in.resetParams()
		in.n1 = uint(b - '0')
		in.commandIndex = 1
		in.state = stateNumber1
	default:
		in.fail()
	}
}

// Number1: accumulating n1.
func (in *Interpreter) feedNumber1(b byte) {
	if isDigit(b) {
		if in.commandIndex > maxParamDigits-1 {
			in.fail()
			return
		}
		if in.commandIndex == 0 {
			in.n1 = uint(b - '0')
		} else {
			in.n1 = in.n1*10 + uint(b-'0')
		}
		in.commandIndex++
		return
	}

	if b == ';' {
		in.commandIndex = 0
		in.state = stateNumber2
		return
	}

	s := in.screen
	switch b {
	case 'A': // cursor up, clamped
		in.moveRelative(0, -int(in.n1), true)
		in.success()
	case 'B': // cursor down, clamped
		in.moveRelative(0, int(in.n1), true)
		in.success()
	case 'C': // cursor forward, clamped
		in.moveRelative(int(in.n1), 0, true)
		in.success()
	case 'D': // cursor backward, clamped
		in.moveRelative(-int(in.n1), 0, true)
		in.success()
	case 'E': // column 0, row += n1, wrap both axes
		in.moveAbsolute(0, in.currentY()+int(in.n1), false)
		in.success()
	case 'F': // column 0, row -= n1, wrap both axes
		in.moveAbsolute(0, in.currentY()-int(in.n1), false)
		in.success()
	case 'G': // column n1, same row, clamped
		in.moveAbsolute(int(in.n1), in.currentY(), true)
		in.success()
	case 'm': // SGR
		s.currentAttr.applySGR(int(in.n1))
		s.attrs[s.cursor] = s.currentAttr
		in.success()
	case 'i': // AUX port on/off, no effect
		if in.n1 == 4 || in.n1 == 5 {
			in.success()
		} else {
			in.fail()
		}
	case 'n': // DSR, acknowledged but no reply
		if in.n1 == 6 {
			in.success()
		} else {
			in.fail()
		}
	case 'J':
		in.eraseInDisplay()
	default:
		in.fail()
	}
}

// Number2: accumulating n2.
func (in *Interpreter) feedNumber2(b byte) {
	if isDigit(b) {
		if in.commandIndex > maxParamDigits-1 {
			in.fail()
			return
		}
		if in.commandIndex == 0 {
			in.n2 = uint(b - '0')
		} else {
			in.n2 = in.n2*10 + uint(b-'0')
		}
		in.commandIndex++
		return
	}

	s := in.screen
	switch b {
	case 'm':
		s.currentAttr.applySGR(int(in.n1))
		s.currentAttr.applySGR(int(in.n2))
		s.attrs[s.cursor] = s.currentAttr
		in.success()
	case 'H', 'f':
		in.moveAbsolute(int(in.n2), int(in.n1), true)
		in.success()
	default:
		in.fail()
	}
}

// Dectcem: ESC [ ? ... — accumulates n1 with a two-digit limit, then
// requires n1 == 25 before recognizing 'l'/'h'.
func (in *Interpreter) feedDectcem(b byte) {
	if isDigit(b) {
		if in.commandIndex > 1 {
			in.fail()
			return
		}
		if in.commandIndex == 0 {
			in.n1 = uint(b - '0')
		} else {
			in.n1 = in.n1*10 + uint(b-'0')
		}
		in.commandIndex++
		return
	}

	if in.n1 != 25 {
		in.fail()
		return
	}
	s := in.screen
	switch b {
	case 'l':
		s.cursorOn = false
		in.success()
	case 'h':
		s.cursorOn = true
		in.success()
	default:
		in.fail()
	}
}

// eraseInDisplay implements the J-command's erase-mode fallthrough: mode
// 3 or an explicit 2 clears the whole screen and homes the cursor, an
// explicit 1 clears the whole screen without homing it, and 0 (or a bare
// 1 with no digit typed) clears only the cells before the cursor. The
// fallthrough structure is semantically load-bearing and is reproduced
// explicitly rather than flattened into independent cases.
func (in *Interpreter) eraseInDisplay() {
	s := in.screen
	n1 := int(in.n1)
	digit := in.commandIndex > 0

	switch {
	case n1 == 3 || (n1 == 2 && digit):
		s.cursor = 0
		fallthrough
	case n1 == 1 && digit:
		s.resetLocked()
		in.success()
	case n1 == 1 && !digit:
		fallthrough
	case n1 == 0:
		in.clearBeforeCursor()
		in.success()
	default:
		in.fail()
	}
}

func (in *Interpreter) clearBeforeCursor() {
	s := in.screen
	for i := 0; i < s.cursor; i++ {
		s.glyphs[i] = ' '
		s.attrs[i] = DefaultAttributeCell
	}
}

// currentY returns the cursor's current row. Caller holds s.mu.
func (in *Interpreter) currentY() int {
	return in.screen.cursor / in.screen.width
}

// moveAbsolute sets the cursor to (x, y), either clamping each axis into
// range or wrapping it modulo the screen's width/height. Caller holds s.mu.
func (in *Interpreter) moveAbsolute(x, y int, clampNotWrap bool) {
	s := in.screen
	if clampNotWrap {
		if x < 0 {
			x = 0
		}
		if x >= s.width {
			x = s.width - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= s.height {
			y = s.height - 1
		}
	} else {
		x = wrap(x, s.width)
		y = wrap(y, s.height)
	}
	s.cursor = y*s.width + x
}

// moveRelative offsets the cursor by (dx, dy) and then applies the same
// clamp-or-wrap rule as moveAbsolute. Caller holds s.mu.
func (in *Interpreter) moveRelative(dx, dy int, clampNotWrap bool) {
	s := in.screen
	x := s.cursor%s.width + dx
	y := s.cursor/s.width + dy
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	in.moveAbsolute(x, y, clampNotWrap)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// wrap reduces v modulo m into [0, m), treating negative v the way Go's
// % operator would not (Go's % can return a negative result).
func wrap(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}
