package loomterm

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxCells is the largest number of cells a Screen may hold.
const MaxCells = 8192

// screenDims is validated on construction via struct tags plus a
// registered struct-level rule for the width*height <= MaxCells invariant,
// instead of hand-rolled bounds checks.
type screenDims struct {
	Width  int `validate:"required,gt=0"`
	Height int `validate:"required,gt=0"`
}

var dimsValidator = newDimsValidator()

func newDimsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(screenDims)
		if d.Width*d.Height > MaxCells {
			sl.ReportError(d.Width, "Width", "Width", "maxcells", "")
		}
	}, screenDims{})
	return v
}

// Screen is the fixed-width/height character grid the Interpreter mutates:
// a glyph matrix, a parallel attribute matrix, cursor and saved-cursor
// positions, and the display flags and current attribute of each cell.
type Screen struct {
	mu sync.RWMutex

	width  int
	height int
	size   int

	glyphs []byte
	attrs  []AttributeCell

	cursor      int
	savedCursor int

	cursorOn     bool
	cursorBlinks bool

	currentAttr AttributeCell
}

// NewScreen constructs a Screen of the given dimensions. width*height must
// not exceed MaxCells; both must be positive.
func NewScreen(width, height int) (*Screen, error) {
	if err := dimsValidator.Struct(screenDims{Width: width, Height: height}); err != nil {
		return nil, fmt.Errorf("loomterm: invalid screen dimensions %dx%d: %w", width, height, err)
	}

	size := width * height
	s := &Screen{
		width:       width,
		height:      height,
		size:        size,
		glyphs:      make([]byte, size),
		attrs:       make([]AttributeCell, size),
		cursorOn:    true,
		currentAttr: DefaultAttributeCell,
	}
	s.resetLocked()
	return s, nil
}

// resetLocked clears every glyph to space and every attribute to the
// default, without touching cursor state. Caller must hold s.mu.
func (s *Screen) resetLocked() {
	for i := range s.glyphs {
		s.glyphs[i] = ' '
		s.attrs[i] = DefaultAttributeCell
	}
}

// Width, Height, Size return the Screen's fixed dimensions.
func (s *Screen) Width() int  { return s.width }
func (s *Screen) Height() int { return s.height }
func (s *Screen) Size() int   { return s.size }

// GlyphAt returns the glyph byte at (x, y).
func (s *Screen) GlyphAt(x, y int) byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.glyphs[y*s.width+x]
}

// AttrAt returns the display attributes at (x, y).
func (s *Screen) AttrAt(x, y int) AttributeCell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attrs[y*s.width+x]
}

// Cursor returns the cursor's column, row, and visibility.
func (s *Screen) Cursor() (x, y int, visible bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor % s.width, s.cursor / s.width, s.cursorOn
}

// CursorBlinks reports whether the cursor should animate. DECTCEM leaves
// this field alone and nothing in the escape grammar sets it, so it stays
// false; Snapshot carries it as Blinking.
func (s *Screen) CursorBlinks() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursorBlinks
}

// Snapshot copies every glyph and attribute out of the Screen along with
// cursor state, for collaborators (renderers, diagnostics) that need a
// consistent point-in-time view without holding the lock themselves.
type Snapshot struct {
	Width, Height       int
	Glyphs              []byte
	Attrs               []AttributeCell
	CursorX, CursorY    int
	CursorOn, Blinking  bool
}

// Snapshot takes a consistent copy of the Screen's state.
func (s *Screen) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	glyphs := make([]byte, s.size)
	copy(glyphs, s.glyphs)
	attrs := make([]AttributeCell, s.size)
	copy(attrs, s.attrs)
	return Snapshot{
		Width:     s.width,
		Height:    s.height,
		Glyphs:    glyphs,
		Attrs:     attrs,
		CursorX:   s.cursor % s.width,
		CursorY:   s.cursor / s.width,
		CursorOn:  s.cursorOn,
		Blinking:  s.cursorBlinks,
	}
}
