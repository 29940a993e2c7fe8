package loomterm

// AttributeCell holds the display attributes applied to one glyph: the
// boolean video attributes plus a foreground/background Color pair.
//
// The zero value is not the default attribute cell (its colors would be
// ColorBlack/ColorBlack) — use DefaultAttributeCell to get one with
// ColorWhite-on-ColorBlack, the default every new cell
// starts with.
type AttributeCell struct {
	Bold         bool
	Underscore   bool
	Blink        bool
	ReverseVideo bool
	Conceal      bool
	Foreground   Color
	Background   Color
}

// DefaultAttributeCell is the attribute state a new Screen and every
// cleared cell carries: no flags set, white on black.
var DefaultAttributeCell = AttributeCell{
	Foreground: DefaultForeground,
	Background: DefaultBackground,
}

// reset clears a to the default attribute state in place, used by SGR
// code 0.
func (a *AttributeCell) reset() {
	*a = DefaultAttributeCell
}

// applySGR updates a in place per one SGR parameter value. Unrecognized
// values have no effect.
func (a *AttributeCell) applySGR(v int) {
	switch {
	case v == 0:
		a.reset()
	case v == 1:
		a.Bold = true
	case v == 4:
		a.Underscore = true
	case v == 5:
		a.Blink = true
	case v == 7:
		a.ReverseVideo = true
	case v == 8:
		a.Conceal = true
	case v >= 30 && v <= 37:
		a.Foreground = Color(v - 30)
	case v >= 40 && v <= 47:
		a.Background = Color(v - 40)
	}
}
