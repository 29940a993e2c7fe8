package hostio

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/loomterm/loomterm"
	"github.com/loomterm/loomterm/internal/host"
)

// blinkTicksPerToggle sets the blink rate: at a 16ms render tick, 30 ticks
// is roughly the classic ~480ms VT100 blink half-period.
const blinkTicksPerToggle = 30

// Renderer periodically snapshots a Session's Screen and writes a
// differential ANSI render of it to out, XOR-toggling the visibility of
// blink-attributed cells at a fixed rate.
type Renderer struct {
	session *host.Session
	out     io.Writer

	mu   sync.Mutex
	last loomterm.Snapshot
	have bool

	blinkOn      bool
	drawnBlinkOn bool
	tick         int

	ticker *time.Ticker
	stop   chan struct{}
}

// NewRenderer builds a Renderer over session, writing to out.
func NewRenderer(session *host.Session, out io.Writer) *Renderer {
	return &Renderer{session: session, out: out, blinkOn: true, stop: make(chan struct{})}
}

// Start begins the 16ms render loop in a background goroutine.
func (r *Renderer) Start() {
	r.ticker = time.NewTicker(16 * time.Millisecond)
	go r.loop()
}

// Stop halts the render loop.
func (r *Renderer) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.stop)
}

func (r *Renderer) loop() {
	for {
		select {
		case <-r.ticker.C:
			r.mu.Lock()
			r.tick++
			if r.tick >= blinkTicksPerToggle {
				r.tick = 0
				r.blinkOn = !r.blinkOn
			}
			r.mu.Unlock()
			r.render()
		case <-r.stop:
			return
		}
	}
}

// render takes a fresh Snapshot and writes only the cells that changed
// since the previous one, matching cli/renderer.go's differential-frame
// strategy but keyed on our flatter glyph/attr arrays instead of a cell
// grid.
func (r *Renderer) render() {
	snap := r.session.Screen().Snapshot()

	r.mu.Lock()
	prev := r.last
	havePrev := r.have
	blinkOn := r.blinkOn
	blinkFlipped := havePrev && r.drawnBlinkOn != blinkOn
	r.last = snap
	r.have = true
	r.drawnBlinkOn = blinkOn
	r.mu.Unlock()

	var b strings.Builder
	b.WriteString("\x1b[?25l")

	fullRedraw := !havePrev || prev.Width != snap.Width || prev.Height != snap.Height

	for i := 0; i < len(snap.Glyphs); i++ {
		if !fullRedraw && prev.Glyphs[i] == snap.Glyphs[i] && prev.Attrs[i] == snap.Attrs[i] &&
			!(blinkFlipped && snap.Attrs[i].Blink) {
			continue
		}
		x, y := i%snap.Width, i/snap.Width
		fmt.Fprintf(&b, "\x1b[%d;%dH", y+1, x+1)
		writeSGR(&b, snap.Attrs[i], blinkOn)
		b.WriteByte(visibleGlyph(snap.Glyphs[i], snap.Attrs[i], blinkOn))
	}

	fmt.Fprintf(&b, "\x1b[%d;%dH", snap.CursorY+1, snap.CursorX+1)
	if snap.CursorOn {
		b.WriteString("\x1b[?25h")
	}

	io.WriteString(r.out, b.String())
}

// visibleGlyph returns a space in place of the stored glyph when the cell
// is mid-blink-off, rather than mutating Screen state.
func visibleGlyph(g byte, a loomterm.AttributeCell, blinkOn bool) byte {
	if a.Blink && !blinkOn {
		return ' '
	}
	return g
}

// writeSGR emits the minimal SGR sequence needed to display a.
func writeSGR(b *strings.Builder, a loomterm.AttributeCell, blinkOn bool) {
	b.WriteString("\x1b[0")
	if a.Bold {
		b.WriteString(";1")
	}
	if a.Underscore {
		b.WriteString(";4")
	}
	if a.Blink && blinkOn {
		b.WriteString(";5")
	}
	if a.ReverseVideo {
		b.WriteString(";7")
	}
	if !a.Conceal {
		fmt.Fprintf(b, ";%d", 30+int(a.Foreground))
		fmt.Fprintf(b, ";%d", 40+int(a.Background))
	} else {
		fmt.Fprintf(b, ";%d", 30+int(a.Foreground))
		fmt.Fprintf(b, ";%d", 40+int(a.Foreground))
	}
	b.WriteByte('m')
}
