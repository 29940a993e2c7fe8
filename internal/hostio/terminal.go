// Package hostio adapts a host.Session onto the local controlling
// terminal: it puts stdin into raw mode, forwards keystrokes to the
// session, and periodically renders the Screen with differential,
// blink-aware ANSI output.
package hostio

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/loomterm/loomterm/internal/host"
)

// Terminal binds a Session to the process's own stdin/stdout, the way
// cli.Terminal bound a purfecterm buffer/parser pair to the host console.
type Terminal struct {
	session *host.Session
	log     *zap.Logger

	renderer *Renderer

	oldState *term.State
	stopIn   chan struct{}
}

// New builds a Terminal that renders session to stdout and forwards stdin
// to it once Start is called.
func New(session *host.Session, log *zap.Logger) *Terminal {
	return &Terminal{
		session:  session,
		log:      log,
		renderer: NewRenderer(session, os.Stdout),
		stopIn:   make(chan struct{}),
	}
}

// Start enters raw mode on stdin, begins the render loop, and begins
// forwarding stdin bytes to the session's PTY.
func (t *Terminal) Start() error {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("hostio: enter raw mode: %w", err)
	}
	t.oldState = oldState

	fmt.Fprint(os.Stdout, "\x1b[2J\x1b[H")

	t.renderer.Start()
	go t.inputLoop()
	return nil
}

// inputLoop copies raw stdin bytes to the session until Stop is called or
// stdin reaches EOF.
func (t *Terminal) inputLoop() {
	buf := make([]byte, 1024)
	for {
		select {
		case <-t.stopIn:
			return
		default:
		}

		n, err := os.Stdin.Read(buf)
		if n > 0 {
			t.session.WriteInput(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				t.log.Warn("stdin read error", zap.Error(err))
			}
			return
		}
	}
}

// Stop restores the original terminal state and halts rendering.
func (t *Terminal) Stop() error {
	close(t.stopIn)
	t.renderer.Stop()

	fmt.Fprint(os.Stdout, "\x1b[0m\x1b[?25h")

	if t.oldState != nil {
		return term.Restore(int(os.Stdin.Fd()), t.oldState)
	}
	return nil
}
