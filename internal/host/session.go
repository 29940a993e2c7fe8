// Package host wires a pseudo-terminal-backed child process to the
// loomterm interpreter core through a pair of bounded FifoQueues, the way
// the original UART wiring fed a terminal_t one byte at a time.
package host

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomterm/loomterm"
)

// Session owns one PTY-backed child process, its Screen/Interpreter pair,
// and the two FifoQueues that decouple PTY reads from interpretation —
// rx carries host output toward the Interpreter, tx carries keystrokes
// toward the child.
type Session struct {
	ID string

	log *zap.Logger

	screen *loomterm.Screen
	interp *loomterm.Interpreter

	rx *loomterm.FifoQueue
	tx *loomterm.FifoQueue

	mu      sync.Mutex
	pty     *os.File
	cmd     *exec.Cmd
	running bool
	done    chan struct{}

	onExit func(code int)
}

// Options configures a Session.
type Options struct {
	Width, Height int
	RXFifoDepth   int
	TXFifoDepth   int
	Shell         string
	WorkingDir    string
	OnExit        func(code int)
}

// New constructs a Session's Screen, Interpreter and FifoQueues without
// starting a child process. Call Start to spawn the shell.
func New(opts Options, log *zap.Logger) (*Session, error) {
	screen, err := loomterm.NewScreen(opts.Width, opts.Height)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}

	return &Session{
		ID:     uuid.New().String(),
		log:    log,
		screen: screen,
		interp: loomterm.NewInterpreter(screen),
		rx:     loomterm.NewFifoQueue(opts.RXFifoDepth),
		tx:     loomterm.NewFifoQueue(opts.TXFifoDepth),
		done:   make(chan struct{}),
		onExit: opts.OnExit,
	}, nil
}

// Screen returns the Session's terminal grid, for renderer and diagnostics
// collaborators. Screen is safe for concurrent reads while a Session is
// running; callers other than the Session itself never mutate it.
func (s *Session) Screen() *loomterm.Screen { return s.screen }

// Start spawns shell (or $SHELL, or /bin/sh) inside a PTY of the Session's
// configured dimensions and begins draining its output into the rx fifo
// and, from there, into the Interpreter.
func (s *Session) Start(shell, workingDir string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("host: session %s already running", s.ID)
	}
	s.mu.Unlock()

	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), "TERM=ansi")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(s.screen.Height()),
		Cols: uint16(s.screen.Width()),
	})
	if err != nil {
		return fmt.Errorf("host: start pty: %w", err)
	}

	s.mu.Lock()
	s.pty = ptmx
	s.cmd = cmd
	s.running = true
	s.mu.Unlock()

	s.log.Info("session started",
		zap.String("session_id", s.ID), zap.String("shell", shell),
		zap.Int("width", s.screen.Width()), zap.Int("height", s.screen.Height()))

	go s.readLoop()
	go s.waitLoop()
	return nil
}

// readLoop copies PTY output into the rx fifo and immediately drains the
// fifo into the Interpreter, preserving arrival order: N queued bytes feed
// as N sequential Feed calls in queue order.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.pty.Read(buf)
		for i := 0; i < n; i++ {
			if s.rx.IsFull() {
				s.rx.Drain(s.interp.Feed)
			}
			if !s.rx.Push(buf[i]) {
				s.log.Warn("rx fifo full, dropping byte", zap.String("session_id", s.ID))
				continue
			}
		}
		s.rx.Drain(s.interp.Feed)

		if err != nil {
			if err != io.EOF {
				s.log.Warn("pty read error", zap.String("session_id", s.ID), zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Info("session exited", zap.String("session_id", s.ID), zap.Int("exit_code", code))
	close(s.done)
	if s.onExit != nil {
		s.onExit(code)
	}
}

// WriteInput queues keystroke bytes on the tx fifo and flushes them to the
// child's PTY. It returns the number of bytes actually accepted by the
// fifo before it filled.
func (s *Session) WriteInput(p []byte) int {
	accepted := 0
	for _, b := range p {
		if !s.tx.Push(b) {
			break
		}
		accepted++
	}

	s.mu.Lock()
	ptmx := s.pty
	s.mu.Unlock()
	if ptmx == nil {
		return accepted
	}

	var flushed []byte
	s.tx.Drain(func(b byte) { flushed = append(flushed, b) })
	if len(flushed) > 0 {
		if _, err := ptmx.Write(flushed); err != nil {
			s.log.Warn("pty write error", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	return accepted
}

// Resize changes the PTY window size. It does not resize Screen: width
// and height are fixed at construction, so a resize ends the session's
// current Screen's useful life — callers that want a bigger grid
// construct a new Session.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	ptmx := s.pty
	s.mu.Unlock()
	if ptmx == nil {
		return fmt.Errorf("host: session %s has no active pty", s.ID)
	}
	return pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Wait blocks until the child process exits.
func (s *Session) Wait() { <-s.done }

// Close terminates the child process and releases the PTY handle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	if s.pty != nil {
		return s.pty.Close()
	}
	return nil
}
