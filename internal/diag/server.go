// Package diag exposes a read-only HTTP/WebSocket introspection surface
// over a Session's Screen, for tooling that wants to watch a terminal
// without owning it. It never writes to the Screen or the Session.
package diag

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/loomterm/loomterm"
	"github.com/loomterm/loomterm/internal/host"
)

// Server is a small HTTP server offering a point-in-time JSON snapshot of
// a session's screen and a WebSocket that pushes one JSON snapshot every
// 100ms.
type Server struct {
	session *host.Session
	log     *zap.Logger

	router   *gin.Engine
	upgrader websocket.Upgrader
	srv      *http.Server
}

// cellView is the wire shape of one screen cell.
type cellView struct {
	Glyph        byte   `json:"glyph"`
	Bold         bool   `json:"bold"`
	Underscore   bool   `json:"underscore"`
	Blink        bool   `json:"blink"`
	ReverseVideo bool   `json:"reverse_video"`
	Conceal      bool   `json:"conceal"`
	Foreground   string `json:"foreground"`
	Background   string `json:"background"`
}

// snapshotView is the wire shape of a full-screen snapshot.
type snapshotView struct {
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Cells    []cellView `json:"cells"`
	CursorX  int        `json:"cursor_x"`
	CursorY  int        `json:"cursor_y"`
	CursorOn bool       `json:"cursor_on"`
}

// New builds a Server bound to session. Call Run to start listening.
func New(session *host.Session, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		session: session,
		log:     log,
		router:  router,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/screen", s.handleSnapshot)
	router.GET("/stream", s.handleStream)
	return s
}

// Run starts serving on addr. It blocks until the server is shut down.
func (s *Server) Run(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("diagnostics server listening", zap.String("addr", addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "session_id": s.session.ID})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, toView(s.session.Screen().Snapshot()))
}

func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		payload, err := json.Marshal(toView(s.session.Screen().Snapshot()))
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func toView(snap loomterm.Snapshot) snapshotView {
	cells := make([]cellView, len(snap.Glyphs))
	for i, g := range snap.Glyphs {
		a := snap.Attrs[i]
		cells[i] = cellView{
			Glyph:        g,
			Bold:         a.Bold,
			Underscore:   a.Underscore,
			Blink:        a.Blink,
			ReverseVideo: a.ReverseVideo,
			Conceal:      a.Conceal,
			Foreground:   a.Foreground.String(),
			Background:   a.Background.String(),
		}
	}
	return snapshotView{
		Width:    snap.Width,
		Height:   snap.Height,
		Cells:    cells,
		CursorX:  snap.CursorX,
		CursorY:  snap.CursorY,
		CursorOn: snap.CursorOn,
	}
}
