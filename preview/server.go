// Package preview streams rendered gauge frames to browsers over websockets and
// accepts remote gestures back.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/model"
)

const writeWait = 200 * time.Millisecond

// Status is what /health reports beyond the frame counters.
type Status struct {
	Value        float64 `json:"value"`
	Mode         string  `json:"mode"`
	Frames       uint64  `json:"frames"`
	LastRenderMs float64 `json:"last_render_ms"`
	Overruns     uint64  `json:"overruns"`
	Sink         string  `json:"sink"`
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	RGB565  []byte `json:"rgb565"` // little-endian
}

// client serializes writes; a websocket conn allows one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(b)
}

func (c *client) writeLocked(b []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Server is a gauge.DisplaySink and a gauge.GestureSource.
type Server struct {
	log    zerolog.Logger
	status func() Status

	mu          sync.RWMutex
	frameID     uint64
	last        []byte
	snapshot    image.Image
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool

	gestures chan gauge.Gesture
	up       websocket.Upgrader
}

// New returns a server; status may be nil.
func New(log zerolog.Logger, status func() Status) *Server {
	if status == nil {
		status = func() Status { return Status{} }
	}
	return &Server{
		log:         log,
		status:      status,
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
		gestures:    make(chan gauge.Gesture, 8),
		up:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/snapshot.png", s.HandleSnapshot)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("preview listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Blit records the frame and broadcasts it. Slow clients are dropped after
// writeWait, they never stall the render loop for longer.
func (s *Server) Blit(buf *model.PixelBuffer, x, y int) error {
	s.mu.Lock()
	s.frameID++
	f := frame{
		T:       time.Now().UnixNano(),
		FrameID: s.frameID,
		X:       x,
		Y:       y,
		W:       buf.Width(),
		H:       buf.Height(),
		RGB565:  buf.Bytes(),
	}
	b, err := json.Marshal(f)
	if err == nil {
		s.last = b
		s.snapshot = buf.Image()
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broadcast(s.clients, b)
	return nil
}

// Poll implements gauge.GestureSource for gestures sent over /control.
func (s *Server) Poll() (gauge.Gesture, error) {
	select {
	case g := <-s.gestures:
		return g, nil
	default:
		return gauge.GestureNone, nil
	}
}

// Diagnose pushes d to every /diag subscriber.
func (s *Server) Diagnose(d Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	s.broadcast(s.diagClients, b)
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	// Hold the client's write lock across registration so a broadcast racing
	// this handler queues behind the replay of the last frame.
	c.mu.Lock()
	s.mu.Lock()
	s.clients[c] = true
	last := s.last
	s.mu.Unlock()
	if last != nil {
		_ = c.writeLocked(last)
	}
	c.mu.Unlock()
	go s.drain(c, s.clients)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.diagClients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.diagClients)
}

// HandleControlWS accepts {"gesture": "long_press"} style messages.
func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Gesture string `json:"gesture"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		g, ok := ParseGesture(msg.Gesture)
		if !ok {
			s.log.Debug().Str("gesture", msg.Gesture).Msg("unknown remote gesture")
			continue
		}
		select {
		case s.gestures <- g:
		default:
			s.log.Warn().Stringer("gesture", g).Msg("gesture queue full, dropped")
		}
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"clients":  len(s.clients),
	}
	s.mu.RUnlock()
	resp["status"] = s.status()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleSnapshot serves the last frame as a PNG with a transparent background.
func (s *Server) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	im := s.snapshot
	s.mu.RUnlock()
	if im == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, im); err != nil {
		s.log.Debug().Err(err).Msg("encode snapshot")
	}
}

func (s *Server) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(set map[*client]bool, b []byte) {
	s.mu.RLock()
	targets := make([]*client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	s.mu.RUnlock()
	for _, c := range targets {
		if err := c.write(b); err != nil {
			s.log.Debug().Err(err).Msg("write frame")
		}
	}
}

var gestureNames = map[string]gauge.Gesture{
	"up":           gauge.GestureUp,
	"down":         gauge.GestureDown,
	"left":         gauge.GestureLeft,
	"right":        gauge.GestureRight,
	"double_click": gauge.GestureDoubleClick,
	"long_press":   gauge.GestureLongPress,
}

func ParseGesture(name string) (gauge.Gesture, bool) {
	g, ok := gestureNames[name]
	return g, ok
}
