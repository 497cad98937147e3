package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-devcaps/internal/bridge"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/mqtt"
)

// Frame types on the resolution stream.
const (
	FrameResolution = "resolution"
	FrameFilter     = "filter"
	FramePing       = "ping"
	FramePong       = "pong"
	FrameError      = "error"

	// streamBufferSize is the per-stream outbound frame buffer.
	streamBufferSize = 256
)

// Frame is one message on the resolution stream, in either direction.
type Frame struct {
	Type       string                    `json:"type"`
	ID         string                    `json:"id,omitempty"`
	Resolution *bridge.ResolutionMessage `json:"resolution,omitempty"`
	Filter     *StreamFilter             `json:"filter,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// StreamFilter narrows a stream to some device types and device IDs.
// An empty list matches everything.
type StreamFilter struct {
	DeviceTypes []string `json:"device_types,omitempty"`
	DeviceIDs   []string `json:"device_ids,omitempty"`
}

// Matches reports whether msg passes the filter.
func (f StreamFilter) Matches(msg bridge.ResolutionMessage) bool {
	if len(f.DeviceTypes) > 0 && !slices.Contains(f.DeviceTypes, msg.DeviceType) {
		return false
	}
	return len(f.DeviceIDs) == 0 || slices.Contains(f.DeviceIDs, msg.DeviceID)
}

// filterFromQuery reads device_type and device_id query parameters.
// Each may repeat or carry a comma-separated list.
func filterFromQuery(q url.Values) StreamFilter {
	split := func(values []string) []string {
		var out []string
		for _, v := range values {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
		return out
	}
	return StreamFilter{
		DeviceTypes: split(q["device_type"]),
		DeviceIDs:   split(q["device_id"]),
	}
}

// HubStats counts stream activity since the hub started.
type HubStats struct {
	Streams   int    `json:"streams"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Hub fans published resolutions out to connected streams.
type Hub struct {
	logger *logging.Logger

	mu      sync.Mutex
	streams map[*stream]struct{}
	closed  bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// stream is one connected client. out is never closed; done is closed
// once when the stream leaves the hub.
type stream struct {
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	filter atomic.Pointer[StreamFilter]
}

func newStream(conn *websocket.Conn, filter StreamFilter) *stream {
	s := &stream{
		conn: conn,
		out:  make(chan []byte, streamBufferSize),
		done: make(chan struct{}),
	}
	s.filter.Store(&filter)
	return s
}

// offer queues data without blocking. It returns false when the stream
// is gone or its buffer is full.
func (s *stream) offer(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

func (s *stream) reply(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	s.offer(data)
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		streams: make(map[*stream]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every stream.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

// add registers s. It returns false once the hub is closed.
func (h *Hub) add(s *stream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.streams[s] = struct{}{}
	return true
}

// remove unregisters s. Calling it again is a no-op.
func (h *Hub) remove(s *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[s]; !ok {
		return
	}
	delete(h.streams, s)
	close(s.done)
}

// Close disconnects every stream and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.streams {
		delete(h.streams, s)
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	}
}

// Publish sends msg to every stream whose filter matches. A stream with a
// full buffer misses the frame.
func (h *Hub) Publish(msg bridge.ResolutionMessage) {
	data, err := json.Marshal(Frame{Type: FrameResolution, Resolution: &msg})
	if err != nil {
		h.logger.Error("encoding resolution frame", "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*stream, 0, len(h.streams))
	for s := range h.streams {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if !s.filter.Load().Matches(msg) {
			continue
		}
		if s.offer(data) {
			h.delivered.Add(1)
		} else {
			h.dropped.Add(1)
		}
	}
}

// Stats returns the current stream count and delivery counters.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	n := len(h.streams)
	h.mu.Unlock()
	return HubStats{Streams: n, Delivered: h.delivered.Load(), Dropped: h.dropped.Load()}
}

// subscribeResolutions feeds resolutions published on MQTT into the hub.
func (s *Server) subscribeResolutions() error {
	if s.mqtt == nil {
		return nil
	}
	topic := mqtt.Topics{}.AllResolutions()
	s.logger.Info("subscribing to resolutions for the stream", "topic", topic)
	return s.mqtt.Subscribe(topic, 1, func(t string, payload []byte) error {
		var msg bridge.ResolutionMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("skipping malformed resolution", "topic", t, "error", err)
			return nil
		}
		s.hub.Publish(msg)
		return nil
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWebSocket upgrades to a resolution stream. The initial filter
// comes from the query string and can be replaced with a filter frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r.URL.Query())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	st := newStream(conn, filter)
	if !s.hub.add(st) {
		conn.Close()
		return
	}
	s.logger.Debug("stream connected", "device_types", filter.DeviceTypes, "device_ids", filter.DeviceIDs)

	go st.writeLoop(s.wsCfg)
	st.readLoop(s.hub, s.wsCfg)
}

// readLoop handles client frames until the connection fails.
func (s *stream) readLoop(h *Hub, cfg config.WebSocketConfig) {
	defer func() {
		h.remove(s)
		s.conn.Close()
	}()

	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func(string) error { return s.conn.SetReadDeadline(time.Now().Add(idle)) }

	s.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend("") //nolint:errcheck // Deadline errors surface on the next read
	s.conn.SetPongHandler(extend)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream read failed", "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // Deadline errors surface on the next read

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			s.reply(Frame{Type: FrameError, Error: "invalid JSON frame"})
			continue
		}

		switch in.Type {
		case FramePing:
			s.reply(Frame{Type: FramePong, ID: in.ID})
		case FrameFilter:
			if in.Filter == nil {
				s.reply(Frame{Type: FrameError, ID: in.ID, Error: "filter frame without filter"})
				continue
			}
			s.filter.Store(in.Filter)
			s.reply(Frame{Type: FrameFilter, ID: in.ID, Filter: in.Filter})
		default:
			s.reply(Frame{Type: FrameError, ID: in.ID, Error: "unknown frame type: " + in.Type})
		}
	}
}

// writeLoop drains the outbound buffer and keeps the connection alive.
func (s *stream) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer ticker.Stop()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return s.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-s.done:
			write(websocket.CloseMessage, nil) //nolint:errcheck // Connection is going away
			return
		case data := <-s.out:
			if err := write(websocket.TextMessage, data); err != nil {
				s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}
