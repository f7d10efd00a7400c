// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dashboard republishes decoded telemetry records to websocket
// clients and serves the APID directory over HTTP.
package dashboard

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

// Format selects the websocket frame encoding for a client
type Format int

const (
	FormatJSON Format = iota
	FormatCBOR
)

func (f Format) String() string {
	if f == FormatCBOR {
		return "cbor"
	}
	return "json"
}

func (f Format) messageType() int {
	if f == FormatCBOR {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Config configures a Hub
type Config struct {
	Statistics *ccsds.Statistics
	Logger     *log.Logger
}

// Hub fans records out to connected websocket clients. A slow client
// loses records rather than blocking Broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	stats   *ccsds.Statistics
	logger  *log.Logger
	dropped uint64
}

type client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	format    Format
	subsystem string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates an empty hub
func NewHub(config Config) *Hub {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		stats:   config.Statistics,
		logger:  logger,
	}
}

// Handler returns the HTTP routes of the dashboard
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/api/apids", h.serveAPIDs)
	mux.HandleFunc("/api/stats", h.serveStats)
	return mux
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were discarded for slow clients
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Broadcast encodes r once per format and queues it for every client
// subscribed to its subsystem.
func (h *Hub) Broadcast(r ccsds.Record) {
	var frames [2][]byte
	encode := func(f Format) []byte {
		if frames[f] != nil {
			return frames[f]
		}
		var data []byte
		var err error
		if f == FormatCBOR {
			data, err = ccsds.EncodeRecordCBOR(r)
		} else {
			data, err = ccsds.EncodeRecordJSON(r)
		}
		if err != nil {
			h.logger.Error("failed to encode record", "format", f, "err", err)
			return nil
		}
		frames[f] = data
		return data
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.subsystem != "" && !strings.EqualFold(c.subsystem, r.Subsystem) {
			continue
		}
		frame := encode(c.format)
		if frame == nil {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.dropped++
			h.logger.Debug("dropping frame for slow client", "client", c.id)
		}
	}
}

// BroadcastPacket converts p to a record and broadcasts it
func (h *Hub) BroadcastPacket(p *ccsds.Packet) {
	h.Broadcast(ccsds.NewRecord(p))
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, req *http.Request) {
	format := FormatJSON
	switch strings.ToLower(req.URL.Query().Get("format")) {
	case "", "json":
	case "cbor":
		format = FormatCBOR
	default:
		http.Error(w, "format must be json or cbor", http.StatusBadRequest)
		return
	}
	subsystem := req.URL.Query().Get("subsystem")
	if subsystem != "" && !ccsds.IsValidSubsystem(subsystem) {
		http.Error(w, "unknown subsystem "+subsystem, http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", req.RemoteAddr, "err", err)
		return
	}

	c := &client{
		id:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		format:    format,
		subsystem: subsystem,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("dashboard client connected", "client", c.id, "remote", req.RemoteAddr, "format", format)

	go c.writePump()
	go c.readPump()
}

// apidEntry is the JSON form of one directory entry
type apidEntry struct {
	APID      uint16        `json:"apid"`
	Subsystem string        `json:"subsystem"`
	Size      int           `json:"payload_size"`
	Fields    []fieldSchema `json:"fields"`
}

type fieldSchema struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Unit  string   `json:"unit,omitempty"`
	Min   float64  `json:"min,omitempty"`
	Max   float64  `json:"max,omitempty"`
	Enum  []string `json:"enum,omitempty"`
	Flags bool     `json:"fault_flags,omitempty"`
}

func directory() []apidEntry {
	var out []apidEntry
	for _, e := range ccsds.Entries() {
		entry := apidEntry{
			APID:      uint16(e.APID),
			Subsystem: strings.ToUpper(e.Name),
			Size:      e.Schema.Size(),
		}
		for _, f := range e.Schema.Fields {
			entry.Fields = append(entry.Fields, fieldSchema{
				Name:  f.Name,
				Type:  f.Type.String(),
				Unit:  f.Unit,
				Min:   f.Min,
				Max:   f.Max,
				Enum:  f.Enum,
				Flags: f.FaultFlags,
			})
		}
		out = append(out, entry)
	}
	return out
}

func (h *Hub) serveAPIDs(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, directory())
}

func (h *Hub) serveStats(w http.ResponseWriter, req *http.Request) {
	if h.stats == nil {
		http.Error(w, "statistics disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, h.stats.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c.id)
		c.hub.mu.Unlock()
		close(c.done)
		c.conn.Close()
		c.hub.logger.Info("dashboard client disconnected", "client", c.id)
	})
}

// readPump discards client messages and notices disconnects
func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.hub.logger.Warn("websocket closed unexpectedly", "client", c.id, "err", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(c.format.messageType(), frame); err != nil {
				c.hub.logger.Warn("websocket write failed", "client", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
