// Package relay is the room-based chat broadcaster behind the /ws endpoint.
// Room membership lives only in process memory and is dropped when a socket
// disconnects.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventJoin    = "join_project"
	EventLeave   = "leave_project"
	EventSend    = "send_message"
	EventReceive = "receive_message"
)

const (
	defaultWriteTimeout   = 5 * time.Second
	defaultPersistTimeout = 10 * time.Second
)

// ErrPublish marks a Broadcast that could not reach the Publisher.
var ErrPublish = errors.New("relay publish failed")

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// Publisher fans a room broadcast out to every relay instance, including
// this one.
type Publisher interface {
	Publish(ctx context.Context, room string, payload []byte) error
}

// MessageSink persists chat messages. Failures never block delivery.
type MessageSink interface {
	SaveMessage(ctx context.Context, projectID, senderID uint, content string) error
}

type Client struct {
	ID   string
	conn Conn
	mu   sync.Mutex
}

func NewClient(conn Conn) *Client {
	return &Client{ID: uuid.NewString(), conn: conn}
}

// send holds c.mu for at most timeout.
func (c *Client) send(payload []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type Hub struct {
	Publisher Publisher
	Sink      MessageSink
	Logger    *logrus.Logger

	// WriteTimeout bounds each socket write. A socket that misses it is
	// dropped from its rooms.
	WriteTimeout time.Duration
	// PersistTimeout bounds one SaveMessage call.
	PersistTimeout time.Duration

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
	now     func() time.Time
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		Logger:         logger,
		WriteTimeout:   defaultWriteTimeout,
		PersistTimeout: defaultPersistTimeout,
		rooms:          make(map[string]map[*Client]struct{}),
		clients:        make(map[*Client]map[string]struct{}),
		now:            time.Now,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		h.clients[c] = make(map[string]struct{})
	}
}

func (h *Hub) Join(c *Client, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		h.clients[c] = make(map[string]struct{})
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.clients[c][room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.clients[c]; ok {
		delete(joined, room)
	}
}

// Remove drops c from every room it joined.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.clients[c] {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
}

// Members reports how many sockets are joined to room on this instance.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Deliver writes payload to every local socket in room. A socket whose
// write fails or times out is removed from all rooms; its reader still owns
// closing it.
func (h *Hub) Deliver(room string, payload []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	timeout := h.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	delivered := 0
	for _, c := range targets {
		if err := c.send(payload, timeout); err != nil {
			h.Logger.WithFields(logrus.Fields{"client_id": c.ID, "room": room}).WithError(err).Warn("relay write failed, dropping socket")
			h.Remove(c)
			continue
		}
		delivered++
	}
	return delivered
}

// Broadcast sends payload to room, through the Publisher when one is set.
func (h *Hub) Broadcast(ctx context.Context, room string, payload []byte) error {
	if h.Publisher != nil {
		if err := h.Publisher.Publish(ctx, room, payload); err != nil {
			return fmt.Errorf("%w: %w", ErrPublish, err)
		}
		return nil
	}
	h.Deliver(room, payload)
	return nil
}

// Handle processes one inbound frame from c.
func (h *Hub) Handle(ctx context.Context, c *Client, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}

	switch env.Event {
	case EventJoin:
		h.Join(c, roomKey(env.Data))
	case EventLeave:
		h.Leave(c, roomKey(env.Data))
	case EventSend:
		return h.send(ctx, env.Data)
	default:
		h.Logger.WithFields(logrus.Fields{"client_id": c.ID, "event": env.Event}).Debug("ignoring unknown relay event")
	}
	return nil
}

func (h *Hub) send(ctx context.Context, data json.RawMessage) error {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	room := roomKey(msg["project"])
	if room == "" {
		return nil
	}

	createdAt, err := json.Marshal(h.now().UTC())
	if err != nil {
		return err
	}
	msg["createdAt"] = createdAt

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Envelope{Event: EventReceive, Data: body})
	if err != nil {
		return err
	}

	err = h.Broadcast(ctx, room, payload)
	h.persist(msg)
	return err
}

// persist stores messages whose project and sender are numeric ids. The
// write runs after delivery on its own goroutine.
func (h *Hub) persist(msg map[string]json.RawMessage) {
	if h.Sink == nil {
		return
	}
	projectID, err1 := strconv.ParseUint(roomKey(msg["project"]), 10, 64)
	senderID, err2 := strconv.ParseUint(roomKey(msg["sender"]), 10, 64)
	var content string
	if err1 != nil || err2 != nil || json.Unmarshal(msg["content"], &content) != nil || content == "" {
		return
	}
	timeout := h.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := h.Sink.SaveMessage(ctx, uint(projectID), uint(senderID), content); err != nil {
			h.Logger.WithError(err).WithField("project_id", projectID).Warn("chat message not persisted")
		}
	}()
}

// roomKey accepts an id sent either as a JSON string or number. Objects with
// an "id" or "_id" field are also accepted.
func roomKey(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '{':
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return ""
		}
		if id, ok := obj["id"]; ok {
			return roomKey(id)
		}
		return roomKey(obj["_id"])
	default:
		var n json.Number
		if json.Unmarshal(raw, &n) != nil {
			return ""
		}
		return n.String()
	}
}
