package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) received() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env Envelope
		_ = json.Unmarshal(fr, &env)
		out = append(out, env)
	}
	return out
}

// stalledConn never drains: writes block until the write deadline passes.
type stalledConn struct {
	mu       sync.Mutex
	deadline time.Time
	writes   int
}

func (s *stalledConn) SetWriteDeadline(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = t
	return nil
}

func (s *stalledConn) WriteMessage(int, []byte) error {
	s.mu.Lock()
	deadline := s.deadline
	s.writes++
	s.mu.Unlock()
	if deadline.IsZero() {
		select {}
	}
	time.Sleep(time.Until(deadline))
	return errors.New("i/o timeout")
}

type fakeSink struct {
	mu    sync.Mutex
	saved []string
	gate  chan struct{}
	done  chan string
}

func newFakeSink() *fakeSink {
	return &fakeSink{done: make(chan string, 16)}
}

func (s *fakeSink) SaveMessage(ctx context.Context, projectID, senderID uint, content string) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.saved = append(s.saved, content)
	s.mu.Unlock()
	s.done <- content
	return nil
}

func (s *fakeSink) waitSaved(t *testing.T) string {
	t.Helper()
	select {
	case content := <-s.done:
		return content
	case <-time.After(2 * time.Second):
		t.Fatal("message was never persisted")
		return ""
	}
}

func (s *fakeSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

func quietHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := NewHub(logger)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return h
}

func handle(t *testing.T, h *Hub, c *Client, frame string) {
	t.Helper()
	if err := h.Handle(context.Background(), c, []byte(frame)); err != nil {
		t.Fatalf("Handle(%s): %v", frame, err)
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	h := quietHub()
	inConn, outConn, senderConn := &fakeConn{}, &fakeConn{}, &fakeConn{}
	in, out, sender := NewClient(inConn), NewClient(outConn), NewClient(senderConn)

	handle(t, h, in, `{"event":"join_project","data":"12"}`)
	handle(t, h, out, `{"event":"join_project","data":"99"}`)
	handle(t, h, sender, `{"event":"join_project","data":12}`)

	handle(t, h, sender, `{"event":"send_message","data":{"project":"12","content":"hello","sender":"3"}}`)

	got := inConn.received()
	if len(got) != 1 || got[0].Event != EventReceive {
		t.Fatalf("room member received %+v", got)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(got[0].Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg["content"] != "hello" || msg["sender"] != "3" || msg["project"] != "12" {
		t.Fatalf("message fields not echoed: %v", msg)
	}
	if msg["createdAt"] != "2025-06-01T09:30:00Z" {
		t.Fatalf("createdAt = %v", msg["createdAt"])
	}

	if len(senderConn.received()) != 1 {
		t.Fatal("sender joined to the room should receive its own message")
	}
	if len(outConn.received()) != 0 {
		t.Fatal("socket in another room received the message")
	}
}

func TestLeaveAndRemove(t *testing.T) {
	h := quietHub()
	conn := &fakeConn{}
	c := NewClient(conn)
	h.Register(c)

	handle(t, h, c, `{"event":"join_project","data":"1"}`)
	handle(t, h, c, `{"event":"join_project","data":"2"}`)
	handle(t, h, c, `{"event":"leave_project","data":"1"}`)
	if h.Members("1") != 0 || h.Members("2") != 1 {
		t.Fatalf("members after leave: 1=%d 2=%d", h.Members("1"), h.Members("2"))
	}

	h.Remove(c)
	if h.Members("2") != 0 {
		t.Fatal("disconnect must drop room membership")
	}
	if n := h.Deliver("2", []byte(`{}`)); n != 0 {
		t.Fatalf("delivered %d frames after remove", n)
	}
}

func TestDeliverSkipsBrokenSockets(t *testing.T) {
	h := quietHub()
	good, bad := &fakeConn{}, &fakeConn{fail: true}
	h.Join(NewClient(good), "7")
	h.Join(NewClient(bad), "7")

	if n := h.Deliver("7", []byte(`{"event":"receive_message","data":{}}`)); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if h.Members("7") != 1 {
		t.Fatalf("broken socket still joined: members = %d", h.Members("7"))
	}
}

func TestStalledSocketDoesNotBlockSender(t *testing.T) {
	h := quietHub()
	h.WriteTimeout = 50 * time.Millisecond
	slow := &stalledConn{}
	stalled := NewClient(slow)
	peerConn, senderConn := &fakeConn{}, &fakeConn{}
	peer, sender := NewClient(peerConn), NewClient(senderConn)
	h.Join(stalled, "3")
	h.Join(peer, "3")
	h.Join(sender, "3")

	frame := `{"event":"send_message","data":{"project":"3","content":"still here","sender":"1"}}`
	done := make(chan error, 1)
	go func() { done <- h.Handle(context.Background(), sender, []byte(frame)) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("send_message blocked on a socket that stopped reading")
	}
	if len(peerConn.received()) != 1 || len(senderConn.received()) != 1 {
		t.Fatal("healthy sockets missed the message")
	}
	if h.Members("3") != 2 {
		t.Fatalf("stalled socket not dropped: members = %d", h.Members("3"))
	}

	// Later messages skip the dropped socket entirely.
	handle(t, h, sender, frame)
	slow.mu.Lock()
	writes := slow.writes
	slow.mu.Unlock()
	if writes != 1 {
		t.Fatalf("stalled socket written %d times", writes)
	}
	if len(peerConn.received()) != 2 {
		t.Fatal("peer missed the second message")
	}
}

type recordingPublisher struct {
	rooms []string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, room string, _ []byte) error {
	if p.err != nil {
		return p.err
	}
	p.rooms = append(p.rooms, room)
	return nil
}

func TestBroadcastUsesPublisher(t *testing.T) {
	h := quietHub()
	pub := &recordingPublisher{}
	h.Publisher = pub
	conn := &fakeConn{}
	c := NewClient(conn)
	handle(t, h, c, `{"event":"join_project","data":"5"}`)
	handle(t, h, c, `{"event":"send_message","data":{"project":"5","content":"hi","sender":"1"}}`)

	if len(pub.rooms) != 1 || pub.rooms[0] != "5" {
		t.Fatalf("published to %v", pub.rooms)
	}
	if len(conn.received()) != 0 {
		t.Fatal("with a publisher, delivery happens only from the subscription")
	}
}

func TestPublishFailureIsReported(t *testing.T) {
	h := quietHub()
	h.Publisher = &recordingPublisher{err: errors.New("connection refused")}
	sink := newFakeSink()
	h.Sink = sink
	c := NewClient(&fakeConn{})

	err := h.Handle(context.Background(), c, []byte(`{"event":"send_message","data":{"project":"5","content":"hi","sender":"1"}}`))
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("err = %v, want ErrPublish", err)
	}
	if got := sink.waitSaved(t); got != "hi" {
		t.Fatalf("persisted %q", got)
	}

	// Malformed frames are not publish failures.
	if err := h.Handle(context.Background(), c, []byte("{")); err == nil || errors.Is(err, ErrPublish) {
		t.Fatalf("malformed frame err = %v", err)
	}
}

func TestPersistOnlyNumericIDs(t *testing.T) {
	h := quietHub()
	sink := newFakeSink()
	h.Sink = sink
	c := NewClient(&fakeConn{})

	handle(t, h, c, `{"event":"send_message","data":{"project":"5","content":"kept","sender":4}}`)
	handle(t, h, c, `{"event":"send_message","data":{"project":"abc","content":"dropped","sender":"4"}}`)
	handle(t, h, c, `{"event":"send_message","data":{"project":"5","content":"anon"}}`)

	if got := sink.waitSaved(t); got != "kept" {
		t.Fatalf("persisted %q", got)
	}
	select {
	case extra := <-sink.done:
		t.Fatalf("persisted %q as well", extra)
	case <-time.After(50 * time.Millisecond):
	}
	if saved := sink.snapshot(); len(saved) != 1 {
		t.Fatalf("saved = %v", saved)
	}
}

func TestDeliveryDoesNotWaitOnStorage(t *testing.T) {
	h := quietHub()
	sink := newFakeSink()
	sink.gate = make(chan struct{})
	h.Sink = sink
	conn := &fakeConn{}
	c := NewClient(conn)
	h.Join(c, "8")

	done := make(chan error, 1)
	go func() {
		done <- h.Handle(context.Background(), c, []byte(`{"event":"send_message","data":{"project":"8","content":"fast","sender":"2"}}`))
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("send_message waited on the message store")
	}
	if len(conn.received()) != 1 {
		t.Fatal("message not delivered before it was stored")
	}
	if saved := sink.snapshot(); len(saved) != 0 {
		t.Fatalf("stored before the gate opened: %v", saved)
	}

	close(sink.gate)
	if got := sink.waitSaved(t); got != "fast" {
		t.Fatalf("persisted %q", got)
	}
}

// hangingSink blocks until its context ends and reports why.
type hangingSink chan error

func (s hangingSink) SaveMessage(ctx context.Context, _, _ uint, _ string) error {
	<-ctx.Done()
	s <- ctx.Err()
	return ctx.Err()
}

func TestPersistIsBounded(t *testing.T) {
	h := quietHub()
	h.PersistTimeout = 20 * time.Millisecond
	sink := make(hangingSink, 1)
	h.Sink = sink
	c := NewClient(&fakeConn{})

	handle(t, h, c, `{"event":"send_message","data":{"project":"8","content":"slow","sender":"2"}}`)
	select {
	case err := <-sink:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("store ended with %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("message store ran without a deadline")
	}
}

func TestHandleRejectsMalformedFrames(t *testing.T) {
	h := quietHub()
	c := NewClient(&fakeConn{})
	if err := h.Handle(context.Background(), c, []byte("not json")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
	// Unknown events are ignored.
	handle(t, h, c, `{"event":"typing","data":"1"}`)
}

func TestRoomKey(t *testing.T) {
	cases := map[string]string{
		`"12"`:         "12",
		`12`:           "12",
		`{"_id":"ab"}`: "ab",
		`{"id":3}`:     "3",
		`null`:         "",
		`true`:         "",
		`"  spaced  "`: "spaced",
	}
	for in, want := range cases {
		if got := roomKey(json.RawMessage(in)); got != want {
			t.Fatalf("roomKey(%s) = %q, want %q", in, got, want)
		}
	}
}
