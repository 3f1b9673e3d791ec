package relay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestBridgeDeliversFramesToRoom(t *testing.T) {
	h := quietHub()
	conn := &fakeConn{}
	h.Join(NewClient(conn), "4")
	b := &RedisBridge{Hub: h, Channel: Channel, Instance: "a"}

	frame, _ := json.Marshal(redisFrame{Origin: "b", Room: "4", Payload: json.RawMessage(`{"event":"receive_message","data":{"content":"x"}}`)})
	n, err := b.deliver(frame)
	if err != nil || n != 1 {
		t.Fatalf("deliver = %d, %v", n, err)
	}
	if got := conn.received(); len(got) != 1 || got[0].Event != EventReceive {
		t.Fatalf("received %+v", got)
	}

	for _, bad := range []string{"not json", `{"origin":"b","payload":{}}`} {
		if _, err := b.deliver([]byte(bad)); err == nil {
			t.Fatalf("deliver(%s) accepted", bad)
		}
	}
	if len(conn.received()) != 1 {
		t.Fatal("malformed frame reached a socket")
	}
}

func TestBridgePublishFailureSurfaces(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	h := quietHub()
	h.Publisher = NewRedisBridge(client, h)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := h.Broadcast(ctx, "1", []byte(`{}`))
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("err = %v, want ErrPublish", err)
	}
}

// TestBridgeRoundTrip needs a live server, e.g. REDIS_TEST_ADDR=localhost:6379.
func TestBridgeRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	h := quietHub()
	bridge := NewRedisBridge(client, h)
	bridge.Channel = Channel + ":test:" + bridge.Instance
	h.Publisher = bridge
	conn := &fakeConn{}
	c := NewClient(conn)
	h.Join(c, "9")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- bridge.Run(ctx) }()

	// Wait for the subscription before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		subs, err := client.PubSubNumSub(ctx, bridge.Channel).Result()
		if err == nil && subs[bridge.Channel] > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	handle(t, h, c, `{"event":"send_message","data":{"project":"9","content":"across","sender":"1"}}`)
	for len(conn.received()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("published frame never came back")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
