package middleware

import (
	"os"
	"testing"
	"time"

	"collabforcause/config"
)

// Runs against a live server, e.g. REDIS_TEST_ADDR=localhost:6379.
func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	store := NewRedisStorage(NewRedisClient(config.RedisConfig{Address: addr, DB: 15}))
	defer store.Close()
	key := "collabforcause:test:" + t.Name()
	defer store.Delete(key)

	val, err := store.Get(key)
	if err != nil || val != nil {
		t.Fatalf("missing key: %q, %v", val, err)
	}
	if err := store.Set(key, []byte("3"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if val, err := store.Get(key); err != nil || string(val) != "3" {
		t.Fatalf("Get = %q, %v", val, err)
	}
	if err := store.Delete(key); err != nil {
		t.Fatal(err)
	}
	if val, _ := store.Get(key); val != nil {
		t.Fatalf("deleted key still holds %q", val)
	}
}

func TestRedisStorageBacksLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	store := NewRedisStorage(NewRedisClient(config.RedisConfig{Address: addr, DB: 15}))
	defer store.Close()
	if err := store.Reset(); err != nil {
		t.Fatal(err)
	}

	app := limitedApp(store)
	for i := 0; i < 2; i++ {
		if code := hit(t, app); code != 200 {
			t.Fatalf("attempt %d: status %d", i+1, code)
		}
	}
	if code := hit(t, app); code != 429 {
		t.Fatalf("third attempt: status %d, want 429", code)
	}
}
