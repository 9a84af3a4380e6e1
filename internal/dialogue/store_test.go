package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-reader/internal/language"
)

func TestParseState(t *testing.T) {
	polish := mustResolve(t, "polish")

	for _, state := range []State{Idle(), ReceiveText(polish)} {
		got, err := ParseState(state.String())
		if err != nil {
			t.Fatalf("ParseState(%q) failed: %v", state.String(), err)
		}
		if got != state {
			t.Errorf("ParseState(%q) = %s, expected %s", state.String(), got, state)
		}
	}

	if _, err := ParseState("awaiting_text:klingon"); !errors.Is(err, language.ErrUnknownLanguage) {
		t.Errorf("Expected ErrUnknownLanguage, got %v", err)
	}
	if _, err := ParseState("garbage"); err == nil {
		t.Error("Expected error for malformed state")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.Get(ctx, "unseen")
	if err != nil || got != Idle() {
		t.Errorf("Expected Idle for unseen conversation, got %s, %v", got, err)
	}
	if store.Len() != 0 {
		t.Errorf("Get must not create entries, got %d", store.Len())
	}

	state := ReceiveText(mustResolve(t, "spanish"))
	if err := store.Set(ctx, "c1", state); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, _ := store.Get(ctx, "c1"); got != state {
		t.Errorf("Expected %s, got %s", state, got)
	}
	if got, _ := store.Get(ctx, "c2"); got != Idle() {
		t.Errorf("Expected other conversations unaffected, got %s", got)
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(context.Background(), RedisConfig{
		Addr: mr.Addr(),
		TTL:  ttl,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, 0)

	got, err := store.Get(ctx, "tg:1")
	if err != nil || got != Idle() {
		t.Fatalf("Expected Idle for unseen conversation, got %s, %v", got, err)
	}

	state := ReceiveText(mustResolve(t, "portuguese"))
	if err := store.Set(ctx, "tg:1", state); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	raw, err := mr.Get("voice-reader:state:tg:1")
	if err != nil {
		t.Fatalf("Expected key to exist: %v", err)
	}
	if raw != "awaiting_text:portuguese" {
		t.Errorf("Unexpected stored value %q", raw)
	}

	got, err = store.Get(ctx, "tg:1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != state {
		t.Errorf("Expected %s, got %s", state, got)
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping error: %v", err)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, time.Hour)

	if err := store.Set(ctx, "tg:2", ReceiveText(mustResolve(t, "polish"))); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if ttl := mr.TTL("voice-reader:state:tg:2"); ttl != time.Hour {
		t.Errorf("Expected TTL 1h, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "tg:2")
	if err != nil || got != Idle() {
		t.Errorf("Expected expired state to read as Idle, got %s, %v", got, err)
	}
}

func TestRedisStoreDiscardsUnknownLanguage(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, 0)

	mr.Set("voice-reader:state:tg:3", "awaiting_text:klingon")

	got, err := store.Get(ctx, "tg:3")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != Idle() {
		t.Errorf("Expected Idle for unknown language, got %s", got)
	}
	if mr.Exists("voice-reader:state:tg:3") {
		t.Error("Expected undecodable state to be deleted")
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisStore(ctx, RedisConfig{Addr: addr}, zerolog.Nop()); err == nil {
		t.Error("Expected error for unreachable redis")
	}
	if _, err := NewRedisStore(ctx, RedisConfig{}, zerolog.Nop()); err == nil {
		t.Error("Expected error for empty address")
	}
}
