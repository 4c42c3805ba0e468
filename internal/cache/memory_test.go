package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

func TestMemory_HitAndMiss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if _, ok, err := m.Get(ctx, "chat:cache:absent"); err != nil || ok {
		t.Fatalf("Get(absent) = ok=%v, err=%v, want miss", ok, err)
	}

	want := Entry{Response: "Try Dune.", Citations: []string{"dune"}, CreatedAt: time.Now()}
	if err := m.Set(ctx, "chat:cache:k1", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := m.Get(ctx, "chat:cache:k1")
	if err != nil || !ok {
		t.Fatalf("Get(k1) = ok=%v, err=%v, want hit", ok, err)
	}
	if got.Response != want.Response {
		t.Errorf("Response = %q, want %q", got.Response, want.Response)
	}
	if len(got.Citations) != 1 || got.Citations[0] != "dune" {
		t.Errorf("Citations = %v, want [dune]", got.Citations)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if err := m.Set(ctx, "chat:cache:short", Entry{Response: "x"}, 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, err := m.Get(ctx, "chat:cache:short"); err != nil || ok {
		t.Fatalf("Get after expiry = ok=%v, err=%v, want miss", ok, err)
	}
	if m.Len() != 0 {
		t.Errorf("Len after expired lookup = %d, want 0", m.Len())
	}
}

func TestMemory_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(3))
	defer m.Close()

	for i := 0; i < 4; i++ {
		key := "chat:cache:" + strconv.Itoa(i)
		if err := m.Set(ctx, key, Entry{Response: key}, time.Minute); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	// Oldest entry was evicted, the rest survive.
	if _, ok, _ := m.Get(ctx, "chat:cache:0"); ok {
		t.Error("oldest entry survived past capacity")
	}
	for i := 1; i < 4; i++ {
		key := "chat:cache:" + strconv.Itoa(i)
		if _, ok, _ := m.Get(ctx, key); !ok {
			t.Errorf("Get(%s) missed, want hit", key)
		}
	}
}

func TestMemory_RecentlyUsedSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(2))
	defer m.Close()

	m.Set(ctx, "chat:cache:a", Entry{Response: "a"}, time.Minute)
	m.Set(ctx, "chat:cache:b", Entry{Response: "b"}, time.Minute)
	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok, _ := m.Get(ctx, "chat:cache:a"); !ok {
		t.Fatal("Get(a) missed before eviction")
	}
	m.Set(ctx, "chat:cache:c", Entry{Response: "c"}, time.Minute)

	if _, ok, _ := m.Get(ctx, "chat:cache:a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok, _ := m.Get(ctx, "chat:cache:b"); ok {
		t.Error("least recently used entry survived")
	}
}

func TestMemory_SetUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(2))
	defer m.Close()

	m.Set(ctx, "chat:cache:k", Entry{Response: "old"}, time.Minute)
	m.Set(ctx, "chat:cache:k", Entry{Response: "new"}, time.Minute)
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	got, ok, _ := m.Get(ctx, "chat:cache:k")
	if !ok || got.Response != "new" {
		t.Errorf("Get = %q (ok=%v), want updated entry", got.Response, ok)
	}
}

func TestMemory_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	m.Set(ctx, "chat:cache:a", Entry{Response: "a"}, time.Minute)
	m.Set(ctx, "chat:cache:b", Entry{Response: "b"}, time.Minute)

	if err := m.Delete(ctx, "chat:cache:a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "chat:cache:a"); ok {
		t.Error("deleted entry still present")
	}

	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len after Flush = %d, want 0", m.Len())
	}
}

func TestKey_SameContextSameKey(t *testing.T) {
	window := []types.Turn{
		{Seq: 1, UserText: "hi", AssistantText: "hello"},
	}
	k1 := Key("recommend sci-fi", window)
	k2 := Key("recommend sci-fi", window)
	if k1 != k2 {
		t.Errorf("identical inputs produced different keys: %s vs %s", k1, k2)
	}
	if !strings.HasPrefix(k1, "chat:cache:") {
		t.Errorf("key %q missing chat:cache: prefix", k1)
	}
}

func TestKey_NormalizedQueryVariantsCollide(t *testing.T) {
	window := []types.Turn{{Seq: 1, UserText: "hi", AssistantText: "hello"}}
	k1 := Key("Recommend   Sci-Fi", window)
	k2 := Key("recommend sci-fi", window)
	if k1 != k2 {
		t.Errorf("normalized variants produced different keys: %s vs %s", k1, k2)
	}
}

func TestKey_WindowChangesKey(t *testing.T) {
	q := "what should I read next"
	k1 := Key(q, []types.Turn{{Seq: 1, UserText: "I loved Dune", AssistantText: "Noted."}})
	k2 := Key(q, []types.Turn{{Seq: 1, UserText: "I hate sci-fi", AssistantText: "Noted."}})
	k3 := Key(q, nil)
	if k1 == k2 || k1 == k3 || k2 == k3 {
		t.Errorf("distinct windows should produce distinct keys: %s, %s, %s", k1, k2, k3)
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Recommend   Sci-Fi  ", "recommend sci-fi"},
		{"BİLİM kurgu\tönerir misin", "bilim kurgu önerir misin"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
