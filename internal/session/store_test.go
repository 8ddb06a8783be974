package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// sequenceGenerator returns the given codes in order, then repeats the last one.
func sequenceGenerator(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}

func TestRandomCode_Shape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := RandomCode()
		if err != nil {
			t.Fatalf("RandomCode failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(CodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestCodeAlphabet_ExcludesAmbiguous(t *testing.T) {
	for _, r := range "0O1I" {
		if strings.ContainsRune(CodeAlphabet, r) {
			t.Errorf("alphabet must not contain %q", r)
		}
	}
	if 256%len(CodeAlphabet) != 0 {
		t.Errorf("alphabet length %d does not divide 256", len(CodeAlphabet))
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewStore(zap.NewNop(),
		WithCodeGenerator(sequenceGenerator("ABC123")),
		WithClock(func() time.Time { return created }))

	code, err := store.Create("host-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if code != "ABC123" {
		t.Fatalf("expected ABC123, got %s", code)
	}

	sess, err := store.Get(code)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Host != "host-1" {
		t.Errorf("expected host-1, got %s", sess.Host)
	}
	if len(sess.Queue) != 0 || sess.ActiveCandidate != "" {
		t.Errorf("new session should be empty, got %+v", sess)
	}
	if !sess.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt %v, got %v", created, sess.CreatedAt)
	}
}

func TestStore_CreateRetriesOnCollision(t *testing.T) {
	store := NewStore(nil, WithCodeGenerator(sequenceGenerator("AAAAAA", "AAAAAA", "BBBBBB")))

	first, err := store.Create("host-1")
	if err != nil || first != "AAAAAA" {
		t.Fatalf("first create: code=%s err=%v", first, err)
	}

	second, err := store.Create("host-2")
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second != "BBBBBB" {
		t.Errorf("expected retry to land on BBBBBB, got %s", second)
	}
}

func TestStore_CreateExhausted(t *testing.T) {
	store := NewStore(nil, WithCodeGenerator(sequenceGenerator("AAAAAA")))
	if _, err := store.Create("host-1"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	if _, err := store.Create("host-2"); !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Errorf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestStore_CreateGeneratorError(t *testing.T) {
	boom := errors.New("entropy unavailable")
	store := NewStore(nil, WithCodeGenerator(func() (string, error) { return "", boom }))

	if _, err := store.Create("host-1"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped generator error, got %v", err)
	}
}

func TestStore_CreateRequiresHost(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.Create(""); err != ErrEmptyHost {
		t.Errorf("expected ErrEmptyHost, got %v", err)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore(nil, WithCodeGenerator(sequenceGenerator("ABC123")))
	code, _ := store.Create("host-1")

	if err := store.Update(code, func(s *Session) error {
		s.Queue = append(s.Queue, "cand-1")
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	copy1, _ := store.Get(code)
	copy1.Queue[0] = "tampered"
	copy1.ActiveCandidate = "tampered"

	copy2, _ := store.Get(code)
	if copy2.Queue[0] != "cand-1" || copy2.ActiveCandidate != "" {
		t.Errorf("mutating a copy leaked into the store: %+v", copy2)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(nil)

	if _, err := store.Get("NOPE99"); err != ErrSessionNotFound {
		t.Errorf("Get: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := store.Delete("NOPE99"); err != ErrSessionNotFound {
		t.Errorf("Delete: expected ErrSessionNotFound, got %v", err)
	}
	called := false
	err := store.Update("NOPE99", func(*Session) error { called = true; return nil })
	if err != ErrSessionNotFound || called {
		t.Errorf("Update: expected ErrSessionNotFound without calling fn, got err=%v called=%v", err, called)
	}
}

func TestStore_DeleteReturnsFinalState(t *testing.T) {
	store := NewStore(nil, WithCodeGenerator(sequenceGenerator("ABC123")))
	code, _ := store.Create("host-1")
	_ = store.Update(code, func(s *Session) error {
		s.Queue = []string{"b", "c"}
		s.ActiveCandidate = "a"
		return nil
	})

	final, err := store.Delete(code)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	members := final.Members()
	if len(members) != 3 || members[0] != "a" || members[1] != "b" || members[2] != "c" {
		t.Errorf("unexpected members %v", members)
	}
	if store.Exists(code) {
		t.Error("session should be gone after Delete")
	}
}

func TestStore_FindByHost(t *testing.T) {
	store := NewStore(nil, WithCodeGenerator(sequenceGenerator("AAAAAA", "BBBBBB")))
	_, _ = store.Create("host-1")
	_, _ = store.Create("host-2")

	code, ok := store.FindByHost("host-2")
	if !ok || code != "BBBBBB" {
		t.Errorf("expected BBBBBB, got %s (found=%v)", code, ok)
	}
	if _, ok := store.FindByHost("nobody"); ok {
		t.Error("unknown host should not be found")
	}
}

func TestStore_ListAndStats(t *testing.T) {
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(nil,
		WithCodeGenerator(sequenceGenerator("CCCCCC", "AAAAAA")),
		WithClock(func() time.Time { tick = tick.Add(time.Second); return tick }))

	first, _ := store.Create("host-1")
	second, _ := store.Create("host-2")
	_ = store.Update(second, func(s *Session) error {
		s.Queue = []string{"x", "y"}
		s.ActiveCandidate = "z"
		return nil
	})

	list := store.List()
	if len(list) != 2 || list[0].Code != first || list[1].Code != second {
		t.Fatalf("expected creation order [%s %s], got %v", first, second, list)
	}

	stats := store.Stats()
	if stats["active_sessions"] != 2 || stats["queued_candidates"] != 2 || stats["active_interviews"] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestSession_PositionAndMembers(t *testing.T) {
	s := &Session{Queue: []string{"x", "y", "z"}, ActiveCandidate: "w"}

	for i, id := range []string{"x", "y", "z"} {
		if got := s.Position(id); got != i+1 {
			t.Errorf("Position(%s) = %d, want %d", id, got, i+1)
		}
	}
	if s.Position("w") != 0 {
		t.Error("active candidate has no queue position")
	}
	if !s.Holds("w") || !s.Holds("y") || s.Holds("host") {
		t.Error("Holds mismatch")
	}

	if !s.RemoveFromQueue("y") || s.RemoveFromQueue("y") {
		t.Error("RemoveFromQueue should succeed exactly once")
	}
	if s.Position("z") != 2 {
		t.Errorf("z should shift to 2, got %d", s.Position("z"))
	}
}

func TestStore_ConcurrentCreate(t *testing.T) {
	store := NewStore(nil)
	var wg sync.WaitGroup
	codes := make(chan string, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := store.Create(fmt.Sprintf("host-%d", i))
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			codes <- code
		}(i)
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		if seen[code] {
			t.Errorf("duplicate live code %s", code)
		}
		seen[code] = true
	}
	if len(seen) != 100 {
		t.Errorf("expected 100 sessions, got %d", len(seen))
	}
}
