package realtime

import (
	"errors"
	"testing"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore(1 << 20)

	sess, err := s.Create("session_a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID != "session_a" {
		t.Errorf("id = %q", sess.ID)
	}
	if sess.Config.Voice != "alloy" || sess.Config.Temperature != 0.6 {
		t.Errorf("new session not on defaults: %+v", sess.Config)
	}

	got, err := s.Get("session_a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != sess {
		t.Error("get returned a different session")
	}
}

func TestStoreDuplicateCreate(t *testing.T) {
	s := NewStore(1 << 20)
	if _, err := s.Create("session_a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("session_a"); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("duplicate create err = %v, want ErrDuplicateSession", err)
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := NewStore(1 << 20)
	if _, err := s.Get("nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("err = %v, want ErrUnknownSession", err)
	}
}

func TestStoreRemoveIdempotent(t *testing.T) {
	s := NewStore(1 << 20)
	if _, err := s.Create("session_a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Remove("session_a")
	s.Remove("session_a") // second remove is a no-op
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
	if _, err := s.Get("session_a"); !errors.Is(err, ErrUnknownSession) {
		t.Error("removed session still retrievable")
	}
}

func TestStoreIDsSorted(t *testing.T) {
	s := NewStore(1 << 20)
	for _, id := range []string{"session_c", "session_a", "session_b"} {
		if _, err := s.Create(id); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	ids := s.IDs()
	want := []string{"session_a", "session_b", "session_c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
