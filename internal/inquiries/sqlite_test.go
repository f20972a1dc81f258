package inquiries

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir() + "/inquiries.db")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inq := &Inquiry{
		Name:    "Ada Example",
		Email:   "ada@example.com",
		Phone:   "+1 555 0100",
		Service: "color",
		Message: "Need grading for a 12-minute short.",
	}
	if err := s.Save(ctx, inq); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if inq.ID == "" {
		t.Fatal("Save did not assign an ID")
	}
	if inq.CreatedAt.IsZero() {
		t.Fatal("Save did not assign CreatedAt")
	}

	got, err := s.Get(ctx, inq.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for saved inquiry")
	}
	if got.Name != inq.Name || got.Email != inq.Email || got.Message != inq.Message {
		t.Errorf("Get = %+v, want fields of %+v", got, inq)
	}
	if got.CreatedAt.Sub(inq.CreatedAt) > time.Millisecond {
		t.Errorf("CreatedAt roundtrip drifted: %v vs %v", got.CreatedAt, inq.CreatedAt)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		inq := &Inquiry{
			Name:      "Client",
			Email:     "client@example.com",
			Message:   "hello",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Save(ctx, inq); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(recent))
	}
	if !recent[0].CreatedAt.After(recent[1].CreatedAt) {
		t.Errorf("Recent not newest-first: %v then %v", recent[0].CreatedAt, recent[1].CreatedAt)
	}
}
