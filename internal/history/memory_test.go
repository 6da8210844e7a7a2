package history

import (
	"context"
	"testing"
	"time"

	"github.com/dubwatch/dubwatch/internal/job"
)

func makeEntry(id string, status job.Status) Entry {
	return Entry{
		JobID:      id,
		Last:       job.Snapshot{Status: status, Progress: 100},
		ArchivedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_NewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore(0)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Add(ctx, makeEntry(id, job.StatusDone)); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c", "b", "a"} {
		if got[i].JobID != want {
			t.Errorf("entry[%d].JobID = %q, want %q", i, got[i].JobID, want)
		}
	}
}

func TestMemoryStore_CapDropsOldest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore(2)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Add(ctx, makeEntry(id, job.StatusDone)); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].JobID != "c" || got[1].JobID != "b" {
		t.Errorf("entries = [%s %s], want [c b]", got[0].JobID, got[1].JobID)
	}
}

func TestMemoryStore_ListReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore(0)

	if err := s.Add(ctx, makeEntry("a", job.StatusError)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	first, _ := s.List(ctx)
	first[0].JobID = "mutated"

	second, _ := s.List(ctx)
	if second[0].JobID != "a" {
		t.Errorf("stored entry mutated through List result: JobID = %q", second[0].JobID)
	}
}
