package provenance

import (
	"testing"

	"github.com/openclaw/provenance-core/pkg/trust"
)

func sealedGraph(session string) *Graph {
	g := New(session, trust.NewTable(nil))
	g.RecordContextAssembled(10, 1, trust.LevelOwner)
	g.Seal()
	return g
}

func TestArchiveAddAndGet(t *testing.T) {
	a := NewArchive(10)
	g := sealedGraph("sess-1")

	id, err := a.Add(g)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	entry, ok := a.Get(id)
	if !ok {
		t.Fatal("expected entry to be retrievable")
	}
	if entry.Session != "sess-1" {
		t.Errorf("Session = %v, want sess-1", entry.Session)
	}
}

func TestArchiveEvictsOldestAtCapacity(t *testing.T) {
	a := NewArchive(2)

	firstID, _ := a.Add(sealedGraph("sess-1"))
	a.Add(sealedGraph("sess-2"))
	a.Add(sealedGraph("sess-3"))

	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	if _, ok := a.Get(firstID); ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestArchiveRecentOrdersNewestFirst(t *testing.T) {
	a := NewArchive(10)
	olderID, _ := a.Add(sealedGraph("sess-1"))
	newerID, _ := a.Add(sealedGraph("sess-1"))
	a.Add(sealedGraph("sess-2"))

	recent := a.Recent("sess-1", 10)
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(recent))
	}
	if recent[0].ID != newerID || recent[1].ID != olderID {
		t.Errorf("Recent order = [%s %s], want newest first [%s %s]", recent[0].ID, recent[1].ID, newerID, olderID)
	}
}
