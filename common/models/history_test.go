package models

import (
	"testing"
	"time"
)

func TestRenameHistory_RecordAndContains(t *testing.T) {
	h := RenameHistory{}
	base := time.UnixMilli(1700000000000)

	h.Record(base, "alice")
	h.Record(base.Add(time.Hour), "alicia")

	if h.Count() != 2 {
		t.Fatalf("Count = %d, want 2", h.Count())
	}
	if !h.Contains("alice") || !h.Contains("alicia") {
		t.Error("recorded names must be contained")
	}
	if h.Contains("bob") {
		t.Error("unrecorded name must not be contained")
	}
}

func TestRenameHistory_CollisionBumpsKey(t *testing.T) {
	h := RenameHistory{}
	at := time.UnixMilli(1700000000000)

	// Two renames in the same millisecond both survive.
	h.Record(at, "first")
	h.Record(at, "second")

	if h.Count() != 2 {
		t.Fatalf("Count = %d, want 2 after same-ms records", h.Count())
	}
	if !h.Contains("first") || !h.Contains("second") {
		t.Error("colliding record must not overwrite the earlier one")
	}
}

func TestRenameHistory_LastRename(t *testing.T) {
	h := RenameHistory{}
	if _, ok := h.LastRename(); ok {
		t.Fatal("empty history has no last rename")
	}

	early := time.UnixMilli(1700000000000)
	late := early.Add(48 * time.Hour)
	h.Record(late, "newer")
	h.Record(early, "older")

	last, ok := h.LastRename()
	if !ok {
		t.Fatal("expected a last rename")
	}
	if !last.Equal(late) {
		t.Errorf("LastRename = %v, want %v", last, late)
	}
}

func TestRenameHistory_TimestampsChronological(t *testing.T) {
	h := RenameHistory{}
	base := time.UnixMilli(1700000000000)
	for i := 3; i >= 0; i-- {
		h.Record(base.Add(time.Duration(i)*time.Minute), "name")
	}

	stamps := h.Timestamps()
	if len(stamps) != 4 {
		t.Fatalf("len = %d, want 4", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if stamps[i].Before(stamps[i-1]) {
			t.Fatalf("timestamps out of order at %d: %v", i, stamps)
		}
	}
}

func TestMember_AuthorizesName(t *testing.T) {
	m := &Member{Username: "Alicia", RenameHistory: RenameHistory{}}
	m.RenameHistory.Record(time.UnixMilli(1700000000000), "Alice")

	if !m.AuthorizesName("Alicia") {
		t.Error("current name must authorize")
	}
	if !m.AuthorizesName("Alice") {
		t.Error("former name must authorize")
	}
	if m.AuthorizesName("Bob") {
		t.Error("foreign name must not authorize")
	}
}

func TestMember_ApplyRenameRecordsPrevious(t *testing.T) {
	m := &Member{Username: "Alice"}
	m.ApplyRename("Alicia", time.UnixMilli(1700000000000))

	if m.Username != "Alicia" {
		t.Errorf("Username = %q, want Alicia", m.Username)
	}
	if !m.RenameHistory.Contains("Alice") {
		t.Error("previous name must be recorded")
	}
}

func TestMember_Compositions(t *testing.T) {
	m := &Member{}
	m.AddComposition("c1")
	m.AddComposition("c2")
	m.AddComposition("c1") // idempotent

	if len(m.Compositions) != 2 {
		t.Fatalf("Compositions = %v, want two entries", m.Compositions)
	}

	m.RemoveComposition("c1")
	if len(m.Compositions) != 1 || m.Compositions[0] != "c2" {
		t.Errorf("Compositions = %v after remove, want [c2]", m.Compositions)
	}
	m.RemoveComposition("missing") // no-op
	if len(m.Compositions) != 1 {
		t.Errorf("removing an absent id must not change the list: %v", m.Compositions)
	}
}
