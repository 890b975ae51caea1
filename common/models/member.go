package models

import (
	"time"

	"github.com/ki1r0y/gallery/common/score"
)

// Member is a member record. The idtag is not stored inside the document;
// it is part of the document key, assigned once at creation and never
// reused.
type Member struct {
	Username      string          `json:"username"`
	Title         string          `json:"title,omitempty"`
	Description   string          `json:"description,omitempty"`
	Website       string          `json:"website,omitempty"`
	Email         string          `json:"email,omitempty"`
	PasswordHash  string          `json:"passwordHash,omitempty"`
	Picture       string          `json:"picture,omitempty"` // blob id
	Created       int64           `json:"created,omitempty"` // epoch milliseconds
	RenameHistory RenameHistory   `json:"renameHistory,omitempty"`
	Score         *score.Snapshot `json:"score,omitempty"`
	Compositions  []string        `json:"compositions,omitempty"` // owned composition idtags
}

// AuthorizesName reports whether name is the member's current username or
// any username the member previously held. Requests addressed to a former
// username still authorize as this member.
func (m *Member) AuthorizesName(name string) bool {
	if m.Username == name {
		return true
	}
	return m.RenameHistory.Contains(name)
}

// ApplyRename sets a new username and records the superseded one in the
// rename history. Both changes land in the same document write.
func (m *Member) ApplyRename(newName string, now time.Time) {
	if m.RenameHistory == nil {
		m.RenameHistory = make(RenameHistory)
	}
	m.RenameHistory.Record(now, m.Username)
	m.Username = newName
}

// AddComposition appends a composition idtag to the member's owned list.
func (m *Member) AddComposition(idtag string) {
	for _, existing := range m.Compositions {
		if existing == idtag {
			return
		}
	}
	m.Compositions = append(m.Compositions, idtag)
}

// RemoveComposition drops a composition idtag from the member's owned list.
func (m *Member) RemoveComposition(idtag string) {
	kept := m.Compositions[:0]
	for _, existing := range m.Compositions {
		if existing != idtag {
			kept = append(kept, existing)
		}
	}
	m.Compositions = kept
}
