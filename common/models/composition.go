package models

import (
	"time"

	"github.com/ki1r0y/gallery/common/score"
)

// Composition is a composition record, owned by exactly one member. Its
// nametag is unique within the owning member's scope.
type Composition struct {
	Nametag       string          `json:"nametag"`
	Artist        string          `json:"artist"` // owning member idtag
	Title         string          `json:"title,omitempty"`
	Description   string          `json:"description,omitempty"`
	Price         string          `json:"price,omitempty"`
	Dimensions    string          `json:"dimensions,omitempty"`
	Medium        string          `json:"medium,omitempty"`
	Category      []string        `json:"category,omitempty"`
	Picture       string          `json:"picture,omitempty"` // blob id
	Created       int64           `json:"created,omitempty"` // epoch milliseconds
	RenameHistory RenameHistory   `json:"renameHistory,omitempty"`
	Score         *score.Snapshot `json:"score,omitempty"`
}

// AuthorizesName reports whether name is the composition's current nametag
// or any nametag it previously held.
func (c *Composition) AuthorizesName(name string) bool {
	if c.Nametag == name {
		return true
	}
	return c.RenameHistory.Contains(name)
}

// ApplyRename sets a new nametag and records the superseded one in the
// rename history.
func (c *Composition) ApplyRename(newName string, now time.Time) {
	if c.RenameHistory == nil {
		c.RenameHistory = make(RenameHistory)
	}
	c.RenameHistory.Record(now, c.Nametag)
	c.Nametag = newName
}
