// Package identity maintains the mapping from unique human-chosen nametags
// to opaque idtags. Uniqueness is enforced at claim time through the store's
// atomic Update, never by background validation. Claim documents are never
// deleted and never rewritten to point at a different id, so a stale claim
// keeps recording who owned a name, while resolution only honors current
// names.
package identity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/models"
	"github.com/ki1r0y/gallery/common/store"
)

// Index claims, renames, and resolves nametags within a scope.
type Index struct {
	store    store.Store
	throttle Throttle
	log      *logger.Logger
	now      func() time.Time
}

// New creates an index over the given store.
func New(st store.Store, throttle Throttle, log *logger.Logger) *Index {
	return &Index{
		store:    st,
		throttle: throttle,
		log:      log,
		now:      time.Now,
	}
}

// entityView is the slice of an entity record the index needs: its current
// name and its rename history.
type entityView struct {
	Username      string               `json:"username"`
	Nametag       string               `json:"nametag"`
	RenameHistory models.RenameHistory `json:"renameHistory"`
}

// currentName returns whichever name field the record carries. Members hold
// a username, compositions a nametag.
func (v entityView) currentName() string {
	if v.Username != "" {
		return v.Username
	}
	return v.Nametag
}

// Resolve maps a nametag to the owning idtag. The claim document is looked
// up directly, with no rename-history fallback, and then checked for
// currency against the entity record: a claim whose entity has since been
// renamed (or whose record does not exist yet) reports NotFound even though
// the claim document itself is still in place.
func (ix *Index) Resolve(ctx context.Context, sc Scope, nametag string) (string, error) {
	doc, err := ix.store.Get(ctx, sc.ClaimKey(nametag))
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(doc, &id); err != nil {
		return "", apperr.Storage(err, "malformed claim for %s", nametag)
	}

	view, err := ix.loadEntity(ctx, sc, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Claim committed but the entity record never landed, or the
			// entity was removed. The claim stays; the name does not
			// resolve.
			return "", apperr.NotFound("unknown %s", nametag)
		}
		return "", err
	}
	if view.currentName() != nametag {
		return "", apperr.NotFound("unknown %s", nametag)
	}
	return id, nil
}

// Claim claims nametag for ownerID. The whole check-and-write runs inside a
// single atomic Update on the claim key, so two concurrent claimants for a
// new nametag cannot both observe "absent": exactly one wins, the other
// gets Conflict. Re-claiming an already-owned nametag succeeds without a
// write.
func (ix *Index) Claim(ctx context.Context, sc Scope, nametag, ownerID string) error {
	claim := sc.ClaimKey(nametag)
	_, err := ix.store.Update(ctx, claim, func(current store.Document, exists bool) (store.Document, bool, error) {
		if exists {
			var holder string
			if err := json.Unmarshal(current, &holder); err != nil {
				return nil, false, apperr.Storage(err, "malformed claim for %s", nametag)
			}
			if holder == ownerID {
				return nil, false, nil
			}
			return nil, false, apperr.Conflict("nametag %s is already in use", nametag)
		}
		doc, err := json.Marshal(ownerID)
		if err != nil {
			return nil, false, apperr.Storage(err, "encode claim for %s", nametag)
		}
		return doc, true, nil
	})
	if err != nil {
		return err
	}
	ix.log.Debug("nametag claimed", "nametag", nametag, "owner", ownerID)
	return nil
}

// Rename claims a replacement nametag for an entity that already holds one.
// The throttle is consulted against the entity's own record first; a policy
// violation fails RateLimited before anything is written. On success the
// caller must perform the entity mutation (new name plus history entry) as
// its own single-key atomic update; the gap between the two writes is the
// accepted cross-key non-transactionality.
func (ix *Index) Rename(ctx context.Context, sc Scope, nametag, ownerID string) error {
	view, err := ix.loadEntity(ctx, sc, ownerID)
	if err != nil {
		return err
	}
	if err := ix.throttle.Allow(view.RenameHistory, ix.now()); err != nil {
		ix.log.Info("rename throttled", "owner", ownerID, "nametag", nametag, "error", err)
		return err
	}
	return ix.Claim(ctx, sc, nametag, ownerID)
}

// AuthorizesName reports whether candidate equals the entity's current name
// or any name in its rename history. Access control uses this so a request
// addressed to a member's former username still authenticates as that
// member.
func (ix *Index) AuthorizesName(ctx context.Context, sc Scope, id, candidate string) (bool, error) {
	view, err := ix.loadEntity(ctx, sc, id)
	if err != nil {
		return false, err
	}
	if view.currentName() == candidate {
		return true, nil
	}
	return view.RenameHistory.Contains(candidate), nil
}

func (ix *Index) loadEntity(ctx context.Context, sc Scope, id string) (entityView, error) {
	doc, err := ix.store.Get(ctx, sc.EntityKey(id))
	if err != nil {
		return entityView{}, err
	}
	var view entityView
	if err := json.Unmarshal(doc, &view); err != nil {
		return entityView{}, apperr.Storage(err, "malformed entity record %s", id)
	}
	return view, nil
}
