package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/blob"
	"github.com/ki1r0y/gallery/common/hotlist"
	"github.com/ki1r0y/gallery/common/identity"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/models"
	"github.com/ki1r0y/gallery/common/score"
	"github.com/ki1r0y/gallery/common/store"
)

// compositionFields are the free-form attributes merged on update. The
// nametag is handled through the identity index, category through its own
// split.
var compositionFields = []string{"title", "description", "price", "dimensions", "medium"}

// CompositionService creates, updates, ranks, and navigates compositions.
type CompositionService struct {
	store   store.Store
	index   *identity.Index
	blobs   *blob.Store
	hotlist *hotlist.List
	log     *logger.Logger

	halfLife time.Duration
	now      func() time.Time
}

// NewCompositionService creates a new composition service.
func NewCompositionService(st store.Store, ix *identity.Index, blobs *blob.Store, hl *hotlist.List, halfLife time.Duration, log *logger.Logger) *CompositionService {
	return &CompositionService{
		store:    st,
		index:    ix,
		blobs:    blobs,
		hotlist:  hl,
		log:      log,
		halfLife: halfLife,
		now:      time.Now,
	}
}

// Create adds a composition under ownerID: claims the nametag within the
// owner's scope, writes the record, appends it to the hotlist, and links it
// into the owner's record. Each write is its own single-key atomic
// operation, in that order.
func (s *CompositionService) Create(ctx context.Context, ownerID string, fields map[string]string, picture *Upload) (string, *models.Composition, error) {
	nametag := Normalize(fields["nametag"])
	comp := &models.Composition{
		Nametag:     nametag,
		Artist:      ownerID,
		Title:       Normalize(fields["title"]),
		Description: Normalize(fields["description"]),
		Price:       Normalize(fields["price"]),
		Dimensions:  Normalize(fields["dimensions"]),
		Medium:      Normalize(fields["medium"]),
		Category:    splitCategory(fields["category"]),
	}
	if nametag == "" || comp.Title == "" {
		return "", nil, apperr.BadInput("missing required data: nametag and title are needed")
	}

	idtag := uuid.NewString()
	comp.Created = s.now().UnixMilli()

	// The picture is validated and stored before the claim, so a rejected
	// upload cannot leave a claimed nametag with no record behind it.
	if picture != nil && len(picture.Data) > 0 {
		blobID, err := s.blobs.Store(ctx, picture.Data, picture.Extension, picture.MimeType)
		if err != nil {
			return "", nil, err
		}
		comp.Picture = blobID
	}

	if err := s.index.Claim(ctx, identity.CompositionsOf(ownerID), nametag, idtag); err != nil {
		return "", nil, err
	}

	doc, err := json.Marshal(comp)
	if err != nil {
		return "", nil, apperr.Storage(err, "encode composition %s", idtag)
	}
	if err := s.store.Set(ctx, store.CompositionKey(idtag), doc); err != nil {
		return "", nil, err
	}

	if err := s.hotlist.Append(ctx, ownerID, idtag); err != nil {
		return "", nil, err
	}
	if err := s.linkOwner(ctx, ownerID, idtag, true); err != nil {
		return "", nil, err
	}

	s.log.Info("composition created", "composition_id", idtag, "owner", ownerID, "nametag", nametag)
	return idtag, comp, nil
}

// Update mutates a composition record: merge-patches the free-form
// attributes, takes the throttled rename path when the nametag changes, and
// replaces the picture blob before committing the new reference.
func (s *CompositionService) Update(ctx context.Context, ownerID, idtag string, fields map[string]string, picture *Upload) (*models.Composition, error) {
	current, err := s.Get(ctx, idtag)
	if err != nil {
		return nil, err
	}
	if current.Artist != ownerID {
		return nil, apperr.Forbidden("composition %s is not owned by %s", idtag, ownerID)
	}

	newNametag := Normalize(fields["nametag"])
	renaming := newNametag != "" && newNametag != current.Nametag
	if renaming {
		if err := s.index.Rename(ctx, identity.CompositionsOf(ownerID), newNametag, idtag); err != nil {
			return nil, err
		}
	}

	newPicture := ""
	if picture != nil && len(picture.Data) > 0 {
		newPicture, err = s.blobs.Replace(ctx, current.Picture, picture.Data, picture.Extension, picture.MimeType)
		if err != nil {
			return nil, err
		}
	}

	patch := normalizeAllowed(compositionFields, fields)
	patchDoc, err := json.Marshal(patch)
	if err != nil {
		return nil, apperr.Storage(err, "encode composition patch")
	}
	category, hasCategory := fields["category"]

	final, err := s.store.Update(ctx, store.CompositionKey(idtag), func(doc store.Document, exists bool) (store.Document, bool, error) {
		if !exists {
			return nil, false, apperr.NotFound("unknown composition %s", idtag)
		}
		merged, err := jsonpatch.MergePatch([]byte(doc), patchDoc)
		if err != nil {
			return nil, false, apperr.Storage(err, "merge composition %s", idtag)
		}
		var c models.Composition
		if err := json.Unmarshal(merged, &c); err != nil {
			return nil, false, apperr.Storage(err, "decode composition %s", idtag)
		}
		if renaming {
			c.ApplyRename(newNametag, s.now())
		}
		if hasCategory {
			c.Category = splitCategory(category)
		}
		if newPicture != "" {
			c.Picture = newPicture
		}
		next, err := json.Marshal(&c)
		if err != nil {
			return nil, false, apperr.Storage(err, "encode composition %s", idtag)
		}
		return next, true, nil
	})
	if err != nil {
		return nil, err
	}

	var updated models.Composition
	if err := json.Unmarshal(final, &updated); err != nil {
		return nil, apperr.Storage(err, "decode composition %s", idtag)
	}
	s.log.Info("composition updated", "composition_id", idtag, "renamed", renaming)
	return &updated, nil
}

// Delete removes a composition: its record, its claim, its hotlist entry,
// its link in the owner's record, and best-effort its picture blob. The
// claim of a deleted composition is destroyed so the nametag can be reused;
// claims superseded by rename stay, per the naming design.
func (s *CompositionService) Delete(ctx context.Context, ownerID, idtag string) error {
	current, err := s.Get(ctx, idtag)
	if err != nil {
		return err
	}
	if current.Artist != ownerID {
		return apperr.Forbidden("composition %s is not owned by %s", idtag, ownerID)
	}

	if err := s.store.Destroy(ctx, store.CompositionKey(idtag)); err != nil {
		return err
	}
	if err := s.store.Destroy(ctx, identity.CompositionsOf(ownerID).ClaimKey(current.Nametag)); err != nil {
		return err
	}
	if err := s.hotlist.Remove(ctx, idtag); err != nil {
		return err
	}
	if err := s.linkOwner(ctx, ownerID, idtag, false); err != nil {
		return err
	}
	if current.Picture != "" {
		if err := s.blobs.Remove(ctx, current.Picture); err != nil {
			s.log.Warn("could not remove composition blob", "blob", current.Picture, "error", err)
		}
	}

	s.log.Info("composition deleted", "composition_id", idtag, "owner", ownerID)
	return nil
}

// Get loads a composition record by idtag.
func (s *CompositionService) Get(ctx context.Context, idtag string) (*models.Composition, error) {
	doc, err := s.store.Get(ctx, store.CompositionKey(idtag))
	if err != nil {
		return nil, err
	}
	var c models.Composition
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, apperr.Storage(err, "decode composition %s", idtag)
	}
	return &c, nil
}

// GetByNametag resolves a composition nametag within its owner's scope.
func (s *CompositionService) GetByNametag(ctx context.Context, ownerID, nametag string) (string, *models.Composition, error) {
	idtag, err := s.index.Resolve(ctx, identity.CompositionsOf(ownerID), nametag)
	if err != nil {
		return "", nil, err
	}
	c, err := s.Get(ctx, idtag)
	if err != nil {
		return "", nil, err
	}
	return idtag, c, nil
}

// RecordView bumps the composition's decaying popularity score. The stored
// snapshot is rewritten whole: decayed value plus delta, stamped now.
func (s *CompositionService) RecordView(ctx context.Context, idtag string, delta float64) error {
	_, err := s.store.Update(ctx, store.CompositionKey(idtag), func(doc store.Document, exists bool) (store.Document, bool, error) {
		if !exists {
			return nil, false, apperr.NotFound("unknown composition %s", idtag)
		}
		var c models.Composition
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, false, apperr.Storage(err, "decode composition %s", idtag)
		}
		bumped := score.Increment(c.Score, delta, s.now(), s.halfLife)
		c.Score = &bumped
		next, err := json.Marshal(&c)
		if err != nil {
			return nil, false, apperr.Storage(err, "encode composition %s", idtag)
		}
		return next, true, nil
	})
	return err
}

// Hotness evaluates the composition's current effective score.
func (s *CompositionService) Hotness(c *models.Composition) float64 {
	return score.Evaluate(c.Score, s.now(), s.halfLife)
}

// Latest returns the most recently added composition, or nils when none.
func (s *CompositionService) Latest(ctx context.Context) (string, *models.Composition, error) {
	entry, err := s.hotlist.Latest(ctx)
	if err != nil || entry == nil {
		return "", nil, err
	}
	c, err := s.Get(ctx, entry.Item)
	if err != nil {
		return "", nil, err
	}
	return entry.Item, c, nil
}

// Neighbor returns the composition next to idtag in the hotlist (-1
// previous, +1 next), or nils when there is none.
func (s *CompositionService) Neighbor(ctx context.Context, idtag string, direction int) (string, *models.Composition, error) {
	entry, err := s.hotlist.Neighbor(ctx, idtag, direction)
	if err != nil || entry == nil {
		return "", nil, err
	}
	c, err := s.Get(ctx, entry.Item)
	if err != nil {
		return "", nil, err
	}
	return entry.Item, c, nil
}

// linkOwner adds or removes the composition in the owner's record, as its
// own single-key atomic update.
func (s *CompositionService) linkOwner(ctx context.Context, ownerID, idtag string, add bool) error {
	_, err := s.store.Update(ctx, store.MemberKey(ownerID), func(doc store.Document, exists bool) (store.Document, bool, error) {
		if !exists {
			return nil, false, apperr.NotFound("unknown member %s", ownerID)
		}
		var m models.Member
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, false, apperr.Storage(err, "decode member %s", ownerID)
		}
		if add {
			m.AddComposition(idtag)
		} else {
			m.RemoveComposition(idtag)
		}
		next, err := json.Marshal(&m)
		if err != nil {
			return nil, false, apperr.Storage(err, "encode member %s", ownerID)
		}
		return next, true, nil
	})
	return err
}

// splitCategory turns the space-separated category field into a list,
// dropping empties.
func splitCategory(raw string) []string {
	fields := strings.Fields(Normalize(raw))
	if len(fields) == 0 {
		return nil
	}
	return fields
}
