// Package hotlist maintains the ordered (artist, composition) list that
// drives latest/next/previous navigation. The whole list lives in a single
// document (two parallel arrays, insertion order = recency order) and
// every mutation rewrites it wholesale under the store's atomic Update.
// Mutations therefore serialize correctly at the cost of an O(n) rewrite
// per operation, an accepted simplicity/scale trade-off.
package hotlist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/cache"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/store"
)

// cacheTTL bounds staleness when another process mutates the list. Writers
// in this process refresh the cached copy on every mutation (write-through).
const cacheTTL = 5 * time.Minute

// Entry is one (owner, item) pair.
type Entry struct {
	Owner string
	Item  string
}

// document is the persisted shape: equal-length parallel arrays.
type document struct {
	Owners []string `json:"owners"`
	Items  []string `json:"items"`
}

// List is the ranked list over the document store, with an injected
// write-through cache replacing the original's implicit process-wide
// singleton.
type List struct {
	store store.Store
	cache cache.Cache
	log   *logger.Logger
	key   string
}

// New creates the list. The document itself is created lazily by the first
// mutation.
func New(st store.Store, ch cache.Cache, log *logger.Logger) *List {
	return &List{
		store: st,
		cache: ch,
		log:   log,
		key:   store.HotlistKey,
	}
}

// Append pushes (owner, item) onto the end of the list.
func (l *List) Append(ctx context.Context, owner, item string) error {
	return l.mutate(ctx, func(doc *document) {
		doc.Owners = append(doc.Owners, owner)
		doc.Items = append(doc.Items, item)
	})
}

// Remove filters out every index holding item, preserving the relative
// order of the remainder. Removing an absent item is a no-op.
func (l *List) Remove(ctx context.Context, item string) error {
	return l.mutate(ctx, func(doc *document) {
		owners := doc.Owners[:0]
		items := doc.Items[:0]
		for i, it := range doc.Items {
			if it != item {
				owners = append(owners, doc.Owners[i])
				items = append(items, it)
			}
		}
		doc.Owners = owners
		doc.Items = items
	})
}

// Neighbor returns the entry adjacent to item in the given direction
// (-1 previous, +1 next), or nil when item is absent or the neighbor is out
// of bounds.
func (l *List) Neighbor(ctx context.Context, item string, direction int) (*Entry, error) {
	doc, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for i, it := range doc.Items {
		if it != item {
			continue
		}
		j := i + direction
		if j < 0 || j >= len(doc.Items) {
			return nil, nil
		}
		return &Entry{Owner: doc.Owners[j], Item: doc.Items[j]}, nil
	}
	return nil, nil
}

// Latest returns the most recently appended entry, or nil when the list is
// empty.
func (l *List) Latest(ctx context.Context) (*Entry, error) {
	doc, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(doc.Items) == 0 {
		return nil, nil
	}
	last := len(doc.Items) - 1
	return &Entry{Owner: doc.Owners[last], Item: doc.Items[last]}, nil
}

// mutate loads (or lazily initializes) the document inside Update, applies
// fn, writes the whole document back, and refreshes the cache with the
// committed result.
func (l *List) mutate(ctx context.Context, fn func(doc *document)) error {
	final, err := l.store.Update(ctx, l.key, func(current store.Document, exists bool) (store.Document, bool, error) {
		var doc document
		if exists {
			if err := json.Unmarshal(current, &doc); err != nil {
				return nil, false, apperr.Storage(err, "malformed %s document", l.key)
			}
		}
		fn(&doc)
		next, err := json.Marshal(doc)
		if err != nil {
			return nil, false, apperr.Storage(err, "encode %s document", l.key)
		}
		return next, true, nil
	})
	if err != nil {
		return err
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, l.key, []byte(final), cacheTTL); err != nil {
			l.log.Warn("hotlist cache refresh failed", "error", err)
		}
	}
	return nil
}

// load reads the document, consulting the cache first. An absent document
// is an empty list.
func (l *List) load(ctx context.Context) (document, error) {
	var doc document

	if l.cache != nil {
		if cached, hit, err := l.cache.Get(ctx, l.key); err == nil && hit {
			if err := json.Unmarshal(cached, &doc); err == nil {
				return doc, nil
			}
		}
	}

	raw, err := l.store.Get(ctx, l.key)
	if err != nil {
		if apperr.IsNotFound(err) {
			return document{}, nil
		}
		return document{}, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, apperr.Storage(err, "malformed %s document", l.key)
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, l.key, []byte(raw), cacheTTL); err != nil {
			l.log.Warn("hotlist cache refresh failed", "error", err)
		}
	}
	return doc, nil
}
