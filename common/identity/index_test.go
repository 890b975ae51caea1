package identity

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/models"
	"github.com/ki1r0y/gallery/common/store"
)

func newTestIndex() (*Index, store.Store) {
	st := store.NewMemoryStore()
	return New(st, DefaultThrottle(), logger.Discard()), st
}

func putMember(t *testing.T, st store.Store, id string, m *models.Member) {
	t.Helper()
	doc, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Set(context.Background(), store.MemberKey(id), doc); err != nil {
		t.Fatal(err)
	}
}

func TestClaimAndResolve(t *testing.T) {
	ctx := context.Background()
	ix, st := newTestIndex()
	sc := Members()

	if err := ix.Claim(ctx, sc, "alice", "m1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	putMember(t, st, "m1", &models.Member{Username: "alice"})

	id, err := ix.Resolve(ctx, sc, "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != "m1" {
		t.Errorf("Resolve = %q, want m1", id)
	}
}

func TestClaim_IdempotentForSameOwner(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex()
	sc := Members()

	if err := ix.Claim(ctx, sc, "alice", "m1"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Claim(ctx, sc, "alice", "m1"); err != nil {
		t.Errorf("re-claim by the holder must succeed: %v", err)
	}
}

func TestClaim_ConflictForDifferentOwner(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex()
	sc := Members()

	if err := ix.Claim(ctx, sc, "alice", "m1"); err != nil {
		t.Fatal(err)
	}
	err := ix.Claim(ctx, sc, "alice", "m2")
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex()
	sc := Members()

	const claimants = 16
	errs := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = ix.Claim(ctx, sc, "alice", string(rune('a'+n)))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case apperr.IsConflict(err):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestClaim_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex()

	// The same nametag under different owners' composition scopes, and
	// under the global member scope, never collide.
	if err := ix.Claim(ctx, Members(), "sunset", "m1"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Claim(ctx, CompositionsOf("m1"), "sunset", "c1"); err != nil {
		t.Errorf("composition scope must not collide with member scope: %v", err)
	}
	if err := ix.Claim(ctx, CompositionsOf("m2"), "sunset", "c2"); err != nil {
		t.Errorf("different owners' scopes must not collide: %v", err)
	}
}

func TestResolve_UnknownName(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex()

	_, err := ix.Resolve(ctx, Members(), "nobody")
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestRename_EndToEnd(t *testing.T) {
	ctx := context.Background()
	ix, st := newTestIndex()
	sc := Members()

	base := time.UnixMilli(1700000000000)
	ix.now = func() time.Time { return base }

	if err := ix.Claim(ctx, sc, "alice", "m1"); err != nil {
		t.Fatal(err)
	}
	member := &models.Member{Username: "alice"}
	putMember(t, st, "m1", member)

	if err := ix.Rename(ctx, sc, "alicia", "m1"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	// The caller commits the entity's side of the rename.
	member.ApplyRename("alicia", base)
	putMember(t, st, "m1", member)

	id, err := ix.Resolve(ctx, sc, "alicia")
	if err != nil || id != "m1" {
		t.Errorf("new name must resolve: %q, %v", id, err)
	}

	// The superseded name stops resolving even though its claim document
	// is still in the store.
	if _, err := ix.Resolve(ctx, sc, "alice"); !apperr.IsNotFound(err) {
		t.Errorf("stale name must not resolve, got %v", err)
	}
	if _, err := st.Get(ctx, sc.ClaimKey("alice")); err != nil {
		t.Errorf("stale claim document must survive: %v", err)
	}

	// Both names still authorize as the member.
	for _, name := range []string{"alice", "alicia"} {
		ok, err := ix.AuthorizesName(ctx, sc, "m1", name)
		if err != nil || !ok {
			t.Errorf("AuthorizesName(%q) = %v, %v; want true", name, ok, err)
		}
	}
	if ok, _ := ix.AuthorizesName(ctx, sc, "m1", "bob"); ok {
		t.Error("foreign name must not authorize")
	}
}

func TestRename_MinIntervalEnforced(t *testing.T) {
	ctx := context.Background()
	ix, st := newTestIndex()
	sc := Members()

	base := time.UnixMilli(1700000000000)
	member := &models.Member{Username: "alicia", RenameHistory: models.RenameHistory{}}
	member.RenameHistory.Record(base, "alice")
	putMember(t, st, "m1", member)

	// 30 minutes after the last rename: throttled.
	ix.now = func() time.Time { return base.Add(30 * time.Minute) }
	if err := ix.Rename(ctx, sc, "alba", "m1"); !apperr.IsRateLimited(err) {
		t.Errorf("expected rate-limited inside the interval, got %v", err)
	}

	// 61 minutes after: allowed.
	ix.now = func() time.Time { return base.Add(61 * time.Minute) }
	if err := ix.Rename(ctx, sc, "alba", "m1"); err != nil {
		t.Errorf("rename past the interval must succeed: %v", err)
	}
}

func TestRename_LifetimeCapEnforced(t *testing.T) {
	ctx := context.Background()
	ix, st := newTestIndex()
	sc := Members()

	base := time.UnixMilli(1700000000000)
	member := &models.Member{Username: "alice", RenameHistory: models.RenameHistory{}}
	for i := 0; i < 50; i++ {
		member.RenameHistory.Record(base.Add(time.Duration(i)*2*time.Hour), "old-name")
	}
	putMember(t, st, "m1", member)

	ix.now = func() time.Time { return base.Add(1000 * time.Hour) }
	if err := ix.Rename(ctx, sc, "fresh", "m1"); !apperr.IsRateLimited(err) {
		t.Errorf("expected rate-limited at the lifetime cap, got %v", err)
	}

	// One fewer rename on record and it goes through.
	member.RenameHistory = models.RenameHistory{}
	for i := 0; i < 49; i++ {
		member.RenameHistory.Record(base.Add(time.Duration(i)*2*time.Hour), "old-name")
	}
	putMember(t, st, "m1", member)
	if err := ix.Rename(ctx, sc, "fresh", "m1"); err != nil {
		t.Errorf("rename under the cap must succeed: %v", err)
	}
}

func TestThrottle_Allow(t *testing.T) {
	th := Throttle{MaxRenames: 2, MinInterval: time.Hour}
	now := time.UnixMilli(1700000000000)

	if err := th.Allow(nil, now); err != nil {
		t.Errorf("empty history must be allowed: %v", err)
	}

	h := models.RenameHistory{}
	h.Record(now.Add(-time.Hour), "a")
	if err := th.Allow(h, now); err != nil {
		t.Errorf("exactly the interval must be allowed: %v", err)
	}

	h.Record(now.Add(-time.Minute), "b")
	if err := th.Allow(h, now); !apperr.IsRateLimited(err) {
		t.Errorf("at the cap: expected rate-limited, got %v", err)
	}
}
