package service

import (
	"context"
	"testing"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/blob"
	"github.com/ki1r0y/gallery/common/cache"
	"github.com/ki1r0y/gallery/common/hotlist"
	"github.com/ki1r0y/gallery/common/identity"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/score"
	"github.com/ki1r0y/gallery/common/store"
)

// fixture wires the services over in-process backends.
type fixture struct {
	store        store.Store
	index        *identity.Index
	members      *MemberService
	compositions *CompositionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()

	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	blobs, err := blob.New(t.TempDir(), log)
	if err != nil {
		t.Fatal(err)
	}
	ch := cache.NewMemoryCache(log)
	t.Cleanup(func() { ch.Close() })

	ix := identity.New(st, identity.DefaultThrottle(), log)
	hl := hotlist.New(st, ch, log)

	return &fixture{
		store:        st,
		index:        ix,
		members:      NewMemberService(st, ix, blobs, "test-secret", log),
		compositions: NewCompositionService(st, ix, blobs, hl, score.DefaultHalfLife, log),
	}
}

func memberForm(username string) map[string]string {
	return map[string]string{
		"username": username,
		"title":    "A Member",
		"email":    username + "@example.com",
	}
}

func TestMemberCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idtag, member, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if idtag == "" {
		t.Fatal("expected an idtag")
	}
	if member.PasswordHash == "" || member.PasswordHash == "pw" {
		t.Error("password must be stored hashed")
	}

	gotID, got, err := f.members.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if gotID != idtag || got.Username != "alice" {
		t.Errorf("resolved %q/%q, want %q/alice", gotID, got.Username, idtag)
	}
}

func TestMemberCreate_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name             string
		fields           map[string]string
		password, repeat string
	}{
		{"missing username", map[string]string{"title": "T", "email": "e@x"}, "pw", "pw"},
		{"missing title", map[string]string{"username": "u", "email": "e@x"}, "pw", "pw"},
		{"missing email", map[string]string{"username": "u", "title": "T"}, "pw", "pw"},
		{"missing password", memberForm("u"), "", ""},
		{"password mismatch", memberForm("u"), "pw", "other"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.members.Create(ctx, tc.fields, tc.password, tc.repeat, nil)
			if !apperr.IsBadInput(err) {
				t.Errorf("expected bad-input, got %v", err)
			}
		})
	}
}

func TestMemberCreate_UsernameConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil); err != nil {
		t.Fatal(err)
	}
	_, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict on the second alice, got %v", err)
	}
}

func TestMemberCreate_NormalizesUsername(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fields := memberForm("ignored")
	fields["username"] = "  Alice   Smith "
	_, member, err := f.members.Create(ctx, fields, "pw", "pw", nil)
	if err != nil {
		t.Fatal(err)
	}
	if member.Username != "Alice Smith" {
		t.Errorf("Username = %q, want whitespace collapsed", member.Username)
	}
}

func TestMemberCreate_RejectedPictureKeepsUsernameFree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A bad upload fails the whole creation before anything is claimed.
	bad := &Upload{Data: []byte("x"), Extension: ".png", MimeType: "image/jpeg"}
	_, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", bad)
	if !apperr.IsBadInput(err) {
		t.Fatalf("expected bad-input, got %v", err)
	}

	// The username is still free for a corrected retry.
	if _, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil); err != nil {
		t.Errorf("retry after a rejected upload must succeed: %v", err)
	}
}

func TestMemberAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idtag, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if err != nil {
		t.Fatal(err)
	}

	gotID, _, err := f.members.Authenticate(ctx, "alice", "pw")
	if err != nil || gotID != idtag {
		t.Errorf("Authenticate = %q, %v; want %q, nil", gotID, err, idtag)
	}

	_, _, err = f.members.Authenticate(ctx, "alice", "wrong")
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("wrong password: expected forbidden, got %v", err)
	}

	_, _, err = f.members.Authenticate(ctx, "nobody", "pw")
	if !apperr.IsNotFound(err) {
		t.Errorf("unknown username: expected not-found, got %v", err)
	}
}

func TestMemberUpdate_MergesFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idtag, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Only the submitted fields change; a present-but-empty field clears.
	updated, err := f.members.Update(ctx, idtag, map[string]string{
		"description": "painter",
		"website":     "",
	}, "", "", nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Description != "painter" {
		t.Errorf("Description = %q, want painter", updated.Description)
	}
	if updated.Title != "A Member" {
		t.Errorf("unsubmitted Title must survive, got %q", updated.Title)
	}
	if updated.Website != "" {
		t.Errorf("submitted-empty Website must clear, got %q", updated.Website)
	}
}

func TestMemberUpdate_Rename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idtag, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := f.members.Update(ctx, idtag, map[string]string{"username": "alicia"}, "", "", nil)
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if updated.Username != "alicia" {
		t.Errorf("Username = %q, want alicia", updated.Username)
	}

	if _, _, err := f.members.GetByUsername(ctx, "alicia"); err != nil {
		t.Errorf("new username must resolve: %v", err)
	}
	if _, _, err := f.members.GetByUsername(ctx, "alice"); !apperr.IsNotFound(err) {
		t.Errorf("old username must stop resolving, got %v", err)
	}

	// Both names authorize, and the old credentials still work against
	// the new username.
	for _, name := range []string{"alice", "alicia"} {
		ok, err := f.members.Authorizes(ctx, idtag, name)
		if err != nil || !ok {
			t.Errorf("Authorizes(%q) = %v, %v; want true", name, ok, err)
		}
	}
	if _, _, err := f.members.Authenticate(ctx, "alicia", "pw"); err != nil {
		t.Errorf("credentials must survive a rename: %v", err)
	}
}

func TestMemberUpdate_SecondRenameThrottled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idtag, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.members.Update(ctx, idtag, map[string]string{"username": "alicia"}, "", "", nil); err != nil {
		t.Fatal(err)
	}

	// Immediately renaming again violates the hour interval.
	_, err = f.members.Update(ctx, idtag, map[string]string{"username": "alba"}, "", "", nil)
	if !apperr.IsRateLimited(err) {
		t.Errorf("expected rate-limited, got %v", err)
	}
}

func TestMemberUpdate_ChangesPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idtag, _, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.members.Update(ctx, idtag, nil, "next", "next", nil); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.members.Authenticate(ctx, "alice", "next"); err != nil {
		t.Errorf("new password must authenticate: %v", err)
	}
	if _, _, err := f.members.Authenticate(ctx, "alice", "pw"); err == nil {
		t.Error("old password must stop authenticating")
	}
}

func TestMemberPicture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	upload := &Upload{Data: []byte("img-bytes"), Extension: ".png", MimeType: "image/png"}
	idtag, member, err := f.members.Create(ctx, memberForm("alice"), "pw", "pw", upload)
	if err != nil {
		t.Fatal(err)
	}
	if member.Picture == "" {
		t.Fatal("expected a picture blob id")
	}

	next := &Upload{Data: []byte("other-bytes"), Extension: ".png", MimeType: "image/png"}
	updated, err := f.members.Update(ctx, idtag, nil, "", "", next)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Picture == member.Picture || updated.Picture == "" {
		t.Errorf("picture must be replaced, got %q", updated.Picture)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  alice  ":      "alice",
		"a \t b\n c":     "a b c",
		"":               "",
		"   ":            "",
		"café":      "café", // NFKD decomposes the accent
		"ﬁne":       "fine",       // ligature folds to letters
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
