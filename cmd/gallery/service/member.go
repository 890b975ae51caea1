package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/blob"
	"github.com/ki1r0y/gallery/common/identity"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/models"
	"github.com/ki1r0y/gallery/common/store"
)

// memberFields are the free-form profile attributes merged on update.
// Username is handled separately through the identity index.
var memberFields = []string{"title", "description", "website", "email"}

// MemberService creates, updates, fetches, and authenticates members.
type MemberService struct {
	store store.Store
	index *identity.Index
	blobs *blob.Store
	log   *logger.Logger

	secret string
	now    func() time.Time
}

// NewMemberService creates a new member service. secret keys the password
// hash HMAC.
func NewMemberService(st store.Store, ix *identity.Index, blobs *blob.Store, secret string, log *logger.Logger) *MemberService {
	return &MemberService{
		store:  st,
		index:  ix,
		blobs:  blobs,
		log:    log,
		secret: secret,
		now:    time.Now,
	}
}

// passwordHash derives the stored credential from the password and the
// member's idtag, keyed by the service secret. Salting with the idtag makes
// equal passwords hash differently per member.
func (s *MemberService) passwordHash(password, idtag string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(password))
	mac.Write([]byte(idtag))
	return hex.EncodeToString(mac.Sum(nil))
}

// Create registers a new member: assigns an idtag, claims the username
// globally, stores an optional picture, and writes the member record. The
// claim lands before the record; a crash in between leaves a claim whose
// name does not resolve until the record is written, which is the accepted
// cross-key gap.
func (s *MemberService) Create(ctx context.Context, fields map[string]string, password, repeatPassword string, picture *Upload) (string, *models.Member, error) {
	username := Normalize(fields["username"])
	password = Normalize(password)
	if password != Normalize(repeatPassword) {
		return "", nil, apperr.BadInput("password does not match")
	}

	member := &models.Member{
		Username:    username,
		Title:       Normalize(fields["title"]),
		Description: Normalize(fields["description"]),
		Website:     Normalize(fields["website"]),
		Email:       Normalize(fields["email"]),
	}
	if username == "" || member.Title == "" || member.Email == "" || password == "" {
		return "", nil, apperr.BadInput("missing required data: username, title, email, and password are all needed")
	}

	idtag := uuid.NewString()
	member.PasswordHash = s.passwordHash(password, idtag)
	member.Created = s.now().UnixMilli()

	// The picture is validated and stored before the claim, so a rejected
	// upload cannot leave a claimed username with no record behind it.
	if picture != nil {
		blobID, err := s.blobs.Replace(ctx, "", picture.Data, picture.Extension, picture.MimeType)
		if err != nil {
			return "", nil, err
		}
		member.Picture = blobID
	}

	if err := s.index.Claim(ctx, identity.Members(), username, idtag); err != nil {
		return "", nil, err
	}

	doc, err := json.Marshal(member)
	if err != nil {
		return "", nil, apperr.Storage(err, "encode member %s", idtag)
	}
	if err := s.store.Set(ctx, store.MemberKey(idtag), doc); err != nil {
		return "", nil, err
	}

	s.log.Info("member created", "member_id", idtag, "username", username)
	return idtag, member, nil
}

// Update mutates a member record. Profile attributes are merge-patched; a
// changed username goes through the throttled rename path; an accompanying
// picture replaces the old blob before the new reference is committed.
func (s *MemberService) Update(ctx context.Context, idtag string, fields map[string]string, password, repeatPassword string, picture *Upload) (*models.Member, error) {
	current, err := s.Get(ctx, idtag)
	if err != nil {
		return nil, err
	}

	var newHash string
	if password != "" || repeatPassword != "" {
		password = Normalize(password)
		if password != Normalize(repeatPassword) {
			return nil, apperr.BadInput("password does not match")
		}
		newHash = s.passwordHash(password, idtag)
	}

	newUsername := Normalize(fields["username"])
	renaming := newUsername != "" && newUsername != current.Username
	if renaming {
		if err := s.index.Rename(ctx, identity.Members(), newUsername, idtag); err != nil {
			return nil, err
		}
	}

	// Blob write happens before the reference is committed; a failure here
	// aborts with no reference recorded.
	newPicture := ""
	if picture != nil && len(picture.Data) > 0 {
		newPicture, err = s.blobs.Replace(ctx, current.Picture, picture.Data, picture.Extension, picture.MimeType)
		if err != nil {
			return nil, err
		}
	}

	patch := normalizeAllowed(memberFields, fields)
	patchDoc, err := json.Marshal(patch)
	if err != nil {
		return nil, apperr.Storage(err, "encode member patch")
	}

	final, err := s.store.Update(ctx, store.MemberKey(idtag), func(doc store.Document, exists bool) (store.Document, bool, error) {
		if !exists {
			return nil, false, apperr.NotFound("unknown member %s", idtag)
		}
		merged, err := jsonpatch.MergePatch([]byte(doc), patchDoc)
		if err != nil {
			return nil, false, apperr.Storage(err, "merge member %s", idtag)
		}
		var m models.Member
		if err := json.Unmarshal(merged, &m); err != nil {
			return nil, false, apperr.Storage(err, "decode member %s", idtag)
		}
		if renaming {
			m.ApplyRename(newUsername, s.now())
		}
		if newHash != "" {
			m.PasswordHash = newHash
		}
		if newPicture != "" {
			m.Picture = newPicture
		}
		next, err := json.Marshal(&m)
		if err != nil {
			return nil, false, apperr.Storage(err, "encode member %s", idtag)
		}
		return next, true, nil
	})
	if err != nil {
		return nil, err
	}

	var updated models.Member
	if err := json.Unmarshal(final, &updated); err != nil {
		return nil, apperr.Storage(err, "decode member %s", idtag)
	}
	s.log.Info("member updated", "member_id", idtag, "renamed", renaming)
	return &updated, nil
}

// Get loads a member record by idtag.
func (s *MemberService) Get(ctx context.Context, idtag string) (*models.Member, error) {
	doc, err := s.store.Get(ctx, store.MemberKey(idtag))
	if err != nil {
		return nil, err
	}
	var m models.Member
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, apperr.Storage(err, "decode member %s", idtag)
	}
	return &m, nil
}

// GetByUsername resolves a current username and loads the member.
func (s *MemberService) GetByUsername(ctx context.Context, username string) (string, *models.Member, error) {
	idtag, err := s.index.Resolve(ctx, identity.Members(), username)
	if err != nil {
		return "", nil, err
	}
	m, err := s.Get(ctx, idtag)
	if err != nil {
		return "", nil, err
	}
	return idtag, m, nil
}

// Authenticate checks credentials against a current username. It returns
// the member and idtag on success, or Forbidden on a credential mismatch.
func (s *MemberService) Authenticate(ctx context.Context, username, password string) (string, *models.Member, error) {
	idtag, m, err := s.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if !hmac.Equal([]byte(m.PasswordHash), []byte(s.passwordHash(password, idtag))) {
		return "", nil, apperr.Forbidden("invalid credentials for %s", username)
	}
	return idtag, m, nil
}

// Authorizes reports whether the member identified by idtag is addressed by
// name, the current username or any former one.
func (s *MemberService) Authorizes(ctx context.Context, idtag, name string) (bool, error) {
	return s.index.AuthorizesName(ctx, identity.Members(), idtag, name)
}
