// Package blob stores uploaded media content-addressed on the filesystem.
// A blob's id is hex(sha256(bytes)) plus its canonical extension, so
// identical uploads always land at the same path and duplicates are written
// once. There is no reference counting: deleting a blob another entity
// happens to share is a known, accepted risk.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/logger"
)

// Store is a content-addressed blob store rooted at a media directory.
type Store struct {
	root string
	log  *logger.Logger
}

// New creates the media root if needed and returns a store over it.
func New(root string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Storage(err, "create media root %s", root)
	}
	return &Store{
		root: root,
		log:  log,
	}, nil
}

// Store validates and persists an upload, returning its blob id. Identical
// bytes with an equivalent extension dedup to the same id without a second
// physical write.
func (s *Store) Store(ctx context.Context, data []byte, extension, mimeType string) (string, error) {
	ext := canonicalExtension(extension)
	mime := canonicalMimeType(mimeType)
	if mime != "image/"+strings.TrimPrefix(ext, ".") {
		return "", apperr.BadInput("file extension %q does not match mimetype %q", ext, mime)
	}

	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:]) + ext
	target := s.Path(id)

	if _, err := os.Stat(target); err == nil {
		s.log.Debug("blob already stored", "blob", id)
		return id, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", apperr.Storage(err, "stat blob %s", id)
	}

	if err := s.write(target, data); err != nil {
		return "", err
	}
	s.log.Debug("blob stored", "blob", id, "size", len(data))
	return id, nil
}

// Replace stores a new upload and best-effort deletes the superseded blob.
// When data is empty the whole operation is a no-op returning oldID, so
// callers need not special-case an edit without an accompanying upload. A
// failed cleanup of the old blob is logged and swallowed; the new blob is
// already committed.
func (s *Store) Replace(ctx context.Context, oldID string, data []byte, extension, mimeType string) (string, error) {
	if len(data) == 0 {
		return oldID, nil
	}

	id, err := s.Store(ctx, data, extension, mimeType)
	if err != nil {
		return "", err
	}

	if oldID != "" && oldID != id {
		if err := s.Remove(ctx, oldID); err != nil {
			s.log.Warn("could not remove superseded blob", "blob", oldID, "error", err)
		}
	}
	return id, nil
}

// Remove deletes a blob. Removing an absent blob returns NotFound.
func (s *Store) Remove(ctx context.Context, id string) error {
	err := os.Remove(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return apperr.NotFound("no blob %s", id)
	}
	if err != nil {
		return apperr.Storage(err, "remove blob %s", id)
	}
	return nil
}

// Path returns the filesystem path of a blob id. The id is a hash plus
// extension with no separators, so it cannot escape the root.
func (s *Store) Path(id string) string {
	return filepath.Join(s.root, filepath.Base(id))
}

// write lands bytes at target through a temp file and rename, so a reader
// never observes a half-written blob.
func (s *Store) write(target string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, "upload-*")
	if err != nil {
		return apperr.Storage(err, "create temp upload")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Storage(err, "write temp upload")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Storage(err, "close temp upload")
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return apperr.Storage(err, "land blob at %s", target)
	}
	return nil
}

// canonicalExtension lower-cases and dots the extension and folds the
// jpg/jpeg synonym pair onto jpeg.
func canonicalExtension(extension string) string {
	ext := strings.ToLower(strings.TrimSpace(extension))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == ".jpg" {
		ext = ".jpeg"
	}
	return ext
}

// canonicalMimeType lower-cases the MIME type and folds image/jpg onto
// image/jpeg.
func canonicalMimeType(mimeType string) string {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}
	return mime
}
