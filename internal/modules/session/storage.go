package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"promowatch/internal/modules/security"
)

// SessionTTL is how long a persisted session stays usable. Older blobs
// are treated as absent.
const SessionTTL = 7 * 24 * time.Hour

type sessionPayload struct {
	Session   string    `json:"session"`
	CreatedAt time.Time `json:"created_at"`
	Identity  string    `json:"identity"`
}

// Storage persists encrypted session blobs under the secure directory,
// one file per identity hash. The identity itself is never written in
// clear.
type Storage struct {
	dir   string
	vault *security.Vault
	now   func() time.Time
}

func NewStorage(secureDir string, vault *security.Vault) (*Storage, error) {
	dir := filepath.Join(secureDir, "sessions")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, oops.With("dir", dir, "context", "failed to create session directory").Wrap(err)
	}
	return &Storage{dir: dir, vault: vault, now: time.Now}, nil
}

// Save encrypts and persists the session string with the current
// timestamp. The blob is written to a temporary file and renamed so a
// concurrent reader never sees a partial write.
func (s *Storage) Save(identity, sessionString string) error {
	payload, err := json.Marshal(sessionPayload{
		Session:   sessionString,
		CreatedAt: s.now(),
		Identity:  identity,
	})
	if err != nil {
		return oops.With("context", "failed to marshal session payload").Wrap(err)
	}

	blob, err := s.vault.Encrypt(payload)
	if err != nil {
		return oops.With("context", "failed to encrypt session").Wrap(err)
	}

	path := s.path(identity)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return oops.With("path", tmp, "context", "failed to write session file").Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return oops.With("path", path, "context", "failed to replace session file").Wrap(err)
	}
	return nil
}

// Load returns the stored session string for the identity, or false when
// there is no file, the blob cannot be decrypted, or the session is past
// its TTL. Decryption failures are treated as an absent session, never as
// partial plaintext.
func (s *Storage) Load(identity string) (string, bool) {
	blob, err := os.ReadFile(s.path(identity))
	if err != nil {
		return "", false
	}

	data, err := s.vault.Decrypt(blob)
	if err != nil {
		slog.Warn("Stored session failed to decrypt, treating as absent", "error", err)
		return "", false
	}

	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Warn("Stored session payload malformed, treating as absent", "error", err)
		return "", false
	}

	if s.now().Sub(payload.CreatedAt) > SessionTTL {
		slog.Warn("Stored session expired", "created_at", payload.CreatedAt)
		return "", false
	}

	return payload.Session, true
}

// Clear deletes the stored session for the identity.
func (s *Storage) Clear(identity string) error {
	err := os.Remove(s.path(identity))
	if err != nil && !os.IsNotExist(err) {
		return oops.With("identity_hash", identityHash(identity)).Wrap(err)
	}
	return nil
}

func (s *Storage) path(identity string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.session", identityHash(identity)))
}

func identityHash(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}
