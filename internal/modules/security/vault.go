package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize       = 16
	kdfIterations  = 480000
	derivedKeySize = 32
)

// Vault encrypts and decrypts small payloads with a key derived from the
// master secret and a locally persisted random salt. The salt file is
// created once on first use with owner-only permissions.
type Vault struct {
	key []byte
}

// NewVault initializes the vault, creating the secure directory and the
// salt file if they do not exist yet.
func NewVault(secureDir, masterSecret string) (*Vault, error) {
	if err := os.MkdirAll(secureDir, 0700); err != nil {
		return nil, oops.With("secure_dir", secureDir, "context", "failed to create secure directory").Wrap(err)
	}

	saltPath := filepath.Join(secureDir, "salt.secure")
	salt, err := os.ReadFile(saltPath)
	if os.IsNotExist(err) {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, oops.With("context", "failed to generate salt").Wrap(err)
		}
		if err := os.WriteFile(saltPath, salt, 0600); err != nil {
			return nil, oops.With("salt_path", saltPath, "context", "failed to persist salt").Wrap(err)
		}
	} else if err != nil {
		return nil, oops.With("salt_path", saltPath, "context", "failed to read salt").Wrap(err)
	}
	if len(salt) != saltSize {
		return nil, oops.With("salt_path", saltPath).Errorf("salt file has invalid length %d", len(salt))
	}

	key := pbkdf2.Key([]byte(masterSecret), salt, kdfIterations, derivedKeySize, sha256.New)
	return &Vault{key: key}, nil
}

// Encrypt seals the payload with AES-GCM. The random nonce is prepended
// to the returned ciphertext.
func (v *Vault) Encrypt(payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, oops.With("context", "failed to generate nonce").Wrap(err)
	}
	return append(nonce, gcm.Seal(nil, nonce, payload, nil)...), nil
}

// Decrypt opens a nonce-prefixed ciphertext. It fails closed: any tamper
// or malformed input yields an error and no partial plaintext.
func (v *Vault) Decrypt(blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	if len(blob) < gcm.NonceSize() {
		return nil, oops.Errorf("ciphertext too short")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	payload, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, oops.With("context", "decryption failed").Wrap(err)
	}
	return payload, nil
}
