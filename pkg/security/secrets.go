package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/smarter-sh/smarter/pkg/types"
)

// Manager handles encryption and decryption of secrets
type Manager struct {
	key []byte // 32 bytes for AES-256
}

// NewManager creates a new secrets manager with the given encryption key
// The key must be 32 bytes for AES-256-GCM
func NewManager(key []byte) (*Manager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d", len(key))
	}
	return &Manager{key: key}, nil
}

// NewManagerFromPassphrase creates a secrets manager using a passphrase
// The passphrase is hashed with SHA-256 to derive the encryption key
func NewManagerFromPassphrase(passphrase string) (*Manager, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	hash := sha256.Sum256([]byte(passphrase))
	return NewManager(hash[:])
}

// Encrypt encrypts plaintext using AES-256-GCM
// Returns ciphertext with the nonce prepended
func (m *Manager) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("cannot encrypt empty data")
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts data produced by Encrypt
// Expects the nonce to be prepended to the ciphertext
func (m *Manager) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("cannot decrypt empty data")
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func (m *Manager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal builds a new encrypted Secret record for an account
func (m *Manager) Seal(accountID, userID, name, description string, plaintext []byte, expiresAt time.Time) (*types.Secret, error) {
	if name == "" {
		return nil, fmt.Errorf("secret name cannot be empty")
	}

	encrypted, err := m.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	now := time.Now().UTC()
	return &types.Secret{
		ID:          SecretID(accountID, name),
		AccountID:   accountID,
		UserID:      userID,
		Name:        name,
		Description: description,
		Data:        encrypted,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Open decrypts and returns the plaintext value of a secret
func (m *Manager) Open(secret *types.Secret) ([]byte, error) {
	if secret == nil {
		return nil, fmt.Errorf("secret cannot be nil")
	}
	return m.Decrypt(secret.Data)
}

// SecretID derives a stable ID for a secret from its account and name
func SecretID(accountID, name string) string {
	hash := sha256.Sum256([]byte(accountID + "/" + name))
	return base64.URLEncoding.EncodeToString(hash[:16])
}
