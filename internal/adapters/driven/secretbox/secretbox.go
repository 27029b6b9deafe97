// Package secretbox encrypts credential secrets at rest with AES-256-GCM.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// secretVersion is the version byte for the encrypted blob format.
	secretVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// KeySize is the required key size for AES-256
	KeySize = 32

	// hkdfInfo separates the derived key from other uses of the master secret
	hkdfInfo = "marketlink credential secrets v1"
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported secret blob version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key, corrupted
	// data or a blob moved to another credential).
	ErrDecryptionFailed = errors.New("failed to decrypt secret blob")

	// ErrEmptyMasterKey is returned by DeriveKey for an empty secret.
	ErrEmptyMasterKey = errors.New("encryption master key is empty")
)

// DeriveKey turns an operator-supplied master secret into an AES-256 key.
// A base64 value that decodes to exactly 32 bytes is used as is; anything
// else is stretched with HKDF-SHA256.
func DeriveKey(master string) ([]byte, error) {
	if master == "" {
		return nil, ErrEmptyMasterKey
	}
	if raw, err := base64.StdEncoding.DecodeString(master); err == nil && len(raw) == KeySize {
		return raw, nil
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(master), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// SecretEncryptor handles AES-256-GCM encryption/decryption of secrets.
// The encrypted format is: version(1) || nonce(12) || ciphertext(N)
type SecretEncryptor struct {
	gcm cipher.AEAD
}

// NewSecretEncryptor creates a new encryptor with the given 32-byte key.
func NewSecretEncryptor(key []byte) (*SecretEncryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &SecretEncryptor{gcm: gcm}, nil
}

// NewFromMasterKey derives a key from master and creates an encryptor.
func NewFromMasterKey(master string) (*SecretEncryptor, error) {
	key, err := DeriveKey(master)
	if err != nil {
		return nil, err
	}
	return NewSecretEncryptor(key)
}

// Encrypt JSON-marshals value and seals it. aad binds the blob to its owner,
// typically the credential key, and must be passed again to Decrypt.
func (e *SecretEncryptor) Encrypt(value any, aad string) ([]byte, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, plaintext, []byte(aad))

	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = secretVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return blob, nil
}

// Decrypt opens a blob sealed with the same aad and unmarshals it into value.
func (e *SecretEncryptor) Decrypt(blob []byte, aad string, value any) error {
	minSize := 1 + nonceSize + e.gcm.Overhead()
	if len(blob) < minSize {
		return ErrInvalidBlobSize
	}

	version := blob[0]
	if version != secretVersion {
		return fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, version)
	}

	nonce := blob[1 : 1+nonceSize]
	ciphertext := blob[1+nonceSize:]

	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return ErrDecryptionFailed
	}

	if err := json.Unmarshal(plaintext, value); err != nil {
		return fmt.Errorf("unmarshal decrypted value: %w", err)
	}

	return nil
}

// EncryptSecrets seals a credential secret map.
func (e *SecretEncryptor) EncryptSecrets(secrets map[string]string, aad string) ([]byte, error) {
	if secrets == nil {
		secrets = map[string]string{}
	}
	return e.Encrypt(secrets, aad)
}

// DecryptSecrets opens a credential secret map.
func (e *SecretEncryptor) DecryptSecrets(blob []byte, aad string) (map[string]string, error) {
	secrets := map[string]string{}
	if err := e.Decrypt(blob, aad, &secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}
