package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Codec is the reversible transform applied to text content at the storage
// boundary.
type Codec interface {
	Encode(plain string) (string, error)
	Decode(stored string) (string, error)
}

// AESCodec seals content with AES-256-GCM and stores base64(nonce||ciphertext).
type AESCodec struct {
	aead cipher.AEAD
}

// NewAESCodec derives a 32 byte key from secret with HKDF-SHA256.
func NewAESCodec(secret string) (*AESCodec, error) {
	if secret == "" {
		return nil, errors.New("content secret is empty")
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("messenger-service/content"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive content key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESCodec{aead: aead}, nil
}

func (c *AESCodec) Encode(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESCodec) Decode(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return "", ErrCiphertextTooShort
	}
	plain, err := c.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open content: %w", err)
	}
	return string(plain), nil
}

// NopCodec stores content as-is.
type NopCodec struct{}

func (NopCodec) Encode(plain string) (string, error)  { return plain, nil }
func (NopCodec) Decode(stored string) (string, error) { return stored, nil }
