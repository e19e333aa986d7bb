// Package vault protects phone numbers and SMS bodies at rest.
//
// Key material is derived from a single process-wide secret. Rotating that
// secret makes previously written ciphertext undecryptable; Decrypt then hands
// the stored text back unchanged, the same path used for legacy plaintext rows.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const (
	keyLen     = 32
	maskFiller = "*"
	encInfo    = "mfs-vault/encrypt/v1"
	hashInfo   = "mfs-vault/hash/v1"
)

var ErrEmptySecret = errors.New("vault secret must not be empty")

// Vault is safe for concurrent use.
type Vault struct {
	aead    cipher.AEAD
	hashKey []byte
}

func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	encKey, err := deriveKey(secret, encInfo)
	if err != nil {
		return nil, err
	}
	hashKey, err := deriveKey(secret, hashInfo)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	return &Vault{aead: aead, hashKey: hashKey}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, keyLen)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	return key, nil
}

// Encrypt returns base64(nonce || ciphertext) with a fresh random nonce.
func (v *Vault) Encrypt(plain string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt is tolerant: input that is not base64, is shorter than a nonce, or
// fails authentication is returned as-is.
func (v *Vault) Decrypt(blob string) string {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return blob
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns {
		return blob
	}
	plain, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return blob
	}
	return string(plain)
}

// Hash is a keyed one-way digest (hex SHA3-256), stable across calls so it can
// be used as a lookup column.
func (v *Vault) Hash(value string) string {
	h := sha3.New256()
	h.Write(v.hashKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// Mask keeps the last visible runes of value and replaces the rest.
func Mask(value string, visible int) string {
	n := utf8.RuneCountInString(value)
	if visible < 0 {
		visible = 0
	}
	if n <= visible {
		return value
	}
	runes := []rune(value)
	return strings.Repeat(maskFiller, n-visible) + string(runes[n-visible:])
}

// MaskPhone keeps the first 3 and last 4 characters.
func MaskPhone(phone string) string {
	runes := []rune(phone)
	if len(runes) <= 7 {
		return phone
	}
	return string(runes[:3]) + strings.Repeat(maskFiller, len(runes)-7) + string(runes[len(runes)-4:])
}

// GenerateToken returns byteLen random bytes, hex encoded.
func GenerateToken(byteLen int) (string, error) {
	if byteLen <= 0 {
		return "", errors.New("vault: token length must be positive")
	}
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("vault: token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
