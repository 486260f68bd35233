// Package crypto provides AES-256-GCM encryption for client integration
// credentials stored at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const ivLength = 16

// ErrInvalidPayload is returned when a ciphertext payload does not have the
// expected iv:ciphertext:tag shape.
var ErrInvalidPayload = eris.New("crypto: invalid encrypted payload format")

// Encryptor is the opaque encrypt/decrypt capability consumed by the
// ingestion layer. Payloads are hex triples "iv:ciphertext:tag".
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(payload string) (string, error)
}

// AESGCM implements Encryptor with AES-256-GCM and a random IV per message.
type AESGCM struct {
	aead cipher.AEAD
}

// New creates an AESGCM from a 64-character hex key (32 bytes).
func New(hexKey string) (*AESGCM, error) {
	if len(hexKey) != 64 {
		return nil, eris.New("crypto: key must be a 64-character hex string")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, eris.Wrap(err, "crypto: decode key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, eris.Wrap(err, "crypto: create cipher")
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, eris.Wrap(err, "crypto: create gcm")
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random IV. Two encryptions of the same
// plaintext yield different payloads.
func (a *AESGCM) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", eris.Wrap(err, "crypto: generate iv")
	}
	sealed := a.aead.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - a.aead.Overhead()
	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(sealed[:tagStart]),
		hex.EncodeToString(sealed[tagStart:]),
	}, ":"), nil
}

// Decrypt opens an iv:ciphertext:tag payload. A malformed payload returns
// ErrInvalidPayload; a wrong key or tampered payload returns an
// authentication error.
func (a *AESGCM) Decrypt(payload string) (string, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return "", ErrInvalidPayload
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return "", ErrInvalidPayload
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidPayload
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != a.aead.Overhead() {
		return "", ErrInvalidPayload
	}
	plaintext, err := a.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", eris.Wrap(err, "crypto: authentication failed")
	}
	return string(plaintext), nil
}
