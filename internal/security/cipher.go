package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length used for every field. GCM accepts 16-byte nonces;
	// stored values depend on this length so it must not change.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16

	fieldSeparator = ":"
)

var (
	// ErrTamperedOrCorrupt is returned when the authentication tag does not verify.
	ErrTamperedOrCorrupt = errors.New("encrypted field tampered or corrupt")
	// ErrMalformedInput is returned when a serialized field cannot be split into iv, tag and ciphertext.
	ErrMalformedInput = errors.New("malformed encrypted field")
	// ErrInvalidCipherKey is returned when the key is not 32 bytes.
	ErrInvalidCipherKey = errors.New("cipher key must be 32 bytes")
)

// EncryptedField is one AES-256-GCM sealed string value.
type EncryptedField struct {
	IV         []byte
	AuthTag    []byte
	Ciphertext []byte
}

// String serializes the field as hex(iv):hex(tag):hex(ciphertext).
func (f EncryptedField) String() string {
	return hex.EncodeToString(f.IV) + fieldSeparator +
		hex.EncodeToString(f.AuthTag) + fieldSeparator +
		hex.EncodeToString(f.Ciphertext)
}

// ParseEncryptedField parses the output of EncryptedField.String.
func ParseEncryptedField(s string) (EncryptedField, error) {
	parts := strings.Split(s, fieldSeparator)
	if len(parts) != 3 {
		return EncryptedField{}, ErrMalformedInput
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return EncryptedField{}, ErrMalformedInput
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return EncryptedField{}, ErrMalformedInput
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return EncryptedField{}, ErrMalformedInput
	}
	return EncryptedField{IV: iv, AuthTag: tag, Ciphertext: ct}, nil
}

// Cipher encrypts and decrypts individual secret fields with a process-wide key.
// The key is never exposed or logged.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher returns a Cipher for a 256-bit key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidCipherKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// ParseKeyHex decodes a hex-encoded 256-bit key as supplied by configuration.
func ParseKeyHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode cipher key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidCipherKey
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (EncryptedField, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedField{}, fmt.Errorf("generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - TagSize
	return EncryptedField{
		IV:         iv,
		AuthTag:    sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt opens a field. No partial output is returned on failure.
func (c *Cipher) Decrypt(f EncryptedField) (string, error) {
	if len(f.IV) != IVSize || len(f.AuthTag) != TagSize {
		return "", ErrMalformedInput
	}
	sealed := make([]byte, 0, len(f.Ciphertext)+TagSize)
	sealed = append(sealed, f.Ciphertext...)
	sealed = append(sealed, f.AuthTag...)
	plain, err := c.aead.Open(nil, f.IV, sealed, nil)
	if err != nil {
		return "", ErrTamperedOrCorrupt
	}
	return string(plain), nil
}

// EncryptString seals plaintext and returns its serialized form.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	f, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// DecryptString parses and opens a serialized field.
func (c *Cipher) DecryptString(s string) (string, error) {
	f, err := ParseEncryptedField(s)
	if err != nil {
		return "", err
	}
	return c.Decrypt(f)
}
