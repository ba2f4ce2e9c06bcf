// Package vault seals vault entries with the secret cipher before they reach storage.
package vault

import (
	"fmt"

	"secret-vault/backend/internal/vault/domain"
)

// FieldCipher encrypts single string fields into self-describing envelopes.
type FieldCipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(envelope string) (string, error)
}

// Sealer converts between Entry and SealedEntry. Only Password and Notes are encrypted;
// title, website and username stay searchable.
type Sealer struct {
	cipher FieldCipher
}

// NewSealer returns a Sealer over c.
func NewSealer(c FieldCipher) *Sealer {
	return &Sealer{cipher: c}
}

// Seal encrypts the secret fields of e. Empty notes are stored empty.
func (s *Sealer) Seal(e domain.Entry) (domain.SealedEntry, error) {
	password, err := s.cipher.EncryptString(e.Password)
	if err != nil {
		return domain.SealedEntry{}, fmt.Errorf("seal password: %w", err)
	}
	notes, err := s.sealOptional(e.Notes)
	if err != nil {
		return domain.SealedEntry{}, fmt.Errorf("seal notes: %w", err)
	}
	return domain.SealedEntry{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Website:   e.Website,
		Username:  e.Username,
		Password:  password,
		Notes:     notes,
		Category:  e.Category,
		Favorite:  e.Favorite,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

// Open decrypts the secret fields of se. A field that fails authentication returns the
// cipher error and no plaintext.
func (s *Sealer) Open(se domain.SealedEntry) (domain.Entry, error) {
	password, err := s.cipher.DecryptString(se.Password)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("open entry %s password: %w", se.ID, err)
	}
	var notes string
	if se.Notes != "" {
		if notes, err = s.cipher.DecryptString(se.Notes); err != nil {
			return domain.Entry{}, fmt.Errorf("open entry %s notes: %w", se.ID, err)
		}
	}
	return domain.Entry{
		ID:        se.ID,
		UserID:    se.UserID,
		Title:     se.Title,
		Website:   se.Website,
		Username:  se.Username,
		Password:  password,
		Notes:     notes,
		Category:  se.Category,
		Favorite:  se.Favorite,
		CreatedAt: se.CreatedAt,
		UpdatedAt: se.UpdatedAt,
	}, nil
}

// SealNotes encrypts notes for a partial update.
func (s *Sealer) SealNotes(notes string) (string, error) {
	return s.sealOptional(notes)
}

// SealPassword encrypts a password for a partial update.
func (s *Sealer) SealPassword(password string) (string, error) {
	return s.cipher.EncryptString(password)
}

func (s *Sealer) sealOptional(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	return s.cipher.EncryptString(v)
}
