package security

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := ParseKeyHex(strings.Repeat("0f", KeySize))
	if err != nil {
		t.Fatalf("ParseKeyHex: %v", err)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := testCipher(t)
	for _, p := range []string{"", "hunter2", "pässwörd ✓", strings.Repeat("x", 4096)} {
		f, err := c.Encrypt(p)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", p, err)
		}
		got, err := c.Decrypt(f)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != p {
			t.Errorf("round trip: want %q, got %q", p, got)
		}
	}
}

func TestCipher_SerializedRoundTrip(t *testing.T) {
	c := testCipher(t)
	s, err := c.EncryptString("hunter2")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if n := strings.Count(s, ":"); n != 2 {
		t.Fatalf("serialized form should have 2 separators, got %d in %q", n, s)
	}
	got, err := c.DecryptString(s)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("want hunter2, got %q", got)
	}
}

func TestCipher_CorruptedCiphertextByte(t *testing.T) {
	c := testCipher(t)
	s, err := c.EncryptString("hunter2")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	parts := strings.Split(s, ":")
	ct, _ := hex.DecodeString(parts[2])
	ct[0] ^= 0xff
	parts[2] = hex.EncodeToString(ct)
	_, err = c.DecryptString(strings.Join(parts, ":"))
	if !errors.Is(err, ErrTamperedOrCorrupt) {
		t.Fatalf("want ErrTamperedOrCorrupt, got %v", err)
	}
}

func TestCipher_AnyBitFlipFails(t *testing.T) {
	c := testCipher(t)
	f, err := c.Encrypt("correct horse battery staple")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	flip := func(b []byte, bit int) []byte {
		out := bytes.Clone(b)
		out[bit/8] ^= 1 << (bit % 8)
		return out
	}
	for bit := 0; bit < len(f.Ciphertext)*8; bit++ {
		g := EncryptedField{IV: f.IV, AuthTag: f.AuthTag, Ciphertext: flip(f.Ciphertext, bit)}
		if _, err := c.Decrypt(g); !errors.Is(err, ErrTamperedOrCorrupt) {
			t.Fatalf("ciphertext bit %d: want ErrTamperedOrCorrupt, got %v", bit, err)
		}
	}
	for bit := 0; bit < TagSize*8; bit++ {
		g := EncryptedField{IV: f.IV, AuthTag: flip(f.AuthTag, bit), Ciphertext: f.Ciphertext}
		if _, err := c.Decrypt(g); !errors.Is(err, ErrTamperedOrCorrupt) {
			t.Fatalf("tag bit %d: want ErrTamperedOrCorrupt, got %v", bit, err)
		}
	}
}

func TestCipher_IVUniqueness(t *testing.T) {
	c := testCipher(t)
	const trials = 10000
	seen := make(map[string]struct{}, trials)
	var prev string
	for i := 0; i < trials; i++ {
		f, err := c.Encrypt("same plaintext")
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		iv := string(f.IV)
		if _, dup := seen[iv]; dup {
			t.Fatalf("IV collision after %d trials", i)
		}
		seen[iv] = struct{}{}
		s := f.String()
		if s == prev {
			t.Fatal("two encryptions of the same plaintext produced identical fields")
		}
		prev = s
	}
}

func TestParseEncryptedField_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"two parts", "aa:bb"},
		{"four parts", "a:b:c:d"},
		{"non hex iv", strings.Repeat("zz", IVSize) + ":" + strings.Repeat("00", TagSize) + ":00"},
		{"short iv", "00:" + strings.Repeat("00", TagSize) + ":00"},
		{"short tag", strings.Repeat("00", IVSize) + ":00:00"},
		{"non hex ciphertext", strings.Repeat("00", IVSize) + ":" + strings.Repeat("00", TagSize) + ":xyz"},
	}
	c := testCipher(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.DecryptString(tt.in); !errors.Is(err, ErrMalformedInput) {
				t.Errorf("want ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestCipher_WrongKey(t *testing.T) {
	c := testCipher(t)
	s, _ := c.EncryptString("hunter2")
	other, err := NewCipher(bytes.Repeat([]byte{1}, KeySize))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	if _, err := other.DecryptString(s); !errors.Is(err, ErrTamperedOrCorrupt) {
		t.Errorf("want ErrTamperedOrCorrupt with wrong key, got %v", err)
	}
}

func TestNewCipher_KeyLength(t *testing.T) {
	if _, err := NewCipher(make([]byte, 16)); !errors.Is(err, ErrInvalidCipherKey) {
		t.Errorf("16-byte key: want ErrInvalidCipherKey, got %v", err)
	}
	if _, err := ParseKeyHex("abcd"); !errors.Is(err, ErrInvalidCipherKey) {
		t.Errorf("short hex key: want ErrInvalidCipherKey, got %v", err)
	}
	if _, err := ParseKeyHex("not-hex"); err == nil {
		t.Error("non-hex key should fail")
	}
}
