package service

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"
)

const (
	flagUserPresent   = 0x01
	flagUserVerified  = 0x04
	flagAttestedCreds = 0x40
)

var b64 = base64.RawURLEncoding

// virtualAuthenticator is a software platform authenticator producing "none" attestations
// and ES256 assertions.
type virtualAuthenticator struct {
	t       *testing.T
	rpID    string
	origin  string
	key     *ecdsa.PrivateKey
	credID  []byte
	counter uint32
}

func newVirtualAuthenticator(t *testing.T, rpID, origin string) *virtualAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	credID := make([]byte, 16)
	if _, err := rand.Read(credID); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return &virtualAuthenticator{t: t, rpID: rpID, origin: origin, key: key, credID: credID}
}

func (v *virtualAuthenticator) clientData(typ string, challenge []byte) []byte {
	raw, err := json.Marshal(map[string]any{
		"type":      typ,
		"challenge": b64.EncodeToString(challenge),
		"origin":    v.origin,
	})
	if err != nil {
		v.t.Fatalf("client data: %v", err)
	}
	return raw
}

func (v *virtualAuthenticator) authData(flags byte, attested []byte) []byte {
	rpHash := sha256.Sum256([]byte(v.rpID))
	out := append([]byte{}, rpHash[:]...)
	out = append(out, flags)
	out = binary.BigEndian.AppendUint32(out, v.counter)
	return append(out, attested...)
}

// coseKey encodes the public key as a COSE_Key map {1:2, 3:-7, -1:1, -2:x, -3:y}.
func (v *virtualAuthenticator) coseKey() []byte {
	x := v.key.PublicKey.X.FillBytes(make([]byte, 32))
	y := v.key.PublicKey.Y.FillBytes(make([]byte, 32))
	out := []byte{0xa5, 0x01, 0x02, 0x03, 0x26, 0x20, 0x01, 0x21, 0x58, 0x20}
	out = append(out, x...)
	out = append(out, 0x22, 0x58, 0x20)
	return append(out, y...)
}

func cborText(s string) []byte {
	return append([]byte{0x60 | byte(len(s))}, s...)
}

func cborBytes(b []byte) []byte {
	switch {
	case len(b) < 24:
		return append([]byte{0x40 | byte(len(b))}, b...)
	case len(b) < 256:
		return append([]byte{0x58, byte(len(b))}, b...)
	default:
		return append([]byte{0x59, byte(len(b) >> 8), byte(len(b))}, b...)
	}
}

// attestationResponse returns the JSON body of navigator.credentials.create() for challenge.
func (v *virtualAuthenticator) attestationResponse(challenge []byte) []byte {
	attested := make([]byte, 16) // zero AAGUID
	attested = binary.BigEndian.AppendUint16(attested, uint16(len(v.credID)))
	attested = append(attested, v.credID...)
	attested = append(attested, v.coseKey()...)
	authData := v.authData(flagUserPresent|flagUserVerified|flagAttestedCreds, attested)

	attObj := []byte{0xa3}
	attObj = append(attObj, cborText("fmt")...)
	attObj = append(attObj, cborText("none")...)
	attObj = append(attObj, cborText("attStmt")...)
	attObj = append(attObj, 0xa0)
	attObj = append(attObj, cborText("authData")...)
	attObj = append(attObj, cborBytes(authData)...)

	id := b64.EncodeToString(v.credID)
	raw, err := json.Marshal(map[string]any{
		"id":    id,
		"rawId": id,
		"type":  "public-key",
		"response": map[string]any{
			"clientDataJSON":    b64.EncodeToString(v.clientData("webauthn.create", challenge)),
			"attestationObject": b64.EncodeToString(attObj),
			"transports":        []string{"internal"},
		},
	})
	if err != nil {
		v.t.Fatalf("attestation body: %v", err)
	}
	return raw
}

// assertionResponse returns the JSON body of navigator.credentials.get() for challenge,
// signed with the current counter.
func (v *virtualAuthenticator) assertionResponse(challenge []byte) []byte {
	authData := v.authData(flagUserPresent|flagUserVerified, nil)
	clientData := v.clientData("webauthn.get", challenge)
	clientHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(append([]byte{}, authData...), clientHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, v.key, digest[:])
	if err != nil {
		v.t.Fatalf("sign: %v", err)
	}
	id := b64.EncodeToString(v.credID)
	raw, err := json.Marshal(map[string]any{
		"id":    id,
		"rawId": id,
		"type":  "public-key",
		"response": map[string]any{
			"clientDataJSON":    b64.EncodeToString(clientData),
			"authenticatorData": b64.EncodeToString(authData),
			"signature":         b64.EncodeToString(sig),
		},
	})
	if err != nil {
		v.t.Fatalf("assertion body: %v", err)
	}
	return raw
}
