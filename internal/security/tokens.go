package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PurposeReset is the only purpose currently carried by purpose-scoped tokens.
const PurposeReset = "reset"

var (
	// ErrInvalidToken is returned when a token is malformed or fails issuer/audience checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrWrongPurpose is returned when a token is presented for a purpose other than the one it was issued for.
	ErrWrongPurpose = errors.New("token issued for a different purpose")
)

// Claims is the payload of both session and reset tokens. Session tokens carry
// the user id in sub and no purpose; reset tokens carry email and purpose.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// UserID returns the subject of a session token.
func (c *Claims) UserID() string { return c.Subject }

// TokenProvider issues and validates signed bearer tokens. Tokens are signed, not
// encrypted, and there is no server-side revocation: a session ends at exp or when
// the signing key is rotated.
type TokenProvider struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	issuer     string
	audience   string
	sessionTTL time.Duration
	resetTTL   time.Duration
	nowF       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, sessionTTL, resetTTL time.Duration) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:     method,
		signKey:    privateKey,
		verifyKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		nowF:       time.Now,
	}, nil
}

// NewHMACTokenProvider returns a TokenProvider that signs with HS256 using secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string, sessionTTL, resetTTL time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:     jwt.SigningMethodHS256,
		signKey:    secret,
		verifyKey:  secret,
		issuer:     issuer,
		audience:   audience,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		nowF:       time.Now,
	}, nil
}

// SetClock overrides the time source used for iat/exp and validation.
func (p *TokenProvider) SetClock(now func() time.Time) {
	p.nowF = now
}

// IssueSession issues a long-lived session token for userID.
func (p *TokenProvider) IssueSession(userID string) (token string, expiresAt time.Time, err error) {
	return p.issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}, p.sessionTTL)
}

// IssueResetToken issues a short-lived token authorizing a password reset for email.
func (p *TokenProvider) IssueResetToken(email string) (token string, expiresAt time.Time, err error) {
	return p.issue(Claims{Email: email, Purpose: PurposeReset}, p.resetTTL)
}

func (p *TokenProvider) issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF().UTC()
	expiresAt := now.Add(ttl)
	claims.ID = jti
	claims.Issuer = p.issuer
	claims.Audience = jwt.ClaimStrings{p.audience}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	token, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifySession validates a session token. Purpose-scoped tokens are rejected
// with ErrWrongPurpose.
func (p *TokenProvider) VerifySession(tokenString string) (*Claims, error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, ErrWrongPurpose
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyPurpose validates a purpose-scoped token and checks it was issued for purpose.
// An empty purpose never matches, so session tokens are always rejected here.
func (p *TokenProvider) VerifyPurpose(tokenString, purpose string) (*Claims, error) {
	if purpose == "" {
		return nil, ErrWrongPurpose
	}
	claims, err := p.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
