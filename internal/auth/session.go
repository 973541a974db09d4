// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
)

// Sessions signs and verifies ed25519 session tokens whose "sub" is the user ID.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// expiry of zero means tokens carry no exp claim.
	expiry time.Duration
	now    func() time.Time
}

// NewSessions generates a fresh ed25519 key pair at runtime.
func NewSessions(expiry time.Duration) (*Sessions, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: priv, publicKey: pub, expiry: expiry, now: time.Now}, nil
}

// NewSessionsFromPath reads raw ed25519 private/public keys from file.
func NewSessionsFromPath(privatePath, publicPath string, expiry time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("key files must hold raw ed25519 keys (%d and %d bytes)", ed25519.PrivateKeySize, ed25519.PublicKeySize)
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expiry:     expiry,
		now:        time.Now,
	}, nil
}

// CreateJWT creates a signed token with "sub" = userID and, when an expiry
// is configured, "exp" = now + expiry.
func (s *Sessions) CreateJWT(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": s.now().Unix(),
	}
	if s.expiry > 0 {
		claims["exp"] = s.now().Add(s.expiry).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// AuthenticateJWT verifies a token and returns its subject. Every failure is Unauthorized.
func (s *Sessions) AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "missing session token")
	}
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.Unauthorized, err, "invalid session token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "missing sub in jwt")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.Unauthorized, err, "sub is not a user id")
	}
	return userID, nil
}
