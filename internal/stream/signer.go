package stream

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL bounds how long a playback token stays valid.
	DefaultTokenTTL = time.Hour

	// notBeforeSkew tolerates clock drift between us and the delivery edge.
	notBeforeSkew = 5 * time.Second
)

// Signer issues short-lived RS256 playback tokens scoped to one asset.
type Signer struct {
	cfg *Config

	once   sync.Once
	key    *rsa.PrivateKey
	keyErr error
}

func NewSigner(cfg *Config) *Signer {
	return &Signer{cfg: cfg}
}

// Sign returns a token whose subject is the asset id. The signing key id
// goes in the token header, not the payload, so the delivery edge can select
// the right public key without decoding the claims first.
func (s *Signer) Sign(assetID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	key, err := s.privateKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": assetID,
		"exp": now.Add(ttl).Unix(),
		"nbf": now.Add(-notBeforeSkew).Unix(),
	})
	token.Header["kid"] = s.cfg.SigningKeyID

	return token.SignedString(key)
}

func (s *Signer) privateKey() (*rsa.PrivateKey, error) {
	s.once.Do(func() {
		s.key, s.keyErr = loadPrivateKey(s.cfg.SigningKey, s.cfg.SigningKeyID)
	})
	return s.key, s.keyErr
}

// loadPrivateKey is tolerant about the key material: a raw PEM block is
// taken as-is, anything else is tried as base64-encoded PEM.
func loadPrivateKey(material, keyID string) (*rsa.PrivateKey, error) {
	material = strings.TrimSpace(material)
	if material == "" || keyID == "" {
		return nil, ErrSigningKeyUnavailable
	}

	pemBytes := []byte(material)
	if !strings.Contains(material, "PRIVATE KEY") {
		decoded, err := base64.StdEncoding.DecodeString(material)
		if err != nil {
			return nil, fmt.Errorf("%w: key is neither PEM nor base64: %v", ErrSigningKeyUnavailable, err)
		}
		pemBytes = decoded
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	return key, nil
}
