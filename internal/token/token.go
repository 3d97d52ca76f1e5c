package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const defaultTTL = 30 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type payload struct {
	UserID string `json:"user_id"`
	Exp    int64  `json:"exp"`
}

// Signer signs and verifies subscriber tokens used in unsubscribe and
// pause links. Tokens are HMAC-SHA256 over a base64url JSON payload.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), ttl: defaultTTL}
}

func (s *Signer) Sign(userID string) (string, error) {
	p := payload{
		UserID: userID,
		Exp:    time.Now().Add(s.ttl).Unix(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + s.signature(encoded), nil
}

// Verify returns the user id carried by a valid, unexpired token.
func (s *Signer) Verify(token string) (string, error) {
	encoded, sig, found := strings.Cut(token, ".")
	if !found {
		return "", ErrInvalidToken
	}

	if !hmac.Equal([]byte(s.signature(encoded)), []byte(sig)) {
		return "", ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", ErrInvalidToken
	}
	if p.UserID == "" {
		return "", ErrInvalidToken
	}
	if time.Now().Unix() > p.Exp {
		return "", ErrExpiredToken
	}

	return p.UserID, nil
}

func (s *Signer) signature(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
