package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of a locally issued token.
const DefaultTokenTTL = 30 * 24 * time.Hour

// LocalTokens issues and verifies HS256 tokens for accounts registered with a password.
type LocalTokens struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

func NewLocalTokens(secret string, ttl time.Duration) (*LocalTokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be set")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &LocalTokens{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithLeeway(defaultLeeway),
			jwt.WithExpirationRequired(),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		),
		now: time.Now,
	}, nil
}

// Issue signs a token for userID.
func (l *LocalTokens) Issue(userID string) (string, error) {
	now := l.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"iat": now.Unix(),
		"exp": now.Add(l.ttl).Unix(),
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (l *LocalTokens) Verify(tokenString string) (*Claims, error) {
	token, err := l.parser.Parse(tokenString, func(*jwt.Token) (any, error) {
		return l.secret, nil
	})
	if err != nil {
		return nil, err
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	id := readString(mapClaims, "id")
	if id == "" {
		return nil, errors.New("token missing id")
	}
	return &Claims{
		Subject:   id,
		Issuer:    "local",
		ExpiresAt: readExpiry(mapClaims["exp"]),
		Raw:       mapClaims,
	}, nil
}
