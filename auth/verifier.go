// Package auth verifies Cognito access tokens via JWKS and locally issued HS256 tokens.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultLeeway = 30 * time.Second
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// CognitoVerifier validates Cognito user pool access tokens against the pool's JWKS.
type CognitoVerifier struct {
	issuer   string
	clientID string
	keyfunc  keyfunc.Keyfunc
	parser   *jwt.Parser
}

// CognitoIssuer returns the issuer URL of a user pool.
func CognitoIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// NewCognitoVerifier builds a verifier for a user pool.
func NewCognitoVerifier(region, userPoolID, clientID string) (*CognitoVerifier, error) {
	if region == "" || userPoolID == "" {
		return nil, errors.New("cognito region and user pool id must be set")
	}
	return NewVerifier(CognitoIssuer(region, userPoolID), clientID, "")
}

// NewVerifier builds a verifier with an optional JWKS URL override.
func NewVerifier(issuer, clientID, jwksURL string) (*CognitoVerifier, error) {
	issuer = strings.TrimRight(strings.TrimSpace(issuer), "/")
	if issuer == "" {
		return nil, errors.New("issuer must be set")
	}
	if clientID == "" {
		return nil, errors.New("client id must be set")
	}
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
	)

	return &CognitoVerifier{
		issuer:   issuer,
		clientID: clientID,
		keyfunc:  keyProvider,
		parser:   parser,
	}, nil
}

// Verify parses and validates an access token. Cognito access tokens carry no aud;
// the app client is checked through client_id.
func (v *CognitoVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc.Keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if use := readString(mapClaims, "token_use"); use != "access" {
		return nil, fmt.Errorf("unexpected token_use %q", use)
	}
	if readString(mapClaims, "client_id") != v.clientID {
		return nil, errors.New("token issued for another client")
	}

	claims := &Claims{
		Subject:   readString(mapClaims, "sub"),
		Username:  readString(mapClaims, "username"),
		Email:     readString(mapClaims, "email"),
		Issuer:    readString(mapClaims, "iss"),
		ClientID:  readString(mapClaims, "client_id"),
		ExpiresAt: readExpiry(mapClaims["exp"]),
		Scope:     readString(mapClaims, "scope"),
		Groups:    readStrings(mapClaims["cognito:groups"]),
		Raw:       mapClaims,
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}
	return claims, nil
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func readStrings(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func readExpiry(raw any) time.Time {
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// AuthDisabled reports whether auth should be skipped for local development.
func AuthDisabled() bool {
	if !strings.EqualFold(os.Getenv("AUTH_DISABLED"), "true") {
		return false
	}
	return strings.EqualFold(os.Getenv("ENV"), "local") || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == ""
}
