// Package idptoken wraps the three token strings an identity provider
// issues on successful authentication: an id token and access token, both
// JWTs whose payload this package can decode, and an opaque refresh token.
//
// This package never checks a JWT's signature. Verifying that the identity
// provider actually signed a token is the provider's own concern when it
// accepts the token back (e.g. on an authenticated request); a client
// library has no trust anchor of its own to check against, and spec.md's
// scope is explicit that this library never validates signatures.
package idptoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDToken wraps a Cognito-style id token JWT.
type IDToken struct{ raw string }

// AccessToken wraps a Cognito-style access token JWT.
type AccessToken struct{ raw string }

// RefreshToken wraps an opaque refresh token string; it carries no claims.
type RefreshToken struct{ raw string }

// NewIDToken wraps a raw JWT string as an IDToken.
func NewIDToken(raw string) IDToken { return IDToken{raw: raw} }

// NewAccessToken wraps a raw JWT string as an AccessToken.
func NewAccessToken(raw string) AccessToken { return AccessToken{raw: raw} }

// NewRefreshToken wraps a raw opaque string as a RefreshToken.
func NewRefreshToken(raw string) RefreshToken { return RefreshToken{raw: raw} }

// JWT returns the raw token string.
func (t IDToken) JWT() string { return t.raw }

// JWT returns the raw token string.
func (t AccessToken) JWT() string { return t.raw }

// String returns the raw opaque refresh token string.
func (t RefreshToken) String() string { return t.raw }

// IsZero reports whether the refresh token carries no value.
func (t RefreshToken) IsZero() bool { return t.raw == "" }

// Payload decodes the token's claim set without checking its signature.
func Payload(raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("idptoken: empty token")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("idptoken: decoding payload: %w", err)
	}
	return claims, nil
}

// Payload decodes the id token's claim set without checking its signature.
func (t IDToken) Payload() (jwt.MapClaims, error) { return Payload(t.raw) }

// Payload decodes the access token's claim set without checking its signature.
func (t AccessToken) Payload() (jwt.MapClaims, error) { return Payload(t.raw) }

// Expiration extracts the token's "exp" claim as an absolute time.
func (t IDToken) Expiration() (time.Time, error) { return expiration(t.raw) }

// Expiration extracts the token's "exp" claim as an absolute time.
func (t AccessToken) Expiration() (time.Time, error) { return expiration(t.raw) }

// IssuedAt extracts the token's "iat" claim as an absolute time.
func (t IDToken) IssuedAt() (time.Time, error) { return issuedAt(t.raw) }

// IssuedAt extracts the token's "iat" claim as an absolute time.
func (t AccessToken) IssuedAt() (time.Time, error) { return issuedAt(t.raw) }

// Subject extracts the token's "sub" claim.
func (t IDToken) Subject() (string, error) { return stringClaim(t.raw, "sub") }

// Subject extracts the token's "sub" claim.
func (t AccessToken) Subject() (string, error) { return stringClaim(t.raw, "sub") }

// Username extracts the id token's "cognito:username" claim, falling back
// to "username" when the provider uses that name instead.
func (t IDToken) Username() (string, error) {
	claims, err := Payload(t.raw)
	if err != nil {
		return "", err
	}
	if v, ok := claims["cognito:username"].(string); ok && v != "" {
		return v, nil
	}
	if v, ok := claims["username"].(string); ok {
		return v, nil
	}
	return "", fmt.Errorf("idptoken: no username claim present")
}

func expiration(raw string) (time.Time, error) {
	claims, err := Payload(raw)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("idptoken: reading exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("idptoken: no exp claim present")
	}
	return exp.Time, nil
}

func issuedAt(raw string) (time.Time, error) {
	claims, err := Payload(raw)
	if err != nil {
		return time.Time{}, err
	}
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return time.Time{}, fmt.Errorf("idptoken: reading iat claim: %w", err)
	}
	if iat == nil {
		return time.Time{}, fmt.Errorf("idptoken: no iat claim present")
	}
	return iat.Time, nil
}

func stringClaim(raw, name string) (string, error) {
	claims, err := Payload(raw)
	if err != nil {
		return "", err
	}
	v, ok := claims[name].(string)
	if !ok {
		return "", fmt.Errorf("idptoken: no %s claim present", name)
	}
	return v, nil
}
