// Package session holds the triple of tokens an identity provider issues on
// successful authentication, plus the clock-drift correction needed to judge
// whether that triple is still valid against the caller's own clock.
package session

import (
	"fmt"
	"time"

	"github.com/nickarocho/cogsrp/pkg/idptoken"
)

// Session is the result of a completed authentication: the id, access, and
// refresh tokens issued together, plus the clock drift observed at issuance.
//
// ClockDrift corrects for the caller's clock running ahead of or behind the
// identity provider's: it is the number of seconds by which the caller's
// local clock led the id token's "iat" claim at the moment the session was
// built, and is subtracted back out of every subsequent validity check so a
// skewed local clock never makes a still-good session look expired (or vice
// versa).
type Session struct {
	IDToken      idptoken.IDToken
	AccessToken  idptoken.AccessToken
	RefreshToken idptoken.RefreshToken
	ClockDrift   int64
}

// New builds a Session from a provider's AuthenticationResult, computing
// ClockDrift from the id token's "iat" claim against now.
func New(id idptoken.IDToken, access idptoken.AccessToken, refresh idptoken.RefreshToken, now time.Time) (Session, error) {
	iat, err := id.IssuedAt()
	if err != nil {
		return Session{}, fmt.Errorf("session: reading id token iat: %w", err)
	}

	return Session{
		IDToken:      id,
		AccessToken:  access,
		RefreshToken: refresh,
		ClockDrift:   now.Unix() - iat.Unix(),
	}, nil
}

// IsValid reports whether the session is still usable at now: the earlier
// of the two token expirations must be later than now, corrected for the
// clock drift observed at issuance.
func (s Session) IsValid(now time.Time) bool {
	idExp, err := s.IDToken.Expiration()
	if err != nil {
		return false
	}
	accessExp, err := s.AccessToken.Expiration()
	if err != nil {
		return false
	}

	minExp := idExp
	if accessExp.Before(minExp) {
		minExp = accessExp
	}

	corrected := now.Add(-time.Duration(s.ClockDrift) * time.Second)
	return minExp.After(corrected)
}
