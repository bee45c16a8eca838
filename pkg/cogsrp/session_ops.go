package cogsrp

import (
	"context"
	"time"

	"github.com/nickarocho/cogsrp/pkg/idp"
	"github.com/nickarocho/cogsrp/pkg/idptoken"
	"github.com/nickarocho/cogsrp/pkg/session"
)

// GetSession implements spec.md §4.5: return the in-memory session if it is
// still valid, otherwise reconstitute one from the cache and, if only the
// access token has expired, refresh it transparently.
func (u *User) GetSession(ctx context.Context) (session.Session, error) {
	now := time.Now()

	if s, ok := u.Session(); ok && s.IsValid(now) {
		return s, nil
	}

	username := u.Username()
	cached, ok, err := u.pool.Cache.Load(username)
	if err != nil {
		return session.Session{}, wrapError(KindIdPError, "reading cached session", err)
	}
	if !ok {
		return session.Session{}, newError(KindNotAuthorized, "Username is null or undefined, or no cached session exists.")
	}

	if cached.IsValid(now) {
		u.setSession(cached)
		return cached, nil
	}

	return u.refreshSession(ctx, cached)
}

// refreshSession exchanges cached.RefreshToken for a fresh id/access token
// pair via REFRESH_TOKEN_AUTH. The identity provider does not always return
// a new refresh token; when it doesn't, the existing one is carried forward
// rather than discarded (spec.md §4.5 scenario S6).
func (u *User) refreshSession(ctx context.Context, cached session.Session) (session.Session, error) {
	username := u.Username()

	params := map[string]string{
		"REFRESH_TOKEN": cached.RefreshToken.String(),
	}
	u.addDeviceKey(params)
	if sh := u.pool.secretHash(username); sh != "" {
		params["SECRET_HASH"] = sh
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionInitiateAuth, map[string]any{
		"AuthFlow":       "REFRESH_TOKEN_AUTH",
		"ClientId":       u.pool.ClientID,
		"AuthParameters": params,
	})
	if err != nil {
		return session.Session{}, translateIdPError(err)
	}

	result, ok := out["AuthenticationResult"].(map[string]any)
	if !ok {
		return session.Session{}, newError(KindIdPError, "refresh response has no AuthenticationResult")
	}

	idRaw := stringField(result, "IdToken")
	accessRaw := stringField(result, "AccessToken")

	refreshRaw := stringField(result, "RefreshToken")
	if refreshRaw == "" {
		refreshRaw = cached.RefreshToken.String()
	}

	s, err := session.New(idptoken.NewIDToken(idRaw), idptoken.NewAccessToken(accessRaw), idptoken.NewRefreshToken(refreshRaw), time.Now())
	if err != nil {
		return session.Session{}, wrapError(KindIdPError, "materialising refreshed session", err)
	}

	u.setSession(s)
	return s, nil
}

// GlobalSignOut invalidates every outstanding refresh token for the user on
// the identity provider, then clears the local session and cache (spec.md
// §4.5 scenario S5). It requires a currently valid access token.
func (u *User) GlobalSignOut(ctx context.Context) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionGlobalSignOut, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
	})
	if err != nil {
		return translateIdPError(err)
	}

	u.clearSession()
	return nil
}
