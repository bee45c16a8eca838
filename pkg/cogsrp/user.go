package cogsrp

import (
	"strings"
	"sync"

	"github.com/nickarocho/cogsrp/pkg/session"
)

// AuthenticationDetails carries everything authenticateUser needs: a
// password for USER_PASSWORD_AUTH/USER_SRP_AUTH, or none at all for a pure
// CUSTOM_AUTH flow driven entirely by challenge responses.
type AuthenticationDetails struct {
	Username           string
	Password           string
	ValidationData     map[string]string
	ClientMetadata     map[string]string
	AuthParameters     map[string]string
	AuthenticationFlowType string // defaults to USER_SRP_AUTH
}

// User drives one authentication attempt and everything that follows it:
// challenge responses, the resulting session, and every access-token-gated
// operation. A User is not safe for concurrent use; callers must externally
// serialise operations on a single User (spec.md §5).
type User struct {
	pool *Pool

	mu sync.Mutex

	username string // rewritten to USER_ID_FOR_SRP once a PASSWORD_VERIFIER challenge names it

	session session.Session
	hasSession bool

	protocolSession     string // opaque IdP "Session" correlation string between challenges
	lastChallengeName   string
	lastChallengeParams map[string]string
}

// NewUser constructs a User bound to pool. Per spec.md §8 invariant 1 /
// scenario S1, username and pool are both required.
func NewUser(username string, pool *Pool) (*User, error) {
	if strings.TrimSpace(username) == "" || pool == nil {
		return nil, newError(KindInvalidParameter, "Username and Pool information are required.")
	}
	return &User{pool: pool, username: username}, nil
}

// Username returns the current username: the value passed to NewUser,
// unless a PASSWORD_VERIFIER challenge has since rewritten it to the
// server's USER_ID_FOR_SRP (spec.md §8 invariant 1).
func (u *User) Username() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.username
}

// Session returns the user's current in-memory session and whether one has
// been established yet.
func (u *User) Session() (session.Session, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session, u.hasSession
}

// LastChallenge returns the most recently saved challenge name and
// parameters (spec.md §4.3: "All branches that save Session also store
// last ChallengeName and ChallengeParameters on the user").
func (u *User) LastChallenge() (name string, params map[string]string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastChallengeName, u.lastChallengeParams
}

// ProtocolSession returns the opaque IdP "Session" correlation string
// threaded between multi-step challenges (spec.md GLOSSARY: "Session
// (protocol)").
func (u *User) ProtocolSession() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.protocolSession
}

func (u *User) setProtocolSession(s string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.protocolSession = s
}

func (u *User) setUsername(username string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.username = username
}

func (u *User) saveChallenge(name string, params map[string]string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastChallengeName = name
	u.lastChallengeParams = params
}

func (u *User) setSession(s session.Session) {
	u.mu.Lock()
	u.session = s
	u.hasSession = true
	username := u.username
	u.mu.Unlock()

	_ = u.pool.Cache.Save(username, s)
}

// clearSession drops the in-memory session and the cached token blob,
// matching signOut's contract (spec.md §8 invariant 3). It leaves any
// cached device registration alone — a device is meant to survive sign-out
// so a later sign-in can use DEVICE_SRP_AUTH (spec.md §4.3.c) instead of a
// fresh device confirmation.
func (u *User) clearSession() {
	u.mu.Lock()
	u.session = session.Session{}
	u.hasSession = false
	username := u.username
	u.mu.Unlock()

	u.pool.Cache.Clear(username)
}

// SignOut clears the in-memory session and the four cached token keys for
// this user, leaving any remembered device in place.
func (u *User) SignOut() {
	u.clearSession()
}
