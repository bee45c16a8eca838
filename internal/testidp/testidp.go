// Package testidp is an in-process fake of the identity provider's
// authentication API: enough of InitiateAuth/RespondToAuthChallenge/SignUp
// and friends to drive a real SRP-6a exchange against pkg/cogsrp without a
// network, computing the server's half of the math for real rather than
// stubbing it out.
package testidp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// IdP is an http.RoundTripper standing in for one user pool. Wire it into a
// *idp.Client with idp.WithHTTPClient(&http.Client{Transport: idp}).
type IdP struct {
	PoolShortID string
	ClientID    string
	Issuer      string

	// OfferNewDevice, when true, attaches NewDeviceMetadata to every
	// successful SRP authentication, exercising the device-confirmation
	// path. Off by default so plain SRP tests don't have to handle it.
	OfferNewDevice bool

	// jwtSecret signs issued id/access tokens. Tests never check the
	// signature (idptoken.Payload never verifies it), but a real HS256
	// secret keeps the fake from handing out malformed JWTs.
	jwtSecret []byte

	mu       sync.Mutex
	users    map[string]*fakeUser
	sessions map[string]*pendingChallenge
	tokens   map[string]string // refresh token -> username
}

type fakeUser struct {
	username   string
	password   string // plaintext, fake-only: a real provider never stores this
	attributes map[string]string
	confirmed  bool
	salt       *big.Int
	verifier   *big.Int
	mfaSecret  string
	devices    map[string]*fakeDevice

	// forceChallenge, when non-empty, is returned by verifyPasswordClaim
	// instead of issuing tokens directly — lets a test drive a user through
	// SMS_MFA/SOFTWARE_TOKEN_MFA/SELECT_MFA_TYPE/NEW_PASSWORD_REQUIRED/
	// MFA_SETUP without a real identity provider ever asking for it.
	forceChallenge string
}

type fakeDevice struct {
	deviceKey      string
	deviceGroupKey string
	salt           *big.Int
	verifier       *big.Int
	status         string
}

type pendingChallenge struct {
	kind      string // srp, device_srp, custom, new_password, mfa_setup, select_mfa, sms_mfa, totp_mfa
	username  string
	deviceKey string

	A, B, b *big.Int
	verifier *big.Int

	hkdf []byte
}

// New returns an empty fake IdP for one user pool.
func New(poolShortID, clientID string) *IdP {
	return &IdP{
		PoolShortID: poolShortID,
		ClientID:    clientID,
		Issuer:      "https://testidp.local/" + poolShortID,
		jwtSecret:   []byte("test-only-signing-secret"),
		users:       make(map[string]*fakeUser),
		sessions:    make(map[string]*pendingChallenge),
		tokens:      make(map[string]string),
	}
}

// Seed registers a confirmed user directly, bypassing SignUp/ConfirmSignUp,
// so authentication-focused tests don't need to drive registration first.
func (p *IdP) Seed(username, password string, attrs map[string]string) {
	p.SeedWithChallenge(username, password, attrs, "")
}

// SeedWithChallenge is Seed plus a forced post-SRP challenge: once the SRP
// exchange itself succeeds, verifyPasswordClaim returns forceChallenge
// (e.g. "SMS_MFA", "SOFTWARE_TOKEN_MFA", "SELECT_MFA_TYPE",
// "NEW_PASSWORD_REQUIRED", "MFA_SETUP") instead of issuing tokens, so tests
// can drive the rest of the challenge-response state machine without a real
// identity provider deciding to ask for it.
func (p *IdP) SeedWithChallenge(username, password string, attrs map[string]string, forceChallenge string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	salt, verifier, err := verifierFromPassword(p.PoolShortID, username, password)
	if err != nil {
		panic(err)
	}
	p.users[username] = &fakeUser{
		username:       username,
		password:       password,
		attributes:     cloneMap(attrs),
		confirmed:      true,
		salt:           salt,
		verifier:       verifier,
		devices:        make(map[string]*fakeDevice),
		forceChallenge: forceChallenge,
	}
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RoundTrip implements http.RoundTripper by dispatching on the
// X-Amz-Target header the way the real endpoint does.
func (p *IdP) RoundTrip(req *http.Request) (*http.Response, error) {
	target := req.Header.Get("X-Amz-Target")
	action := target
	if i := strings.LastIndex(target, "."); i >= 0 {
		action = target[i+1:]
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("testidp: reading request body: %w", err)
	}
	var args map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			return nil, fmt.Errorf("testidp: decoding request body: %w", err)
		}
	}

	out, idpErr := p.dispatch(req.Context(), action, args)
	if idpErr != nil {
		return p.errorResponse(idpErr), nil
	}
	return p.jsonResponse(http.StatusOK, out), nil
}

type fakeError struct {
	Type    string
	Message string
}

func (e *fakeError) errType() string { return "com.amazonaws.testidp#" + e.Type }

func (p *IdP) errorResponse(e *fakeError) *http.Response {
	body, _ := json.Marshal(map[string]string{"__type": e.errType(), "message": e.Message})
	return &http.Response{
		StatusCode: http.StatusBadRequest,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/x-amz-json-1.1"}},
	}
}

func (p *IdP) jsonResponse(status int, out map[string]any) *http.Response {
	body, _ := json.Marshal(out)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/x-amz-json-1.1"}},
	}
}

func newSessionToken() string {
	return ulid.Make().String()
}
