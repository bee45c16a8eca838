package cogsrp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nickarocho/cogsrp/pkg/idp"
	"github.com/nickarocho/cogsrp/pkg/srp"
	"github.com/nickarocho/cogsrp/pkg/tokencache"
)

var userPoolIDPattern = regexp.MustCompile(`^[a-z0-9-]+_[A-Za-z0-9]+$`)

// PoolOptions configures a Pool. UserPoolID and ClientID are required;
// everything else has a sensible default.
type PoolOptions struct {
	UserPoolID   string
	ClientID     string
	ClientSecret string

	// Storage backs the token cache; a MemoryStorage is used if nil.
	Storage tokencache.Storage

	// DeviceName is sent when confirming a new trusted device. Falls back
	// to "default-device" when empty (spec.md §9 Open Question, resolved
	// this way rather than probing the host OS name).
	DeviceName string

	// AdvancedSecurityDataCallback, when set, supplies the opaque
	// UserContextData blob attached to authentication requests. When nil,
	// or when it returns ok=false, UserContextData is omitted entirely.
	AdvancedSecurityDataCallback func(username string) (data json.RawMessage, ok bool)

	Logger *slog.Logger

	// IdPClient overrides the default HTTP dispatcher, e.g. to point it at
	// an in-process test double.
	IdPClient *idp.Client
}

// Pool represents one app client registered against one identity provider
// user pool, and is the entry point for sign-up and for constructing Users.
type Pool struct {
	UserPoolID   string
	ClientID     string
	ClientSecret string
	PoolShortID  string

	DeviceName                   string
	AdvancedSecurityDataCallback func(username string) (json.RawMessage, bool)

	Cache  *tokencache.Cache
	IdP    *idp.Client
	Logger *slog.Logger

	srp srp.Helper
}

// NewPool validates opts and constructs a Pool. It is the library's sole
// synchronous failure path: precondition violations panic via a returned
// error rather than surfacing through a callback, per spec.md §7.
func NewPool(opts PoolOptions) (*Pool, error) {
	if strings.TrimSpace(opts.UserPoolID) == "" {
		return nil, newError(KindInvalidParameter, "UserPoolId is required")
	}
	if !userPoolIDPattern.MatchString(opts.UserPoolID) {
		return nil, newError(KindInvalidParameter, "UserPoolId must have the form region_shortId")
	}
	if strings.TrimSpace(opts.ClientID) == "" {
		return nil, newError(KindInvalidParameter, "ClientId is required")
	}

	region := opts.UserPoolID[:strings.Index(opts.UserPoolID, "_")]
	poolShortID := opts.UserPoolID[strings.Index(opts.UserPoolID, "_")+1:]

	deviceName := opts.DeviceName
	if deviceName == "" {
		deviceName = "default-device"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idpClient := opts.IdPClient
	if idpClient == nil {
		idpClient = idp.NewClient(region, idp.WithLogger(logger))
	}

	return &Pool{
		UserPoolID:                   opts.UserPoolID,
		ClientID:                     opts.ClientID,
		ClientSecret:                 opts.ClientSecret,
		PoolShortID:                  poolShortID,
		DeviceName:                   deviceName,
		AdvancedSecurityDataCallback: opts.AdvancedSecurityDataCallback,
		Cache:                        tokencache.New(opts.ClientID, opts.Storage),
		IdP:                          idpClient,
		Logger:                       logger,
		srp:                          srp.Helper{PoolShortID: poolShortID},
	}, nil
}

// secretHash computes SECRET_HASH = base64(HMAC-SHA256(clientSecret,
// username‖clientId)), or "" when no client secret is configured — every
// caller must skip the field entirely in that case.
func (p *Pool) secretHash(username string) string {
	if p.ClientSecret == "" {
		return ""
	}
	return secretHash(p.ClientSecret, username, p.ClientID)
}

// userContextData returns the opaque advisory-security blob for username,
// or nil when the pool has no hook configured or the hook opts out.
func (p *Pool) userContextData(username string) json.RawMessage {
	if p.AdvancedSecurityDataCallback == nil {
		return nil
	}
	data, ok := p.AdvancedSecurityDataCallback(username)
	if !ok {
		return nil
	}
	return data
}

// SignUpResult is what SignUp returns on success.
type SignUpResult struct {
	User          *User
	UserConfirmed bool
	UserSub       string
}

// SignUp registers a new account. validationData and clientMetadata may be
// nil.
func (p *Pool) SignUp(ctx context.Context, username, password string, userAttrs, validationData map[string]string, clientMetadata map[string]string) (*SignUpResult, error) {
	if strings.TrimSpace(username) == "" {
		return nil, newError(KindInvalidParameter, "username is required")
	}
	if password == "" {
		return nil, newError(KindInvalidParameter, "password is required")
	}

	args := map[string]any{
		"ClientId": p.ClientID,
		"Username": username,
		"Password": password,
	}
	if sh := p.secretHash(username); sh != "" {
		args["SecretHash"] = sh
	}
	if len(userAttrs) > 0 {
		args["UserAttributes"] = attributeList(userAttrs)
	}
	if len(validationData) > 0 {
		args["ValidationData"] = attributeList(validationData)
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	out, err := p.IdP.Do(ctx, idp.ActionSignUp, args)
	if err != nil {
		return nil, translateIdPError(err)
	}

	user, err := NewUser(username, p)
	if err != nil {
		return nil, err
	}

	return &SignUpResult{
		User:          user,
		UserConfirmed: boolField(out, "UserConfirmed"),
		UserSub:       stringField(out, "UserSub"),
	}, nil
}

// ConfirmRegistration confirms a pending sign-up with the code the identity
// provider sent the user.
func (p *Pool) ConfirmRegistration(ctx context.Context, username, code string, forceAliasCreation bool, clientMetadata map[string]string) error {
	args := map[string]any{
		"ClientId":           p.ClientID,
		"Username":           username,
		"ConfirmationCode":   code,
		"ForceAliasCreation": forceAliasCreation,
	}
	if sh := p.secretHash(username); sh != "" {
		args["SecretHash"] = sh
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	_, err := p.IdP.Do(ctx, idp.ActionConfirmSignUp, args)
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// ResendConfirmationCode re-sends the confirmation code for a pending
// sign-up.
func (p *Pool) ResendConfirmationCode(ctx context.Context, username string, clientMetadata map[string]string) error {
	args := map[string]any{
		"ClientId": p.ClientID,
		"Username": username,
	}
	if sh := p.secretHash(username); sh != "" {
		args["SecretHash"] = sh
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	_, err := p.IdP.Do(ctx, idp.ActionResendConfirmationCode, args)
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

func attributeList(attrs map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(attrs))
	for name, value := range attrs {
		out = append(out, map[string]string{"Name": name, "Value": value})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	v, _ := m[key].(bool)
	return v
}

func translateIdPError(err error) error {
	var idpErr *idp.IdPError
	if e, ok := asIdPError(err); ok {
		idpErr = e
		switch idpErr.Kind {
		case "NotAuthorizedException":
			return wrapError(KindNotAuthorized, idpErr.Message, err)
		default:
			return wrapError(KindIdPError, fmt.Sprintf("%s: %s", idpErr.Kind, idpErr.Message), err)
		}
	}
	if isNetworkError(err) {
		return wrapError(KindNetworkError, "request to identity provider failed", err)
	}
	return err
}
