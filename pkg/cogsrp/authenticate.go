package cogsrp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/nickarocho/cogsrp/pkg/idp"
	"github.com/nickarocho/cogsrp/pkg/idptoken"
	"github.com/nickarocho/cogsrp/pkg/idx"
	"github.com/nickarocho/cogsrp/pkg/session"
	"github.com/nickarocho/cogsrp/pkg/slogx"
)

// AuthenticateUser dispatches authDetails by AuthenticationFlowType and
// invokes exactly one terminal or challenge field on cb (spec.md §4.3).
func (u *User) AuthenticateUser(ctx context.Context, details AuthenticationDetails, cb Callback) {
	next, err := u.authenticate(ctx, details)
	dispatch(cb, next, err)
}

// AuthenticateCh is the channel-based alternative to AuthenticateUser: it
// runs the same state-machine step and reports exactly one Next value.
func (u *User) AuthenticateCh(ctx context.Context, details AuthenticationDetails) <-chan Next {
	return asChannel(func() (Next, error) { return u.authenticate(ctx, details) })
}

func (u *User) authenticate(ctx context.Context, details AuthenticationDetails) (Next, error) {
	flow := details.AuthenticationFlowType
	if flow == "" {
		flow = "USER_SRP_AUTH"
	}

	attemptID := idx.New().String()
	logger := u.pool.Logger.With("auth_id", attemptID, "username", u.Username(), "flow", flow)
	ctx = slogx.WithContext(ctx, logger)
	logger.Debug("authentication attempt started")

	var next Next
	var err error
	switch flow {
	case "USER_PASSWORD_AUTH":
		next, err = u.authenticatePlain(ctx, details)
	case "USER_SRP_AUTH", "CUSTOM_AUTH":
		next, err = u.authenticateSRP(ctx, details, flow)
	default:
		return Next{}, newError(KindInvalidAuthenticationFlowType, fmt.Sprintf("unsupported AuthenticationFlowType %q", flow))
	}
	if err != nil {
		logger.Debug("authentication attempt failed", "error", err)
		return next, err
	}
	logger.Debug("authentication attempt yielded challenge or result", "next_kind", next.Kind)
	return next, nil
}

// authenticatePlain implements spec.md §4.3.a.
func (u *User) authenticatePlain(ctx context.Context, details AuthenticationDetails) (Next, error) {
	params := map[string]string{
		"USERNAME": u.Username(),
		"PASSWORD": details.Password,
	}
	u.addDeviceKey(params)
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		params["SECRET_HASH"] = sh
	}

	args := map[string]any{
		"AuthFlow":       "USER_PASSWORD_AUTH",
		"ClientId":       u.pool.ClientID,
		"AuthParameters": params,
	}
	if len(details.ClientMetadata) > 0 {
		args["ClientMetadata"] = details.ClientMetadata
	}
	if ctxData := u.pool.userContextData(u.Username()); ctxData != nil {
		args["UserContextData"] = map[string]any{"EncodedData": string(ctxData)}
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionInitiateAuth, args)
	if err != nil {
		return Next{}, translateIdPError(err)
	}

	return u.routeChallenge(ctx, out)
}

// authenticateSRP implements spec.md §4.3.b: compute A, InitiateAuth, then
// respond to the PASSWORD_VERIFIER (or CUSTOM_CHALLENGE, for CUSTOM_AUTH)
// challenge the identity provider returns.
func (u *User) authenticateSRP(ctx context.Context, details AuthenticationDetails, flow string) (Next, error) {
	a, A, err := u.pool.srp.LargeAValue()
	if err != nil {
		return Next{}, wrapError(KindCryptoInvariant, "generating SRP A value", err)
	}

	params := map[string]string{
		"USERNAME": u.Username(),
		"SRP_A":    A.Text(16),
	}
	u.addDeviceKey(params)
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		params["SECRET_HASH"] = sh
	}
	for k, v := range details.AuthParameters {
		params[k] = v
	}

	args := map[string]any{
		"AuthFlow":       flow,
		"ClientId":       u.pool.ClientID,
		"AuthParameters": params,
	}
	if len(details.ClientMetadata) > 0 {
		args["ClientMetadata"] = details.ClientMetadata
	}
	if ctxData := u.pool.userContextData(u.Username()); ctxData != nil {
		args["UserContextData"] = map[string]any{"EncodedData": string(ctxData)}
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionInitiateAuth, args)
	if err != nil {
		return Next{}, translateIdPError(err)
	}

	challengeName, _ := out["ChallengeName"].(string)
	if challengeName == "CUSTOM_CHALLENGE" {
		return u.routeChallenge(ctx, out)
	}
	if challengeName != "PASSWORD_VERIFIER" {
		return u.routeChallenge(ctx, out)
	}

	challengeParams, _ := stringMap(out, "ChallengeParameters")
	if s, ok := out["Session"].(string); ok {
		u.setProtocolSession(s)
	}

	// The server's USER_ID_FOR_SRP rewrites the username used for every
	// subsequent request (spec.md §8 invariant 1).
	if userID, ok := challengeParams["USER_ID_FOR_SRP"]; ok && userID != "" {
		u.setUsername(userID)
	}

	salt, ok := new(big.Int).SetString(challengeParams["SALT"], 16)
	if !ok {
		return Next{}, newError(KindInvalidParameter, "server SALT is not valid hex")
	}
	B, ok := new(big.Int).SetString(challengeParams["SRP_B"], 16)
	if !ok {
		return Next{}, newError(KindInvalidParameter, "server SRP_B is not valid hex")
	}

	hkdf, err := u.pool.srp.PasswordAuthenticationKey(u.Username(), details.Password, a, A, B, salt)
	if err != nil {
		return Next{}, wrapError(KindCryptoInvariant, "computing password authentication key", err)
	}

	respArgs, err := u.passwordVerifierResponse(challengeParams, hkdf)
	if err != nil {
		return Next{}, err
	}

	return u.respondToChallenge(ctx, "PASSWORD_VERIFIER", respArgs, nil)
}

// passwordVerifierResponse builds the ChallengeResponses map the server
// expects for PASSWORD_VERIFIER / DEVICE_PASSWORD_VERIFIER: a MAC over the
// pool id, username, secret block, and a fixed-format timestamp
// (spec.md §8 invariant 5).
func (u *User) passwordVerifierResponse(challengeParams map[string]string, hkdf []byte) (map[string]string, error) {
	secretBlock := challengeParams["SECRET_BLOCK"]
	secretBlockBytes, err := base64.StdEncoding.DecodeString(secretBlock)
	if err != nil {
		return nil, newError(KindInvalidParameter, "server SECRET_BLOCK is not valid base64")
	}

	timestamp := awsTimestamp(time.Now())

	mac := hmacSHA256Signature(hkdf, []byte(u.pool.PoolShortID), []byte(u.Username()), secretBlockBytes, []byte(timestamp))

	resp := map[string]string{
		"USERNAME":                    u.Username(),
		"PASSWORD_CLAIM_SECRET_BLOCK": secretBlock,
		"PASSWORD_CLAIM_SIGNATURE":    base64.StdEncoding.EncodeToString(mac),
		"TIMESTAMP":                   timestamp,
	}
	u.addDeviceKey(resp)
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		resp["SECRET_HASH"] = sh
	}
	return resp, nil
}

func (u *User) addDeviceKey(params map[string]string) {
	deviceKey, _, _, ok := u.pool.Cache.LoadDevice(u.Username())
	if ok {
		params["DEVICE_KEY"] = deviceKey
	}
}

// respondToChallenge issues RespondToAuthChallenge for challengeName and
// routes the result through the challenge router.
func (u *User) respondToChallenge(ctx context.Context, challengeName string, responses map[string]string, clientMetadata map[string]string) (Next, error) {
	args := map[string]any{
		"ClientId":           u.pool.ClientID,
		"ChallengeName":       challengeName,
		"ChallengeResponses":  responses,
		"Session":             u.ProtocolSession(),
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionRespondToAuthChallenge, args)
	if err != nil {
		return Next{}, translateIdPError(err)
	}
	return u.routeChallenge(ctx, out)
}

// routeChallenge implements the common challenge router (spec.md §4.3
// table): it inspects ChallengeName in the IdP response and either surfaces
// a Next the caller must answer, or — on an absent ChallengeName — builds
// the terminal Session, resolving device confirmation first if needed.
func (u *User) routeChallenge(ctx context.Context, out map[string]any) (Next, error) {
	if s, ok := out["Session"].(string); ok {
		u.setProtocolSession(s)
	}

	challengeName, hasChallenge := out["ChallengeName"].(string)
	challengeParams, _ := stringMap(out, "ChallengeParameters")

	if hasChallenge && challengeName != "" {
		u.saveChallenge(challengeName, challengeParams)
		slogx.FromContext(ctx).Debug("received challenge", "challenge_name", challengeName)
	}

	switch challengeName {
	case "SMS_MFA":
		return Next{Kind: NextNeedsSmsMfa, Params: challengeParams}, nil
	case "SOFTWARE_TOKEN_MFA":
		return Next{Kind: NextNeedsTotp, Params: challengeParams}, nil
	case "CUSTOM_CHALLENGE":
		return Next{Kind: NextNeedsCustom, Params: challengeParams}, nil
	case "MFA_SETUP":
		return Next{Kind: NextNeedsMfaSetup, Params: challengeParams}, nil
	case "SELECT_MFA_TYPE":
		return Next{Kind: NextNeedsMfaSelection, Params: challengeParams}, nil
	case "NEW_PASSWORD_REQUIRED":
		userAttrs, required := parseNewPasswordChallenge(challengeParams)
		return Next{Kind: NextNeedsNewPassword, UserAttributes: userAttrs, RequiredAttributes: required, Params: challengeParams}, nil
	case "DEVICE_SRP_AUTH":
		return u.authenticateDeviceSRP(ctx)
	default:
		return u.terminal(ctx, out)
	}
}

// parseNewPasswordChallenge strips the server-supplied "userAttributes."
// prefix from NEW_PASSWORD_REQUIRED's ChallengeParameters and decodes the
// JSON-encoded attribute and requirement lists (spec.md §4.3 table).
func parseNewPasswordChallenge(params map[string]string) (userAttrs map[string]string, required []string) {
	userAttrs = make(map[string]string)

	if raw, ok := params["userAttributes"]; ok {
		var decoded map[string]string
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			for k, v := range decoded {
				userAttrs[strings.TrimPrefix(k, "userAttributes.")] = v
			}
		}
	}
	for k, v := range params {
		if strings.HasPrefix(k, "userAttributes.") {
			userAttrs[strings.TrimPrefix(k, "userAttributes.")] = v
		}
	}

	if raw, ok := params["requiredAttributes"]; ok {
		_ = json.Unmarshal([]byte(raw), &required)
	}

	return userAttrs, required
}

// terminal builds the session from a terminal AuthenticationResult
// (spec.md §4.4), running device confirmation first when the server
// registered a new device.
func (u *User) terminal(ctx context.Context, out map[string]any) (Next, error) {
	result, ok := out["AuthenticationResult"].(map[string]any)
	if !ok {
		return Next{}, newError(KindIdPError, "identity provider response has neither a challenge nor an AuthenticationResult")
	}

	idRaw := stringField(result, "IdToken")
	accessRaw := stringField(result, "AccessToken")
	refreshRaw := stringField(result, "RefreshToken")

	s, err := session.New(idptoken.NewIDToken(idRaw), idptoken.NewAccessToken(accessRaw), idptoken.NewRefreshToken(refreshRaw), time.Now())
	if err != nil {
		return Next{}, wrapError(KindIdPError, "materialising session from AuthenticationResult", err)
	}
	u.setSession(s)

	var userConfirmationNecessary bool
	if newDevice, ok := result["NewDeviceMetadata"].(map[string]any); ok {
		slogx.FromContext(ctx).Debug("server offered a new device, confirming", "device_key", stringField(newDevice, "DeviceKey"))
		ucn, err := u.confirmDevice(ctx, newDevice)
		if err != nil {
			return Next{}, err
		}
		userConfirmationNecessary = ucn
	}

	return Next{Kind: NextDone, Session: s, UserConfirmationNecessary: userConfirmationNecessary}, nil
}

// confirmDevice implements spec.md §4.3.d, returning the ConfirmDevice
// response's UserConfirmationNecessary flag.
func (u *User) confirmDevice(ctx context.Context, newDevice map[string]any) (bool, error) {
	deviceGroupKey := stringField(newDevice, "DeviceGroupKey")
	deviceKey := stringField(newDevice, "DeviceKey")

	salt, verifier, randomPassword, err := u.pool.srp.GenerateHashDevice(deviceGroupKey, deviceKey)
	if err != nil {
		return false, wrapError(KindCryptoInvariant, "generating device verifier", err)
	}

	args := map[string]any{
		"AccessToken": u.accessTokenJWT(),
		"DeviceKey":   deviceKey,
		"DeviceSecretVerifierConfig": map[string]any{
			"Salt":             hexString(salt),
			"PasswordVerifier": base64.StdEncoding.EncodeToString(verifier.Bytes()),
		},
		"DeviceName": u.pool.DeviceName,
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionConfirmDevice, args)
	if err != nil {
		return false, translateIdPError(err)
	}

	u.pool.Cache.SaveDevice(u.Username(), deviceKey, deviceGroupKey, randomPassword)

	return boolField(out, "UserConfirmationNecessary"), nil
}

func hexString(v *big.Int) string { return v.Text(16) }

func (u *User) accessTokenJWT() string {
	s, _ := u.Session()
	return s.AccessToken.JWT()
}
