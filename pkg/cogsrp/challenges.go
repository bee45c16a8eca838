package cogsrp

import (
	"context"
	"encoding/base32"
	"fmt"

	"github.com/nickarocho/cogsrp/pkg/idp"
	"github.com/pquerna/otp/totp"
)

// SendMFACode answers an SMS_MFA or SOFTWARE_TOKEN_MFA challenge. mfaType
// defaults to SMS_MFA.
func (u *User) SendMFACode(ctx context.Context, code string, mfaType string, clientMetadata map[string]string) (Next, error) {
	if mfaType == "" {
		mfaType = "SMS_MFA"
	}
	responses := map[string]string{
		"USERNAME":     u.Username(),
		"SMS_MFA_CODE": code,
	}
	if mfaType == "SOFTWARE_TOKEN_MFA" {
		delete(responses, "SMS_MFA_CODE")
		responses["SOFTWARE_TOKEN_MFA_CODE"] = code
	}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}
	return u.respondToChallenge(ctx, mfaType, responses, clientMetadata)
}

// SendCustomChallengeAnswer answers a CUSTOM_CHALLENGE.
func (u *User) SendCustomChallengeAnswer(ctx context.Context, answer string, clientMetadata map[string]string) (Next, error) {
	responses := map[string]string{
		"USERNAME": u.Username(),
		"ANSWER":   answer,
	}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}
	return u.respondToChallenge(ctx, "CUSTOM_CHALLENGE", responses, clientMetadata)
}

// SendMFASelectionAnswer answers a SELECT_MFA_TYPE challenge. mfaType must
// be SMS_MFA or SOFTWARE_TOKEN_MFA.
func (u *User) SendMFASelectionAnswer(ctx context.Context, mfaType string) (Next, error) {
	if mfaType != "SMS_MFA" && mfaType != "SOFTWARE_TOKEN_MFA" {
		return Next{}, newError(KindInvalidParameter, fmt.Sprintf("unsupported MFA type %q", mfaType))
	}
	responses := map[string]string{
		"USERNAME": u.Username(),
		"ANSWER":   mfaType,
	}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}
	return u.respondToChallenge(ctx, "SELECT_MFA_TYPE", responses, nil)
}

// CompleteNewPasswordChallenge answers a NEW_PASSWORD_REQUIRED challenge.
func (u *User) CompleteNewPasswordChallenge(ctx context.Context, newPassword string, requiredAttrs map[string]string, clientMetadata map[string]string) (Next, error) {
	if newPassword == "" {
		return Next{}, newError(KindInvalidParameter, "missing new password")
	}

	responses := map[string]string{
		"USERNAME":     u.Username(),
		"NEW_PASSWORD": newPassword,
	}
	for name, value := range requiredAttrs {
		responses["userAttributes."+name] = value
	}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}
	return u.respondToChallenge(ctx, "NEW_PASSWORD_REQUIRED", responses, clientMetadata)
}

// SoftwareTokenSetup is the result of AssociateSoftwareToken: the raw TOTP
// secret plus a ready-to-render otpauth:// URI, since every real caller of
// this operation immediately needs one for a QR code.
type SoftwareTokenSetup struct {
	SecretCode string
	OTPAuthURL string
}

// AssociateSoftwareToken begins TOTP setup, requiring a valid access token
// unless mid-authentication in the MFA_SETUP challenge (in which case
// accountName is used purely to build the otpauth:// URI).
func (u *User) AssociateSoftwareToken(ctx context.Context, accountName, issuer string) (*SoftwareTokenSetup, error) {
	args := map[string]any{}
	if s, ok := u.Session(); ok {
		args["AccessToken"] = s.AccessToken.JWT()
	} else {
		args["Session"] = u.ProtocolSession()
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionAssociateSoftwareToken, args)
	if err != nil {
		return nil, translateIdPError(err)
	}
	if s, ok := out["Session"].(string); ok {
		u.setProtocolSession(s)
	}

	secret := stringField(out, "SecretCode")

	// SecretCode arrives already base32-encoded; decode it so Generate
	// re-encodes the same value into the otpauth:// URI instead of
	// double-encoding it.
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return nil, wrapError(KindCryptoInvariant, "decoding software token secret", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: accountName, Secret: raw})
	if err != nil {
		return nil, wrapError(KindCryptoInvariant, "building software token URI", err)
	}

	return &SoftwareTokenSetup{SecretCode: secret, OTPAuthURL: key.URL()}, nil
}

// VerifySoftwareToken completes TOTP setup. When signed in it calls
// VerifySoftwareToken directly; when mid-authentication it chains into the
// MFA_SETUP challenge response.
func (u *User) VerifySoftwareToken(ctx context.Context, code, friendlyName string) (Next, error) {
	args := map[string]any{
		"UserCode": code,
	}
	if friendlyName != "" {
		args["FriendlyDeviceName"] = friendlyName
	}
	if s, ok := u.Session(); ok {
		args["AccessToken"] = s.AccessToken.JWT()
	} else {
		args["Session"] = u.ProtocolSession()
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionVerifySoftwareToken, args)
	if err != nil {
		return Next{}, translateIdPError(err)
	}
	if s, ok := out["Session"].(string); ok {
		u.setProtocolSession(s)
	}

	if _, signedIn := u.Session(); signedIn {
		return Next{Kind: NextDone}, nil
	}

	responses := map[string]string{"USERNAME": u.Username()}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}
	return u.respondToChallenge(ctx, "MFA_SETUP", responses, nil)
}
