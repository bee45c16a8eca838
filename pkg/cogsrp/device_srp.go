package cogsrp

import (
	"context"
	"encoding/base64"
	"math/big"
	"time"

	"github.com/nickarocho/cogsrp/pkg/idp"
)

// authenticateDeviceSRP implements spec.md §4.3.c: a second SRP round keyed
// on a previously confirmed device, issued automatically whenever the
// identity provider asks for it mid-flow — the caller never sees this step.
func (u *User) authenticateDeviceSRP(ctx context.Context) (Next, error) {
	deviceKey, deviceGroupKey, randomPassword, ok := u.pool.Cache.LoadDevice(u.Username())
	if !ok {
		return Next{}, newError(KindNotAuthorized, "server requested device SRP but no device is cached for this user")
	}

	a, A, err := u.pool.srp.LargeAValue()
	if err != nil {
		return Next{}, wrapError(KindCryptoInvariant, "generating device SRP A value", err)
	}

	responses := map[string]string{
		"USERNAME":   u.Username(),
		"DEVICE_KEY": deviceKey,
		"SRP_A":      A.Text(16),
	}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionRespondToAuthChallenge, map[string]any{
		"ClientId":           u.pool.ClientID,
		"ChallengeName":      "DEVICE_SRP_AUTH",
		"ChallengeResponses": responses,
		"Session":            u.ProtocolSession(),
	})
	if err != nil {
		return Next{}, translateIdPError(err)
	}

	if s, ok := out["Session"].(string); ok {
		u.setProtocolSession(s)
	}
	challengeParams, _ := stringMap(out, "ChallengeParameters")

	salt, ok := new(big.Int).SetString(challengeParams["SALT"], 16)
	if !ok {
		return Next{}, newError(KindInvalidParameter, "server SALT is not valid hex")
	}
	B, ok := new(big.Int).SetString(challengeParams["SRP_B"], 16)
	if !ok {
		return Next{}, newError(KindInvalidParameter, "server SRP_B is not valid hex")
	}

	hkdf, err := u.pool.srp.DeviceAuthenticationKey(deviceGroupKey, randomPassword, a, A, B, salt)
	if err != nil {
		return Next{}, wrapError(KindCryptoInvariant, "computing device authentication key", err)
	}

	secretBlockBytes, err := base64.StdEncoding.DecodeString(challengeParams["SECRET_BLOCK"])
	if err != nil {
		return Next{}, newError(KindInvalidParameter, "server SECRET_BLOCK is not valid base64")
	}

	timestamp := awsTimestamp(time.Now())
	mac := hmacSHA256Signature(hkdf, []byte(deviceGroupKey), []byte(deviceKey), secretBlockBytes, []byte(timestamp))

	responses = map[string]string{
		"USERNAME":                    u.Username(),
		"DEVICE_KEY":                  deviceKey,
		"PASSWORD_CLAIM_SECRET_BLOCK": challengeParams["SECRET_BLOCK"],
		"PASSWORD_CLAIM_SIGNATURE":    base64.StdEncoding.EncodeToString(mac),
		"TIMESTAMP":                   timestamp,
	}
	if sh := u.pool.secretHash(u.Username()); sh != "" {
		responses["SECRET_HASH"] = sh
	}

	return u.respondToChallenge(ctx, "DEVICE_PASSWORD_VERIFIER", responses, nil)
}
