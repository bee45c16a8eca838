package cogsrp

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/nickarocho/cogsrp/pkg/cryptox"
	"github.com/nickarocho/cogsrp/pkg/idp"
)

// secretHash computes SECRET_HASH = base64(HMAC-SHA256(clientSecret,
// username‖clientId)) per spec.md §6.
func secretHash(clientSecret, username, clientID string) string {
	mac := cryptox.HMACSHA256([]byte(clientSecret), []byte(username+clientID))
	return base64.StdEncoding.EncodeToString(mac)
}

// hmacSHA256Signature computes HMAC-SHA256(key, concat(parts...)), used for
// the PASSWORD_CLAIM_SIGNATURE over poolShortId‖username‖secretBlock‖timestamp.
func hmacSHA256Signature(key []byte, parts ...[]byte) []byte {
	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	return cryptox.HMACSHA256(key, data)
}

func asIdPError(err error) (*idp.IdPError, bool) {
	var idpErr *idp.IdPError
	if errors.As(err, &idpErr) {
		return idpErr, true
	}
	return nil, false
}

func isNetworkError(err error) bool {
	return errors.Is(err, idp.ErrNetwork)
}

// awsTimestamp formats t the way the identity provider's SRP challenge
// response expects: "Www MMM D HH:MM:SS UTC YYYY", single-space separated,
// with no leading zero on the day of month (spec.md §8 invariant 5).
func awsTimestamp(t time.Time) string {
	return t.UTC().Format("Mon Jan 2 15:04:05 MST 2006")
}

func stringMap(m map[string]any, key string) (map[string]string, bool) {
	raw, ok := m[key]
	if !ok {
		return nil, false
	}
	asMap, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(asMap))
	for k, v := range asMap {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, true
}
