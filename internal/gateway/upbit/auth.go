package upbit

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Upbit's private API authenticates with a compact JWT signed HS256
// over {access_key, nonce} plus, when a request carries parameters, a
// SHA512 hash of the raw query string. The token format is small and
// fixed, so it is built here directly.

type jwtClaims struct {
	AccessKey    string `json:"access_key"`
	Nonce        string `json:"nonce"`
	QueryHash    string `json:"query_hash,omitempty"`
	QueryHashAlg string `json:"query_hash_alg,omitempty"`
}

func authToken(accessKey, secretKey, rawQuery string) (string, error) {
	if strings.TrimSpace(accessKey) == "" || strings.TrimSpace(secretKey) == "" {
		return "", fmt.Errorf("upbit: api keys not configured")
	}
	claims := jwtClaims{
		AccessKey: accessKey,
		Nonce:     uuid.NewString(),
	}
	if rawQuery != "" {
		sum := sha512.Sum512([]byte(rawQuery))
		claims.QueryHash = hex.EncodeToString(sum[:])
		claims.QueryHashAlg = "SHA512"
	}

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signing := header + "." + base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(signing))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return "Bearer " + signing + "." + sig, nil
}
