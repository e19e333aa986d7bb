// Package auth authenticates the sources that push SMS into the gateway and
// the merchant calling the administrative endpoints.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// Credential is whatever the transport extracted from the request.
type Credential struct {
	APIKey     string
	Signature  string
	Body       []byte
	URL        string
	Params     url.Values
	RemoteAddr string
	Merchant   string
}

// Authenticator returns an error wrapping domain.ErrAuthentication on failure.
type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential) error
}

func authErr(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrAuthentication, reason)
}

// StaticKey compares a shared key in constant time.
type StaticKey struct {
	Key string
}

func (a StaticKey) Authenticate(_ context.Context, cred Credential) error {
	if a.Key == "" {
		return authErr("static key not configured")
	}
	if cred.APIKey == "" {
		return authErr("missing api key")
	}
	if subtle.ConstantTimeCompare([]byte(a.Key), []byte(cred.APIKey)) != 1 {
		return authErr("invalid api key")
	}
	return nil
}

// SecretSource yields the current webhook secret. Rotation takes effect on
// the next call.
type SecretSource interface {
	CurrentSecret(ctx context.Context) (string, error)
}

// HMACBody verifies a hex HMAC-SHA256 of the raw body.
type HMACBody struct {
	Secrets SecretSource
}

func (a HMACBody) Authenticate(ctx context.Context, cred Credential) error {
	if cred.Signature == "" {
		return authErr("missing signature")
	}
	secret, err := a.Secrets.CurrentSecret(ctx)
	if err != nil {
		return fmt.Errorf("load webhook secret: %w", err)
	}
	if secret == "" {
		return authErr("webhook secret not configured")
	}
	given, err := hex.DecodeString(strings.TrimPrefix(cred.Signature, "sha256="))
	if err != nil {
		return authErr("malformed signature")
	}
	if !hmac.Equal(given, SignBody(secret, cred.Body)) {
		return authErr("signature mismatch")
	}
	return nil
}

// SignBody is the HMAC-SHA256 the api source is expected to send, hex encoded
// in X-Signature.
func SignBody(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// TwilioSignature checks X-Twilio-Signature: base64 HMAC-SHA1 over the public
// webhook URL followed by every POST parameter as key+value, keys sorted.
type TwilioSignature struct {
	AuthToken string
	BaseURL   string // used when the request URL seen behind a proxy differs
}

func (a TwilioSignature) Authenticate(_ context.Context, cred Credential) error {
	if a.AuthToken == "" {
		return authErr("carrier token not configured")
	}
	if cred.Signature == "" {
		return authErr("missing carrier signature")
	}
	target := a.BaseURL
	if target == "" {
		target = cred.URL
	}
	expected := TwilioSign(a.AuthToken, target, cred.Params)
	if !hmac.Equal([]byte(expected), []byte(cred.Signature)) {
		return authErr("carrier signature mismatch")
	}
	return nil
}

func TwilioSign(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// MerchantIdentity accepts a credential already authenticated upstream by
// the JWT middleware.
type MerchantIdentity struct{}

func (MerchantIdentity) Authenticate(_ context.Context, cred Credential) error {
	if cred.Merchant == "" {
		return authErr("merchant identity required")
	}
	return nil
}

// LoopbackBypass lets local development tools post without credentials. It
// only applies when Enabled is set.
type LoopbackBypass struct {
	Enabled bool
	Next    Authenticator
}

func (a LoopbackBypass) Authenticate(ctx context.Context, cred Credential) error {
	if a.Enabled && IsLoopback(cred.RemoteAddr) {
		return nil
	}
	return a.Next.Authenticate(ctx, cred)
}

// IsLoopback accepts "host:port" or a bare host.
func IsLoopback(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
