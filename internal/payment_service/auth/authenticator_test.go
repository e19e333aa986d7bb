package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

type staticSecret struct {
	secret string
	err    error
}

func (s staticSecret) CurrentSecret(context.Context) (string, error) { return s.secret, s.err }

func TestStaticKey(t *testing.T) {
	ctx := context.Background()
	a := StaticKey{Key: "fwd-key"}

	assert.NoError(t, a.Authenticate(ctx, Credential{APIKey: "fwd-key"}))
	assert.ErrorIs(t, a.Authenticate(ctx, Credential{APIKey: "wrong"}), domain.ErrAuthentication)
	assert.ErrorIs(t, a.Authenticate(ctx, Credential{}), domain.ErrAuthentication)
	assert.ErrorIs(t, StaticKey{}.Authenticate(ctx, Credential{APIKey: ""}), domain.ErrAuthentication)
}

func TestHMACBody(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"sender":"bKash","message":"hi"}`)
	sig := hex.EncodeToString(SignBody("s3cret", body))
	a := HMACBody{Secrets: staticSecret{secret: "s3cret"}}

	assert.NoError(t, a.Authenticate(ctx, Credential{Signature: sig, Body: body}))
	assert.NoError(t, a.Authenticate(ctx, Credential{Signature: "sha256=" + sig, Body: body}))

	t.Run("tampered body", func(t *testing.T) {
		err := a.Authenticate(ctx, Credential{Signature: sig, Body: []byte(`{"sender":"x"}`)})
		assert.ErrorIs(t, err, domain.ErrAuthentication)
	})
	t.Run("rotated secret", func(t *testing.T) {
		rotated := HMACBody{Secrets: staticSecret{secret: "new"}}
		assert.ErrorIs(t, rotated.Authenticate(ctx, Credential{Signature: sig, Body: body}), domain.ErrAuthentication)
	})
	t.Run("not hex", func(t *testing.T) {
		assert.ErrorIs(t, a.Authenticate(ctx, Credential{Signature: "zz", Body: body}), domain.ErrAuthentication)
	})
	t.Run("secret store failure is not an auth error", func(t *testing.T) {
		broken := HMACBody{Secrets: staticSecret{err: errors.New("db down")}}
		err := broken.Authenticate(ctx, Credential{Signature: sig, Body: body})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrAuthentication)
	})
}

func TestTwilioSignature(t *testing.T) {
	ctx := context.Background()
	params := url.Values{"From": {"+8801712345678"}, "Body": {"TrxID ABC123XYZ"}, "To": {"+15005550006"}}
	const hook = "https://pay.example.com/api/v1/sms/carrier/twilio"
	sig := TwilioSign("tw-token", hook, params)

	a := TwilioSignature{AuthToken: "tw-token"}
	assert.NoError(t, a.Authenticate(ctx, Credential{Signature: sig, URL: hook, Params: params}))

	behindProxy := TwilioSignature{AuthToken: "tw-token", BaseURL: hook}
	assert.NoError(t, behindProxy.Authenticate(ctx, Credential{Signature: sig, URL: "http://10.0.0.5/api/v1/sms/carrier/twilio", Params: params}))

	params.Set("Body", "TrxID OTHER")
	assert.ErrorIs(t, a.Authenticate(ctx, Credential{Signature: sig, URL: hook, Params: params}), domain.ErrAuthentication)
}

func TestTwilioSign_SortsKeys(t *testing.T) {
	a := TwilioSign("t", "https://x", url.Values{"b": {"2"}, "a": {"1"}})
	b := TwilioSign("t", "https://x", url.Values{"a": {"1"}, "b": {"2"}})
	assert.Equal(t, a, b)
}

func TestLoopbackBypass(t *testing.T) {
	ctx := context.Background()
	strict := StaticKey{Key: "k"}

	on := LoopbackBypass{Enabled: true, Next: strict}
	assert.NoError(t, on.Authenticate(ctx, Credential{RemoteAddr: "127.0.0.1:5050"}))
	assert.NoError(t, on.Authenticate(ctx, Credential{RemoteAddr: "[::1]:5050"}))
	assert.ErrorIs(t, on.Authenticate(ctx, Credential{RemoteAddr: "203.0.113.9:5050"}), domain.ErrAuthentication)

	off := LoopbackBypass{Enabled: false, Next: strict}
	assert.ErrorIs(t, off.Authenticate(ctx, Credential{RemoteAddr: "127.0.0.1:5050"}), domain.ErrAuthentication)
}

func TestMerchantIdentity(t *testing.T) {
	assert.NoError(t, MerchantIdentity{}.Authenticate(context.Background(), Credential{Merchant: "m-1"}))
	assert.ErrorIs(t, MerchantIdentity{}.Authenticate(context.Background(), Credential{}), domain.ErrAuthentication)
}
