package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, secret string) *Vault {
	t.Helper()
	v, err := New(secret)
	require.NoError(t, err)
	return v
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := newTestVault(t, "test-secret")
	inputs := []string{
		"",
		"01712345678",
		"You have received Tk 1,000.00 from 01712345678. TrxID ABC123XYZ",
		"আপনি ৳৫০০ পেয়েছেন",
	}
	for _, in := range inputs {
		blob, err := v.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, blob)
		assert.Equal(t, in, v.Decrypt(blob))
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	v := newTestVault(t, "test-secret")
	a, err := v.Encrypt("same")
	require.NoError(t, err)
	b, err := v.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_TolerantOfNonCiphertext(t *testing.T) {
	v := newTestVault(t, "test-secret")
	inputs := []string{
		// legacy plaintext phone
		"01712345678",
		// invalid base64
		"not base64 at all!",
		// valid base64, shorter than a nonce
		"YWJj",
		// long enough, fails authentication
		base64.StdEncoding.EncodeToString([]byte("0123456789abcdefghijklmnop")),
		"",
	}
	for _, in := range inputs {
		assert.Equal(t, in, v.Decrypt(in), "input %q", in)
	}
}

func TestDecrypt_AfterSecretRotationReturnsStoredText(t *testing.T) {
	oldVault := newTestVault(t, "old-secret")
	newVault := newTestVault(t, "new-secret")

	blob, err := oldVault.Encrypt("01712345678")
	require.NoError(t, err)
	assert.Equal(t, blob, newVault.Decrypt(blob))
}

func TestHash_StableAndKeyed(t *testing.T) {
	a := newTestVault(t, "secret-a")
	b := newTestVault(t, "secret-b")

	assert.Equal(t, a.Hash("token"), a.Hash("token"))
	assert.Len(t, a.Hash("token"), 64)
	assert.NotEqual(t, a.Hash("token"), a.Hash("token2"))
	assert.NotEqual(t, a.Hash("token"), b.Hash("token"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "*******5678", Mask("01712345678", 4))
	assert.Equal(t, "abc", Mask("abc", 4))
	assert.Equal(t, "***", Mask("abc", 0))
	assert.Equal(t, "**ঙ", Mask("কখঙ", 1))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "017****5678", MaskPhone("01712345678"))
	assert.Equal(t, "+88*******5678", MaskPhone("+8801712345678"))
	assert.Equal(t, "12345", MaskPhone("12345"))
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)

	_, err = GenerateToken(0)
	assert.Error(t, err)
}
