package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSecrets_RotateStoresEncrypted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	current, err := f.secrets.CurrentSecret(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	secret, err := f.secrets.Rotate(ctx, "merchant")
	require.NoError(t, err)
	assert.Len(t, secret, 64)

	stored, err := f.mem.Settings.Get(ctx, webhookSecretKey)
	require.NoError(t, err)
	assert.NotEqual(t, secret, stored, "secret is encrypted at rest")

	current, err = f.secrets.CurrentSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, secret, current)
}
