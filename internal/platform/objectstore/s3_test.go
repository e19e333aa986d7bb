package objectstore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), Options{Region: "auto"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestS3Store_PresignGetUsesCustomEndpoint(t *testing.T) {
	store, err := NewS3Store(context.Background(), Options{
		Bucket:    "proofs",
		Endpoint:  "https://objects.example.test",
		Region:    "auto",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	url, err := store.PresignGet(context.Background(), "bank/42.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "https://objects.example.test/proofs/bank/42.png")
	assert.Contains(t, url, "X-Amz-Signature=")
}
