package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRecordAndList(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	id, err := r.Record(ctx, Proof{
		Model:    "claude-3-5-sonnet",
		Provider: "anthropic",
		Strategy: "tls_per_message",
		Stage:    "part_0_per_message",
		Path:     "model_ips/claude_1.json",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = r.Record(ctx, Proof{
		Model:     "gpt-4o",
		Provider:  "unknown",
		Strategy:  "proxy",
		Stage:     "proxy",
		Path:      "proofs/proxy_1.json",
		CreatedAt: time.Now().UTC().Add(time.Minute),
	})
	require.NoError(t, err)

	proofs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, proofs, 2)

	// Newest first.
	assert.Equal(t, "gpt-4o", proofs[0].Model)
	assert.Equal(t, "claude-3-5-sonnet", proofs[1].Model)
	assert.Equal(t, id, proofs[1].ID)
}

func TestListEmpty(t *testing.T) {
	r := openTest(t)
	proofs, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, proofs)
}
