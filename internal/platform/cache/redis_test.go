package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		client, err := New(context.Background(), addr)
		require.NoError(t, err, addr)
		require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		require.NoError(t, client.Close())
	}
	mr.CheckGet(t, "k", "v")
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "redis://host:6379/notadb")
	assert.ErrorContains(t, err, "parse url")
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), addr)
	assert.ErrorContains(t, err, "unreachable")
}
