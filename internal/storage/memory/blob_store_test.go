package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "UU/2024/1.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "memory://UU/2024/1.pdf", uri)

	data, ok := store.Get("UU/2024/1.pdf")
	require.True(t, ok)
	require.Equal(t, []byte("%PDF"), data)
	require.Equal(t, 1, store.Len())

	// Overwrite keeps a single object per path.
	_, err = store.PutObject(context.Background(), "UU/2024/1.pdf", "application/pdf", []byte("v2"))
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
}
