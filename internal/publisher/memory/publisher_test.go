package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	id1, err := p.Publish(ctx, "regulations", map[string]string{"natural_key": "UU/2024/1"})
	require.NoError(t, err)
	id2, err := p.Publish(ctx, "regulations", map[string]string{"natural_key": "UU/2024/2"})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "regulations", msgs[0].Topic)

	// Messages returns a copy.
	msgs[0].Topic = "mutated"
	require.Equal(t, "regulations", p.Messages()[0].Topic)
}
