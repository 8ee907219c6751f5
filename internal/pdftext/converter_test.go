package pdftext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := New().Convert(context.Background(), nil)
	require.Error(t, err)
}

func TestConvertRejectsGarbageInput(t *testing.T) {
	t.Parallel()

	_, err := New().Convert(context.Background(), []byte("this is not a pdf"))
	require.Error(t, err)
}

func TestConvertRecoversFromParserPanic(t *testing.T) {
	t.Parallel()

	// A truncated header is enough to drive the reader into its panicking
	// xref handling on some inputs; either way Convert must return an error,
	// never panic.
	data := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n<</Root 1 0 R>>")
	_, err := New().Convert(context.Background(), data)
	require.Error(t, err)
}

func TestConvertHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Convert(ctx, []byte("%PDF-1.7"))
	require.ErrorIs(t, err, context.Canceled)
}
