package election

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultBidFuncNeverErrors(t *testing.T) {
	bid, err := DefaultBidFunc(context.Background(), 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, bid, 10)
}

func TestDefaultBidFuncRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bid, err := DefaultBidFunc(ctx, 3)
	require.NoError(t, err)
	require.GreaterOrEqual(t, bid, 0)
}
