package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NewNop()
	require.NotPanics(t, func() {
		l.Trace("t")
		l.Debug("d", zap.String("k", "v"))
		l.Info("i")
		l.Warn("w")
		l.Error("e")
	})
}

func TestWithAttachesFields(t *testing.T) {
	l := NewNop().With(zap.String("request_id", "abc"))
	require.NotNil(t, l)
	require.NotPanics(t, func() { l.Info("hello") })
}
