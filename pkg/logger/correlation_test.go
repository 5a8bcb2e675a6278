package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithCorrelationIDRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "  req-1  ")
	require.Equal(t, "req-1", CorrelationID(ctx))

	require.Empty(t, CorrelationID(context.Background()))
	require.Empty(t, CorrelationID(WithCorrelationID(context.Background(), "bad id")))
}

func TestFromContextAddsField(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, "info")

	log := FromContext(WithCorrelationID(context.Background(), "req-9"), base)
	log.Info().Msg("essay accepted")
	require.Contains(t, buf.String(), `"correlation_id":"req-9"`)

	buf.Reset()
	log = FromContext(context.Background(), base)
	log.Info().Msg("no id")
	require.NotContains(t, buf.String(), "correlation_id")
}

func TestNormalizeCorrelationID(t *testing.T) {
	id, ok := NormalizeCorrelationID("3f2c-aa_b.c:d")
	require.True(t, ok)
	require.Equal(t, "3f2c-aa_b.c:d", id)

	_, ok = NormalizeCorrelationID("")
	require.False(t, ok)
	_, ok = NormalizeCorrelationID("semi;colon")
	require.False(t, ok)
}
