package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier_TraceContextSurvivesHeaders(t *testing.T) {
	prop := propagation.TraceContext{}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg := kafka.Message{Headers: []kafka.Header{{Key: "x-other", Value: []byte("1")}}}
	prop.Inject(ctx, headerCarrier{hs: &msg.Headers})
	require.Len(t, msg.Headers, 2)

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), headerCarrier{hs: &msg.Headers}))
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	var hs []kafka.Header
	c := headerCarrier{hs: &hs}
	c.Set("k", "a")
	c.Set("k", "b")
	assert.Equal(t, "b", c.Get("k"))
	assert.Equal(t, []string{"k"}, c.Keys())
	assert.Equal(t, "", c.Get("missing"))
}
