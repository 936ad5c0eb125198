package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "job-42")
	headers := messageHeaders(ctx, "tokenscope-test")

	assert.Equal(t, "job-42", ExtractTraceID(kafka.Message{Headers: headers}))
	assert.Empty(t, ExtractTraceID(kafka.Message{Headers: messageHeaders(context.Background(), "")}))
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"score": 61})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":61}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}

func TestHookChainStopsOnBeforeError(t *testing.T) {
	var calls []string
	first := HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
		calls = append(calls, "first")
		return WithTraceID(ctx, ExtractTraceID(km)), km, data, nil
	}}
	failing := HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
		calls = append(calls, "failing")
		return ctx, km, data, errors.New("bad payload")
	}}
	never := HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
		calls = append(calls, "never")
		return ctx, km, data, nil
	}}

	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	_, _, _, err := NewHookChain(first, failing, never).BeforeHandle(context.Background(), "t", km, nil)
	require.Error(t, err)
	assert.Equal(t, []string{"first", "failing"}, calls)
}

func TestHookChainRecoversPanics(t *testing.T) {
	var reported error
	panicking := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("after") },
	}
	recorder := HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { reported = err }}
	chain := NewHookChain(nil, recorder, panicking)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Same(t, err, reported)

	assert.NotPanics(t, func() { chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil) })
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceID(ctx))
	assert.Equal(t, ctx, WithTraceID(ctx, ""))

	now := time.Now()
	got, ok := StartTime(WithStartTime(ctx, now))
	require.True(t, ok)
	assert.Equal(t, now, got)
}
