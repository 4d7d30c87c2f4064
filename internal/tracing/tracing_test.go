package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Setup(t *testing.T) {
	ctx := context.Background()

	tp, shutdown, err := Setup(ctx, Options{Exporter: "none"})
	require.NoError(t, err)
	require.NotNil(t, tp)
	require.NoError(t, shutdown(ctx))

	tp, shutdown, err = Setup(ctx, Options{Service: "orderflow", Version: "test", Exporter: "stdout"})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "span")
	span.End()

	require.NoError(t, shutdown(ctx))

	_, _, err = Setup(ctx, Options{Exporter: "zipkin"})
	require.Error(t, err)
}

func Test_WithSpanError(t *testing.T) {
	ctx := context.Background()

	tp, shutdown, err := Setup(ctx, Options{Exporter: "none"})
	require.NoError(t, err)
	defer shutdown(ctx)

	_, span := tp.Tracer("test").Start(ctx, "span")
	defer span.End()

	require.NoError(t, WithSpanError(span, nil))

	err = errors.New("boom")
	require.Same(t, err, WithSpanError(span, err))
}
