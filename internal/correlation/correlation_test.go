package correlation

import (
	"context"
	"testing"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/stretchr/testify/require"
)

func Test_Propagator_RoundTrip(t *testing.T) {
	p := &Propagator{}

	ctx := WithID(context.Background(), "corr-1")

	md := &workflow.Metadata{}
	require.NoError(t, p.Inject(ctx, md))

	out, err := p.Extract(context.Background(), md)
	require.NoError(t, err)
	require.Equal(t, "corr-1", ID(out))
}

func Test_Propagator_NoID(t *testing.T) {
	p := &Propagator{}

	md := &workflow.Metadata{}
	require.NoError(t, p.Inject(context.Background(), md))

	ctx := context.Background()
	out, err := p.Extract(ctx, md)
	require.NoError(t, err)
	require.Empty(t, ID(out))
}

func Test_Ensure(t *testing.T) {
	ctx := Ensure(context.Background())
	id := ID(ctx)
	require.NotEmpty(t, id)

	require.Equal(t, id, ID(Ensure(ctx)))
}
