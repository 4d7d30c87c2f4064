package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/stretchr/testify/require"
)

func Test_Classify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantType string
	}{
		{
			name:     "plain error",
			err:      errors.New("connection reset"),
			wantKind: Transient,
		},
		{
			name:     "canceled",
			err:      fmt.Errorf("waiting: %w", context.Canceled),
			wantKind: Canceled,
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			wantKind: Timeout,
		},
		{
			name:     "retryable activity error",
			err:      workflow.NewError(NewInsufficientStockError("ORD-1", 5, 2)),
			wantKind: Transient,
			wantType: InsufficientStockErrorType,
		},
		{
			name:     "permanent activity error",
			err:      NonRetryable(NewValidationError("amount", "Invalid amount: 0")),
			wantKind: NonRetryable,
			wantType: ValidationErrorType,
		},
		{
			name:     "exported child failure",
			err:      Export(&Failure{Kind: Timeout, Step: "process-payment", Message: "no result within 1m0s"}),
			wantKind: Timeout,
		},
		{
			name:     "failure passes through",
			err:      New(Canceled, "reserve", "canceled"),
			wantKind: Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify("step", tt.err)

			require.Equal(t, tt.wantKind, f.Kind)
			require.Equal(t, tt.wantType, f.Type)
			require.NotEmpty(t, f.Step)
		})
	}
}

func Test_Classify_Nil(t *testing.T) {
	require.Nil(t, Classify("step", nil))
}

func Test_Classify_KeepsExistingStep(t *testing.T) {
	f := Classify("outer", New(Transient, "inner", "boom"))
	require.Equal(t, "inner", f.Step)

	f = Classify("outer", New(Transient, "", "boom"))
	require.Equal(t, "outer", f.Step)
}

func Test_Export_RoundTripsKindAndRootType(t *testing.T) {
	activityErr := NonRetryable(NewPaymentDeclinedError("cust-1", "amount 5000 exceeds limit 100"))

	inner := Classify("authorize-payment", activityErr)
	require.Equal(t, NonRetryable, inner.Kind)

	// Child workflow exports, parent classifies again
	parent := Classify("process-payment", Export(inner))
	require.Equal(t, NonRetryable, parent.Kind)
	require.Equal(t, PaymentDeclinedErrorType, parent.Type)
	require.Contains(t, parent.Message, "exceeds limit 100")

	// And once more one level up
	top := Classify("order", Export(parent))
	require.Equal(t, NonRetryable, top.Kind)
	require.Equal(t, PaymentDeclinedErrorType, top.Type)
}

func Test_Export_KeepsWorkflowRaisedType(t *testing.T) {
	f := &Failure{Kind: NonRetryable, Step: "check-inventory", Type: InsufficientStockErrorType, Message: "Insufficient inventory for orderId=ORD-1"}

	c := Classify("reserve-inventory", Export(f))
	require.Equal(t, NonRetryable, c.Kind)
	require.Equal(t, InsufficientStockErrorType, c.Type)
}

func Test_Export_LeavesOtherErrors(t *testing.T) {
	require.Nil(t, Export(nil))

	err := errors.New("continue as new")
	require.Same(t, err, Export(err))
}

func Test_Chain(t *testing.T) {
	err := Export(Classify("process-payment", Export(Classify("authorize-payment",
		NonRetryable(NewPaymentDeclinedError("cust-1", "over limit"))))))

	var werr *workflow.Error
	require.ErrorAs(t, err, &werr)

	links := Chain(werr)
	require.GreaterOrEqual(t, len(links), 3)
	require.Equal(t, "NonRetryable", links[0].Kind)
	require.Equal(t, "NonRetryable", links[1].Kind)
	require.Equal(t, PaymentDeclinedErrorType, links[len(links)-1].Type)
}

func Test_Failure_Error(t *testing.T) {
	f := &Failure{Kind: Transient, Step: "capture-payment", Message: "provider unavailable", Attempts: 5}
	require.Equal(t, "capture-payment: transient: provider unavailable (after 5 attempts)", f.Error())

	f = &Failure{Kind: NonRetryable, Type: ValidationErrorType, Message: "Invalid amount: 0"}
	require.Equal(t, "nonretryable ValidationError: Invalid amount: 0", f.Error())
}

func Test_Is(t *testing.T) {
	require.True(t, Is(New(Timeout, "x", "slow"), Timeout))
	require.False(t, Is(nil, Transient))
	require.True(t, Is(fmt.Errorf("wrapped: %w", New(Canceled, "x", "")), Canceled))
}

func Test_ParseKind(t *testing.T) {
	for _, k := range []Kind{Transient, NonRetryable, Timeout, Canceled} {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}

	_, ok := ParseKind("Unknown")
	require.False(t, ok)
}
