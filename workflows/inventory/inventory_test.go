package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/cschleiden/go-workflows/tester"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/store"
	"github.com/cschleiden/orderflow/store/memstore"
)

func newTester(t *testing.T, stock int) (tester.WorkflowTester[string], store.Store) {
	t.Helper()

	s, err := memstore.New()
	require.NoError(t, err)
	require.NoError(t, s.SetStock(context.Background(), "sku-1", stock))

	wt := tester.NewWorkflowTester[string](ReserveInventory)
	require.NoError(t, wt.Registry().RegisterActivity(activities.New(s)))

	return wt, s
}

func Test_ReserveInventory(t *testing.T) {
	wt, s := newTester(t, 5)

	wt.Execute(context.Background(), Input{OrderID: "ORD-1", SKU: "sku-1", Quantity: 3})

	require.True(t, wt.WorkflowFinished())

	r, err := wt.WorkflowResult()
	require.NoError(t, err)
	require.Equal(t, "Inventory reserved: 3 items", r)

	n, err := s.Available(context.Background(), "sku-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func Test_ReserveInventory_Insufficient(t *testing.T) {
	wt, s := newTester(t, 2)

	wt.Execute(context.Background(), Input{OrderID: "ORD-2", SKU: "sku-1", Quantity: 3})

	require.True(t, wt.WorkflowFinished())

	_, err := wt.WorkflowResult()
	require.ErrorContains(t, err, "Insufficient inventory for orderId=ORD-2")

	f := failure.Classify("reserve-inventory", err)
	require.Equal(t, failure.NonRetryable, f.Kind)
	require.Equal(t, failure.InsufficientStockErrorType, f.Type)

	n, err := s.Available(context.Background(), "sku-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func Test_ReserveInventory_RetriesTransientFailures(t *testing.T) {
	wt, _ := newTester(t, 5)

	wt.OnActivity(a.ReserveStock, mock.Anything, mock.Anything).Return(0, errors.New("connection reset")).Once()
	wt.OnActivity(a.ReserveStock, mock.Anything, mock.Anything).Return(1, nil).Once()

	wt.Execute(context.Background(), Input{OrderID: "ORD-3", SKU: "sku-1", Quantity: 1})

	require.True(t, wt.WorkflowFinished())

	r, err := wt.WorkflowResult()
	require.NoError(t, err)
	require.Equal(t, "Inventory reserved: 1 items", r)

	wt.AssertExpectations(t)
}
