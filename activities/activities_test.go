package activities

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-workflows/activitytester"
	"github.com/cschleiden/go-workflows/workflow"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/store"
	"github.com/cschleiden/orderflow/store/memstore"
)

func newActivities(t *testing.T, opts ...Option) (*Activities, store.Store, *clock.Mock) {
	t.Helper()

	s, err := memstore.New()
	require.NoError(t, err)
	require.NoError(t, s.SetStock(context.Background(), "SKU-1", 5))

	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	return New(s, append([]Option{WithClock(c)}, opts...)...), s, c
}

func testContext() context.Context {
	return activitytester.WithActivityTestState(context.Background(), "activity-1", "order-ORD-1", nil)
}

func requireErrorType(t *testing.T, err error, permanent bool, typ string) {
	t.Helper()

	f := failure.Classify("", workflow.NewError(err))
	if permanent {
		require.Equal(t, failure.NonRetryable, f.Kind)
	}
	require.Equal(t, typ, f.Type)
}

func Test_ValidateOrder(t *testing.T) {
	a, _, _ := newActivities(t)
	ctx := testContext()

	require.NoError(t, a.ValidateOrder(ctx, Order{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 100, Quantity: 1}))

	err := a.ValidateOrder(ctx, Order{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 0, Quantity: 1})
	require.EqualError(t, err, "Invalid amount: 0")
	require.False(t, workflow.CanRetry(err))

	err = a.ValidateOrder(ctx, Order{OrderID: "ORD-1", Amount: 10, Quantity: 1})
	require.EqualError(t, err, "Missing customer id")
}

func Test_AuthorizePayment_IsIdempotent(t *testing.T) {
	a, s, c := newActivities(t)
	ctx := testContext()

	req := PaymentRequest{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 100}

	authID, err := a.AuthorizePayment(ctx, req)
	require.NoError(t, err)
	require.Regexp(t, `^AUTH-[0-9A-F]{8}$`, authID)

	again, err := a.AuthorizePayment(ctx, req)
	require.NoError(t, err)
	require.Equal(t, authID, again)

	payments, err := s.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, c.Now(), payments[0].AuthorizedAt)
}

func Test_AuthorizePayment_DifferentTermsDeclined(t *testing.T) {
	a, _, _ := newActivities(t)
	ctx := testContext()

	_, err := a.AuthorizePayment(ctx, PaymentRequest{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 100})
	require.NoError(t, err)

	_, err = a.AuthorizePayment(ctx, PaymentRequest{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 200})
	require.Error(t, err)
	require.False(t, workflow.CanRetry(err))
}

func Test_AuthorizePayment_Limit(t *testing.T) {
	a, _, _ := newActivities(t, WithPaymentLimit(500))

	_, err := a.AuthorizePayment(testContext(), PaymentRequest{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 501})
	requireErrorType(t, err, true, failure.PaymentDeclinedErrorType)
}

func Test_CaptureAndRefund(t *testing.T) {
	a, s, c := newActivities(t)
	ctx := testContext()

	authID, err := a.AuthorizePayment(ctx, PaymentRequest{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 100})
	require.NoError(t, err)

	c.Add(time.Minute)
	require.NoError(t, a.CapturePayment(ctx, authID, 100))
	require.NoError(t, a.CapturePayment(ctx, authID, 100))

	p, err := s.GetPayment(ctx, authID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentCaptured, p.State)
	require.Equal(t, c.Now(), *p.CapturedAt)

	require.NoError(t, a.RefundPayment(ctx, authID, 100))
	require.NoError(t, a.RefundPayment(ctx, authID, 100))

	p, err = s.GetPayment(ctx, authID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentRefunded, p.State)

	// A refunded payment cannot be captured again
	err = a.CapturePayment(ctx, authID, 100)
	require.Error(t, err)
	require.False(t, workflow.CanRetry(err))
}

func Test_RefundPayment_VoidsAuthorization(t *testing.T) {
	a, s, _ := newActivities(t)
	ctx := testContext()

	authID, err := a.AuthorizePayment(ctx, PaymentRequest{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 100})
	require.NoError(t, err)

	require.NoError(t, a.RefundPayment(ctx, authID, 100))

	p, err := s.GetPayment(ctx, authID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentVoided, p.State)
}

func Test_CapturePayment_UnknownAuthorization(t *testing.T) {
	a, _, _ := newActivities(t)

	err := a.CapturePayment(testContext(), "AUTH-UNKNOWN", 100)
	require.Error(t, err)
	require.False(t, workflow.CanRetry(err))
}

func Test_Inventory(t *testing.T) {
	a, s, _ := newActivities(t)
	ctx := testContext()

	ok, err := a.CheckInventory(ctx, StockRequest{OrderID: "ORD-1", SKU: "SKU-1", Quantity: 5})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.CheckInventory(ctx, StockRequest{OrderID: "ORD-1", SKU: "SKU-1", Quantity: 6})
	require.NoError(t, err)
	require.False(t, ok)

	n, err := a.ReserveStock(ctx, StockRequest{OrderID: "ORD-1", SKU: "SKU-1", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = a.ReserveStock(ctx, StockRequest{OrderID: "ORD-1", SKU: "SKU-1", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = a.ReserveStock(ctx, StockRequest{OrderID: "ORD-2", SKU: "SKU-1", Quantity: 3})
	requireErrorType(t, err, true, failure.InsufficientStockErrorType)

	require.NoError(t, a.ReleaseInventory(ctx, "ORD-1"))
	require.NoError(t, a.ReleaseInventory(ctx, "ORD-1"))
	require.NoError(t, a.ReleaseInventory(ctx, "ORD-UNKNOWN"))

	avail, err := s.Available(ctx, "SKU-1")
	require.NoError(t, err)
	require.Equal(t, 5, avail)
}

func Test_SendNotification_OncePerKey(t *testing.T) {
	a, s, _ := newActivities(t, WithNotificationCacheTTL(time.Minute))
	ctx := testContext()

	n := Notification{Key: "order-confirmed:ORD-1", Recipient: "cust-1", Message: "Order ORD-1 confirmed!"}
	require.NoError(t, a.SendNotification(ctx, n))
	require.NoError(t, a.SendNotification(ctx, n))

	ns, err := s.ListNotifications(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	require.Equal(t, "Order ORD-1 confirmed!", ns[0].Message)
}

func Test_SendNotification_DeduplicatesAcrossWorkers(t *testing.T) {
	a, s, _ := newActivities(t)
	ctx := testContext()

	// A second worker shares the store but not the cache
	other := New(s)

	n := Notification{Key: "poll:target-1:1", Recipient: SystemRecipient, Message: "Poll #1 for target-1"}
	require.NoError(t, a.SendNotification(ctx, n))
	require.NoError(t, other.SendNotification(ctx, n))

	ns, err := s.ListNotifications(ctx, SystemRecipient)
	require.NoError(t, err)
	require.Len(t, ns, 1)
}

func Test_Poll(t *testing.T) {
	a, s, _ := newActivities(t)
	ctx := testContext()

	require.NoError(t, a.Poll(ctx, "target-1", 1))
	require.NoError(t, a.Poll(ctx, "target-1", 2))

	ns, err := s.ListNotifications(ctx, SystemRecipient)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	require.Equal(t, "Poll #2 for target-1", ns[1].Message)
}

func Test_GenerateOrderReport(t *testing.T) {
	a, s, c := newActivities(t)
	ctx := testContext()

	for _, o := range []PaymentRequest{
		{OrderID: "ORD-1", CustomerID: "cust-1", Amount: 100},
		{OrderID: "ORD-2", CustomerID: "cust-2", Amount: 250},
		{OrderID: "ORD-3", CustomerID: "cust-3", Amount: 999},
	} {
		authID, err := a.AuthorizePayment(ctx, o)
		require.NoError(t, err)

		// ORD-3 is only authorized
		if o.OrderID != "ORD-3" {
			require.NoError(t, a.CapturePayment(ctx, authID, o.Amount))
		}
	}

	summary, err := a.GenerateOrderReport(ctx, ReportRequest{Date: "2024-05-01"})
	require.NoError(t, err)
	require.Equal(t, "Report[2024-05-01]: orders=2, revenue=350", summary)

	// Generated once per date
	c.Add(time.Hour)
	authID, err := a.AuthorizePayment(ctx, PaymentRequest{OrderID: "ORD-4", CustomerID: "cust-4", Amount: 1})
	require.NoError(t, err)
	require.NoError(t, a.CapturePayment(ctx, authID, 1))

	again, err := a.GenerateOrderReport(ctx, ReportRequest{Date: "2024-05-01", Previous: summary})
	require.NoError(t, err)
	require.Equal(t, summary, again)

	empty, err := a.GenerateOrderReport(ctx, ReportRequest{Date: "2024-04-30"})
	require.NoError(t, err)
	require.Equal(t, "Report[2024-04-30]: orders=0, revenue=0", empty)

	r, err := s.GetReport(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, int64(350), r.Revenue)
}
