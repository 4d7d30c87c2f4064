// Package storetest holds behavior tests shared by all store.Store implementations.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/store"
)

func StoreTest(t *testing.T, setup func() store.Store, teardown func(s store.Store)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, s store.Store)
	}{
		{
			name: "CreatePayment_OncePerOrder",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				orderID := uuid.NewString()

				p, created, err := s.CreatePayment(ctx, payment(orderID, "AUTH-1"))
				require.NoError(t, err)
				require.True(t, created)
				require.Equal(t, int64(1), p.Version)

				p, created, err = s.CreatePayment(ctx, payment(orderID, "AUTH-2"))
				require.NoError(t, err)
				require.False(t, created)
				require.Equal(t, "AUTH-1", p.AuthorizationID)
			},
		},
		{
			name: "GetPayment_NotFound",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				_, err := s.GetPayment(ctx, "AUTH-missing")
				require.ErrorIs(t, err, store.ErrNotFound)
			},
		},
		{
			name: "UpdatePayment_IncrementsVersion",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				p := payment(uuid.NewString(), "AUTH-"+uuid.NewString())
				_, _, err := s.CreatePayment(ctx, p)
				require.NoError(t, err)

				u, err := s.UpdatePayment(ctx, p.AuthorizationID, func(p *store.Payment) error {
					p.State = store.PaymentCaptured
					return nil
				})
				require.NoError(t, err)
				require.Equal(t, store.PaymentCaptured, u.State)
				require.Equal(t, int64(2), u.Version)

				stored, err := s.GetPayment(ctx, p.AuthorizationID)
				require.NoError(t, err)
				require.Equal(t, store.PaymentCaptured, stored.State)
			},
		},
		{
			name: "UpdatePayment_ErrorLeavesPaymentUnchanged",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				p := payment(uuid.NewString(), "AUTH-"+uuid.NewString())
				_, _, err := s.CreatePayment(ctx, p)
				require.NoError(t, err)

				_, err = s.UpdatePayment(ctx, p.AuthorizationID, func(p *store.Payment) error {
					p.State = store.PaymentVoided
					return store.ErrInvalidTransition
				})
				require.ErrorIs(t, err, store.ErrInvalidTransition)

				stored, err := s.GetPayment(ctx, p.AuthorizationID)
				require.NoError(t, err)
				require.Equal(t, store.PaymentAuthorized, stored.State)
				require.Equal(t, int64(1), stored.Version)
			},
		},
		{
			name: "UpdatePayment_ConcurrentUpdatesAreSerialized",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				p := payment(uuid.NewString(), "AUTH-"+uuid.NewString())
				_, _, err := s.CreatePayment(ctx, p)
				require.NoError(t, err)

				var wg sync.WaitGroup
				for i := 0; i < 5; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()

						_, err := s.UpdatePayment(ctx, p.AuthorizationID, func(p *store.Payment) error {
							p.Amount++
							return nil
						})
						assert.NoError(t, err)
					}()
				}
				wg.Wait()

				stored, err := s.GetPayment(ctx, p.AuthorizationID)
				require.NoError(t, err)
				require.Equal(t, p.Amount+5, stored.Amount)
				require.Equal(t, int64(6), stored.Version)
			},
		},
		{
			name: "Reserve_TakesStockOncePerOrder",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				sku := uuid.NewString()
				require.NoError(t, s.SetStock(ctx, sku, 10))

				r, err := s.Reserve(ctx, "ORD-1", sku, 3)
				require.NoError(t, err)
				require.Equal(t, 3, r.Quantity)

				r, err = s.Reserve(ctx, "ORD-1", sku, 3)
				require.NoError(t, err)
				require.Equal(t, 3, r.Quantity)

				avail, err := s.Available(ctx, sku)
				require.NoError(t, err)
				require.Equal(t, 7, avail)
			},
		},
		{
			name: "Reserve_InsufficientStock",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				sku := uuid.NewString()
				require.NoError(t, s.SetStock(ctx, sku, 2))

				_, err := s.Reserve(ctx, uuid.NewString(), sku, 3)
				require.ErrorIs(t, err, store.ErrInsufficientStock)

				avail, err := s.Available(ctx, sku)
				require.NoError(t, err)
				require.Equal(t, 2, avail)
			},
		},
		{
			name: "Reserve_ConcurrentOrdersNeverOversell",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				sku := uuid.NewString()
				require.NoError(t, s.SetStock(ctx, sku, 5))

				var mu sync.Mutex
				reserved := 0

				var wg sync.WaitGroup
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()

						if _, err := s.Reserve(ctx, fmt.Sprintf("%s-%d", sku, i), sku, 1); err == nil {
							mu.Lock()
							reserved++
							mu.Unlock()
						}
					}(i)
				}
				wg.Wait()

				require.Equal(t, 5, reserved)

				avail, err := s.Available(ctx, sku)
				require.NoError(t, err)
				require.Equal(t, 0, avail)
			},
		},
		{
			name: "Release_ReturnsStockOnce",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				sku := uuid.NewString()
				orderID := uuid.NewString()
				require.NoError(t, s.SetStock(ctx, sku, 4))

				_, err := s.Reserve(ctx, orderID, sku, 4)
				require.NoError(t, err)

				r, err := s.Release(ctx, orderID)
				require.NoError(t, err)
				require.True(t, r.Released)

				_, err = s.Release(ctx, orderID)
				require.NoError(t, err)

				avail, err := s.Available(ctx, sku)
				require.NoError(t, err)
				require.Equal(t, 4, avail)
			},
		},
		{
			name: "Release_WithoutReservation",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				_, err := s.Release(ctx, uuid.NewString())
				require.ErrorIs(t, err, store.ErrNotFound)
			},
		},
		{
			name: "Reports_SaveAndGet",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				date := "2024-01-" + uuid.NewString()[:2]

				_, err := s.GetReport(ctx, date)
				require.ErrorIs(t, err, store.ErrNotFound)

				require.NoError(t, s.SaveReport(ctx, &store.Report{Date: date, Orders: 2, Revenue: 30, Summary: "summary"}))

				r, err := s.GetReport(ctx, date)
				require.NoError(t, err)
				require.Equal(t, "summary", r.Summary)
				require.Equal(t, int64(30), r.Revenue)
			},
		},
		{
			name: "AppendNotification_DeduplicatesKeys",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				recipient := uuid.NewString()
				now := time.Now().UTC()

				stored, err := s.AppendNotification(ctx, &store.Notification{Key: recipient + ":1", Recipient: recipient, Message: "first", SentAt: now})
				require.NoError(t, err)
				require.True(t, stored)

				stored, err = s.AppendNotification(ctx, &store.Notification{Key: recipient + ":1", Recipient: recipient, Message: "again", SentAt: now})
				require.NoError(t, err)
				require.False(t, stored)

				_, err = s.AppendNotification(ctx, &store.Notification{Key: recipient + ":2", Recipient: recipient, Message: "second", SentAt: now.Add(time.Second)})
				require.NoError(t, err)

				ns, err := s.ListNotifications(ctx, recipient)
				require.NoError(t, err)
				require.Len(t, ns, 2)
				require.Equal(t, "first", ns[0].Message)
				require.Equal(t, "second", ns[1].Message)
			},
		},
		{
			name: "Runs_RecordAndDelete",
			f: func(t *testing.T, ctx context.Context, s store.Store) {
				workflowID := "order-" + uuid.NewString()

				_, err := s.Run(ctx, workflowID)
				require.ErrorIs(t, err, store.ErrNotFound)

				require.NoError(t, s.RecordRun(ctx, workflowID, "exec-1"))

				executionID, err := s.Run(ctx, workflowID)
				require.NoError(t, err)
				require.Equal(t, "exec-1", executionID)

				require.NoError(t, s.DeleteRun(ctx, workflowID))

				_, err = s.Run(ctx, workflowID)
				require.ErrorIs(t, err, store.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setup()
			ctx := context.Background()

			tt.f(t, ctx, s)

			if teardown != nil {
				teardown(s)
			}
		})
	}
}

func payment(orderID, authorizationID string) *store.Payment {
	return &store.Payment{
		AuthorizationID: authorizationID,
		OrderID:         orderID,
		CustomerID:      "CUST-1",
		Amount:          100,
		State:           store.PaymentAuthorized,
		AuthorizedAt:    time.Now().UTC(),
	}
}
