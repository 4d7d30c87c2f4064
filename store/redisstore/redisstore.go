// Package redisstore implements store.Store on Redis. Read-modify-write operations run as
// optimistic WATCH/MULTI transactions and are retried when a watched key changed concurrently.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/cschleiden/orderflow/store"
)

type redisStore struct {
	rdb     redis.UniversalClient
	options *Options
}

var _ store.Store = (*redisStore)(nil)

func New(client redis.UniversalClient, opts ...Option) (*redisStore, error) {
	options := &Options{
		KeyPrefix:          "orderflow:",
		MaxConflictRetries: 10,
		ConflictBackoff:    5 * time.Millisecond,
		NotificationTTL:    7 * 24 * time.Hour,
	}

	for _, opt := range opts {
		opt(options)
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &redisStore{rdb: client, options: options}, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

// transact runs fn in a transaction watching keys, retrying when another client modified one of
// them before the transaction executed.
func (s *redisStore) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	b := retry.WithMaxRetries(s.options.MaxConflictRetries, retry.NewExponential(s.options.ConflictBackoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}

		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}

	return err
}

func getJSON[T any](ctx context.Context, c redis.Cmdable, key string) (*T, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}

	return &v, nil
}

func setJSON(ctx context.Context, p redis.Pipeliner, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	return p.Set(ctx, key, raw, 0).Err()
}

func (s *redisStore) CreatePayment(ctx context.Context, p *store.Payment) (*store.Payment, bool, error) {
	prefix := s.options.KeyPrefix
	orderKey := paymentByOrderKey(prefix, p.OrderID)

	var result *store.Payment
	created := false

	err := s.transact(ctx, func(tx *redis.Tx) error {
		authID, err := tx.Get(ctx, orderKey).Result()
		if err == nil {
			existing, err := getJSON[store.Payment](ctx, tx, paymentKey(prefix, authID))
			if err != nil {
				return err
			}

			if existing == nil {
				return fmt.Errorf("payment %s of order %s: %w", authID, p.OrderID, store.ErrNotFound)
			}

			result, created = existing, false
			return nil
		} else if !errors.Is(err, redis.Nil) {
			return err
		}

		n := *p
		n.Version = 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, orderKey, n.AuthorizationID, 0)
			pipe.SAdd(ctx, paymentsKey(prefix), n.AuthorizationID)
			return setJSON(ctx, pipe, paymentKey(prefix, n.AuthorizationID), &n)
		})
		if err != nil {
			return err
		}

		result, created = &n, true
		return nil
	}, orderKey)
	if err != nil {
		return nil, false, err
	}

	return result, created, nil
}

func (s *redisStore) GetPayment(ctx context.Context, authorizationID string) (*store.Payment, error) {
	p, err := getJSON[store.Payment](ctx, s.rdb, paymentKey(s.options.KeyPrefix, authorizationID))
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, fmt.Errorf("payment %s: %w", authorizationID, store.ErrNotFound)
	}

	return p, nil
}

func (s *redisStore) UpdatePayment(ctx context.Context, authorizationID string, update func(p *store.Payment) error) (*store.Payment, error) {
	key := paymentKey(s.options.KeyPrefix, authorizationID)

	var result *store.Payment
	err := s.transact(ctx, func(tx *redis.Tx) error {
		p, err := getJSON[store.Payment](ctx, tx, key)
		if err != nil {
			return err
		}

		if p == nil {
			return fmt.Errorf("payment %s: %w", authorizationID, store.ErrNotFound)
		}

		if err := update(p); err != nil {
			return err
		}

		p.Version++

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return setJSON(ctx, pipe, key, p)
		}); err != nil {
			return err
		}

		result = p
		return nil
	}, key)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *redisStore) ListPayments(ctx context.Context) ([]*store.Payment, error) {
	prefix := s.options.KeyPrefix

	ids, err := s.rdb.SMembers(ctx, paymentsKey(prefix)).Result()
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)

	payments := make([]*store.Payment, 0, len(ids))
	for _, id := range ids {
		p, err := getJSON[store.Payment](ctx, s.rdb, paymentKey(prefix, id))
		if err != nil {
			return nil, err
		}

		if p != nil {
			payments = append(payments, p)
		}
	}

	return payments, nil
}

func (s *redisStore) SetStock(ctx context.Context, sku string, quantity int) error {
	return s.rdb.Set(ctx, stockKey(s.options.KeyPrefix, sku), quantity, 0).Err()
}

func (s *redisStore) Available(ctx context.Context, sku string) (int, error) {
	return available(ctx, s.rdb, stockKey(s.options.KeyPrefix, sku))
}

func available(ctx context.Context, c redis.Cmdable, key string) (int, error) {
	n, err := c.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return n, err
}

func (s *redisStore) Reserve(ctx context.Context, orderID, sku string, quantity int) (*store.Reservation, error) {
	prefix := s.options.KeyPrefix
	rkey := reservationKey(prefix, orderID)
	skey := stockKey(prefix, sku)

	var result *store.Reservation
	err := s.transact(ctx, func(tx *redis.Tx) error {
		existing, err := getJSON[store.Reservation](ctx, tx, rkey)
		if err != nil {
			return err
		}

		if existing != nil {
			result = existing
			return nil
		}

		avail, err := available(ctx, tx, skey)
		if err != nil {
			return err
		}

		if avail < quantity {
			return fmt.Errorf("reserving %d of %s for %s, %d available: %w", quantity, sku, orderID, avail, store.ErrInsufficientStock)
		}

		r := &store.Reservation{OrderID: orderID, SKU: sku, Quantity: quantity}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, skey, avail-quantity, 0)
			return setJSON(ctx, pipe, rkey, r)
		}); err != nil {
			return err
		}

		result = r
		return nil
	}, rkey, skey)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *redisStore) Release(ctx context.Context, orderID string) (*store.Reservation, error) {
	prefix := s.options.KeyPrefix
	rkey := reservationKey(prefix, orderID)

	r, err := getJSON[store.Reservation](ctx, s.rdb, rkey)
	if err != nil {
		return nil, err
	}

	if r == nil {
		return nil, fmt.Errorf("reservation for %s: %w", orderID, store.ErrNotFound)
	}

	skey := stockKey(prefix, r.SKU)

	err = s.transact(ctx, func(tx *redis.Tx) error {
		cur, err := getJSON[store.Reservation](ctx, tx, rkey)
		if err != nil {
			return err
		}

		if cur == nil {
			return fmt.Errorf("reservation for %s: %w", orderID, store.ErrNotFound)
		}

		r = cur
		if r.Released {
			return nil
		}

		avail, err := available(ctx, tx, skey)
		if err != nil {
			return err
		}

		r.Released = true
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, skey, avail+r.Quantity, 0)
			return setJSON(ctx, pipe, rkey, r)
		})
		return err
	}, rkey, skey)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (s *redisStore) SaveReport(ctx context.Context, r *store.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.rdb.Set(ctx, reportKey(s.options.KeyPrefix, r.Date), raw, 0).Err()
}

func (s *redisStore) GetReport(ctx context.Context, date string) (*store.Report, error) {
	r, err := getJSON[store.Report](ctx, s.rdb, reportKey(s.options.KeyPrefix, date))
	if err != nil {
		return nil, err
	}

	if r == nil {
		return nil, fmt.Errorf("report %s: %w", date, store.ErrNotFound)
	}

	return r, nil
}

func (s *redisStore) AppendNotification(ctx context.Context, n *store.Notification) (bool, error) {
	prefix := s.options.KeyPrefix

	raw, err := json.Marshal(n)
	if err != nil {
		return false, err
	}

	ok, err := s.rdb.SetNX(ctx, notificationKey(prefix, n.Key), 1, s.options.NotificationTTL).Result()
	if err != nil || !ok {
		return false, err
	}

	if err := s.rdb.RPush(ctx, notificationsKey(prefix, n.Recipient), raw).Err(); err != nil {
		return false, err
	}

	return true, nil
}

func (s *redisStore) ListNotifications(ctx context.Context, recipient string) ([]*store.Notification, error) {
	raws, err := s.rdb.LRange(ctx, notificationsKey(s.options.KeyPrefix, recipient), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ns := make([]*store.Notification, 0, len(raws))
	for _, raw := range raws {
		var n store.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, err
		}

		ns = append(ns, &n)
	}

	return ns, nil
}

func (s *redisStore) RecordRun(ctx context.Context, workflowID, executionID string) error {
	return s.rdb.HSet(ctx, runsKey(s.options.KeyPrefix), workflowID, executionID).Err()
}

func (s *redisStore) Run(ctx context.Context, workflowID string) (string, error) {
	id, err := s.rdb.HGet(ctx, runsKey(s.options.KeyPrefix), workflowID).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("workflow %s: %w", workflowID, store.ErrNotFound)
	}

	return id, err
}

func (s *redisStore) DeleteRun(ctx context.Context, workflowID string) error {
	return s.rdb.HDel(ctx, runsKey(s.options.KeyPrefix), workflowID).Err()
}
