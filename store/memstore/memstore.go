// Package memstore implements store.Store in memory on go-memdb. Write transactions are
// serialized by memdb, which gives activities the isolation they need when many workflow
// executions touch the same stock or ledger entries.
package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/cschleiden/orderflow/store"
)

const (
	tablePayments      = "payments"
	tableStock         = "stock"
	tableReservations  = "reservations"
	tableReports       = "reports"
	tableNotifications = "notifications"
	tableRuns          = "runs"
)

type stockRecord struct {
	SKU      string
	Quantity int
}

type runRecord struct {
	WorkflowID  string
	ExecutionID string
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tablePayments: {
				Name: tablePayments,
				Indexes: map[string]*memdb.IndexSchema{
					"id":    {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "AuthorizationID"}},
					"order": {Name: "order", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "OrderID"}},
				},
			},
			tableStock: {
				Name: tableStock,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "SKU"}},
				},
			},
			tableReservations: {
				Name: tableReservations,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "OrderID"}},
				},
			},
			tableReports: {
				Name: tableReports,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Date"}},
				},
			},
			tableNotifications: {
				Name: tableNotifications,
				Indexes: map[string]*memdb.IndexSchema{
					"id":        {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Key"}},
					"recipient": {Name: "recipient", Indexer: &memdb.StringFieldIndex{Field: "Recipient"}},
				},
			},
			tableRuns: {
				Name: tableRuns,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "WorkflowID"}},
				},
			},
		},
	}
}

type memStore struct {
	db *memdb.MemDB
}

var _ store.Store = (*memStore)(nil)

func New() (*memStore, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("creating memdb: %w", err)
	}

	return &memStore{db: db}, nil
}

func (s *memStore) Close() error {
	return nil
}

// Objects stored in memdb must not be modified after insertion, all reads and writes copy.

func clonePayment(p *store.Payment) *store.Payment {
	c := *p
	if p.CapturedAt != nil {
		t := *p.CapturedAt
		c.CapturedAt = &t
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}

	return &c
}

func (s *memStore) CreatePayment(_ context.Context, p *store.Payment) (*store.Payment, bool, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tablePayments, "order", p.OrderID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		return clonePayment(existing.(*store.Payment)), false, nil
	}

	n := clonePayment(p)
	n.Version = 1
	if err := txn.Insert(tablePayments, n); err != nil {
		return nil, false, err
	}

	txn.Commit()

	return clonePayment(n), true, nil
}

func (s *memStore) GetPayment(_ context.Context, authorizationID string) (*store.Payment, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tablePayments, "id", authorizationID)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, fmt.Errorf("payment %s: %w", authorizationID, store.ErrNotFound)
	}

	return clonePayment(raw.(*store.Payment)), nil
}

func (s *memStore) UpdatePayment(_ context.Context, authorizationID string, update func(p *store.Payment) error) (*store.Payment, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tablePayments, "id", authorizationID)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, fmt.Errorf("payment %s: %w", authorizationID, store.ErrNotFound)
	}

	p := clonePayment(raw.(*store.Payment))
	if err := update(p); err != nil {
		return nil, err
	}

	p.Version++
	if err := txn.Insert(tablePayments, p); err != nil {
		return nil, err
	}

	txn.Commit()

	return clonePayment(p), nil
}

func (s *memStore) ListPayments(_ context.Context) ([]*store.Payment, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tablePayments, "id")
	if err != nil {
		return nil, err
	}

	var payments []*store.Payment
	for obj := it.Next(); obj != nil; obj = it.Next() {
		payments = append(payments, clonePayment(obj.(*store.Payment)))
	}

	return payments, nil
}

func (s *memStore) SetStock(_ context.Context, sku string, quantity int) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tableStock, &stockRecord{SKU: sku, Quantity: quantity}); err != nil {
		return err
	}

	txn.Commit()

	return nil
}

func (s *memStore) Available(_ context.Context, sku string) (int, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	return available(txn, sku)
}

func available(txn *memdb.Txn, sku string) (int, error) {
	raw, err := txn.First(tableStock, "id", sku)
	if err != nil {
		return 0, err
	}

	if raw == nil {
		return 0, nil
	}

	return raw.(*stockRecord).Quantity, nil
}

func (s *memStore) Reserve(_ context.Context, orderID, sku string, quantity int) (*store.Reservation, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableReservations, "id", orderID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		r := *existing.(*store.Reservation)
		return &r, nil
	}

	avail, err := available(txn, sku)
	if err != nil {
		return nil, err
	}

	if avail < quantity {
		return nil, fmt.Errorf("reserving %d of %s for %s, %d available: %w", quantity, sku, orderID, avail, store.ErrInsufficientStock)
	}

	if err := txn.Insert(tableStock, &stockRecord{SKU: sku, Quantity: avail - quantity}); err != nil {
		return nil, err
	}

	r := &store.Reservation{OrderID: orderID, SKU: sku, Quantity: quantity}
	if err := txn.Insert(tableReservations, r); err != nil {
		return nil, err
	}

	txn.Commit()

	c := *r
	return &c, nil
}

func (s *memStore) Release(_ context.Context, orderID string) (*store.Reservation, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableReservations, "id", orderID)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, fmt.Errorf("reservation for %s: %w", orderID, store.ErrNotFound)
	}

	r := *raw.(*store.Reservation)
	if r.Released {
		return &r, nil
	}

	avail, err := available(txn, r.SKU)
	if err != nil {
		return nil, err
	}

	if err := txn.Insert(tableStock, &stockRecord{SKU: r.SKU, Quantity: avail + r.Quantity}); err != nil {
		return nil, err
	}

	r.Released = true
	stored := r
	if err := txn.Insert(tableReservations, &stored); err != nil {
		return nil, err
	}

	txn.Commit()

	return &r, nil
}

func (s *memStore) SaveReport(_ context.Context, r *store.Report) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	c := *r
	if err := txn.Insert(tableReports, &c); err != nil {
		return err
	}

	txn.Commit()

	return nil
}

func (s *memStore) GetReport(_ context.Context, date string) (*store.Report, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableReports, "id", date)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, fmt.Errorf("report %s: %w", date, store.ErrNotFound)
	}

	r := *raw.(*store.Report)
	return &r, nil
}

func (s *memStore) AppendNotification(_ context.Context, n *store.Notification) (bool, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableNotifications, "id", n.Key)
	if err != nil {
		return false, err
	}

	if existing != nil {
		return false, nil
	}

	c := *n
	if err := txn.Insert(tableNotifications, &c); err != nil {
		return false, err
	}

	txn.Commit()

	return true, nil
}

func (s *memStore) ListNotifications(_ context.Context, recipient string) ([]*store.Notification, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableNotifications, "recipient", recipient)
	if err != nil {
		return nil, err
	}

	var ns []*store.Notification
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n := *obj.(*store.Notification)
		ns = append(ns, &n)
	}

	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].SentAt.Before(ns[j].SentAt)
	})

	return ns, nil
}

func (s *memStore) RecordRun(_ context.Context, workflowID, executionID string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tableRuns, &runRecord{WorkflowID: workflowID, ExecutionID: executionID}); err != nil {
		return err
	}

	txn.Commit()

	return nil
}

func (s *memStore) Run(_ context.Context, workflowID string) (string, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableRuns, "id", workflowID)
	if err != nil {
		return "", err
	}

	if raw == nil {
		return "", fmt.Errorf("workflow %s: %w", workflowID, store.ErrNotFound)
	}

	return raw.(*runRecord).ExecutionID, nil
}

func (s *memStore) DeleteRun(_ context.Context, workflowID string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tableRuns, "id", workflowID); err != nil {
		return err
	}

	txn.Commit()

	return nil
}
