// Package store holds the shared state mutated by activities: the payment ledger, stock and
// reservations, generated reports, sent notifications and the run registry used by callers to
// find workflow instances. Implementations are safe for concurrent use by many activities.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent modification")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid state transition")
)

type PaymentState string

const (
	PaymentAuthorized PaymentState = "AUTHORIZED"
	PaymentCaptured   PaymentState = "CAPTURED"
	PaymentRefunded   PaymentState = "REFUNDED"
	PaymentVoided     PaymentState = "VOIDED"
)

type Payment struct {
	AuthorizationID string       `json:"authorizationId"`
	OrderID         string       `json:"orderId"`
	CustomerID      string       `json:"customerId"`
	Amount          int64        `json:"amount"`
	State           PaymentState `json:"state"`

	// Version is incremented on every update.
	Version int64 `json:"version"`

	AuthorizedAt time.Time  `json:"authorizedAt"`
	CapturedAt   *time.Time `json:"capturedAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

type Reservation struct {
	OrderID  string `json:"orderId"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Released bool   `json:"released"`
}

type Report struct {
	Date        string    `json:"date"`
	Orders      int       `json:"orders"`
	Revenue     int64     `json:"revenue"`
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Notification struct {
	// Key de-duplicates deliveries of the same notification.
	Key       string    `json:"key"`
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sentAt"`
}

type Ledger interface {
	// CreatePayment stores p unless a payment for the same order exists. It returns the stored
	// payment and whether it was created by this call.
	CreatePayment(ctx context.Context, p *Payment) (*Payment, bool, error)

	GetPayment(ctx context.Context, authorizationID string) (*Payment, error)

	// UpdatePayment applies update to the current version of a payment. Concurrent updates are
	// detected and retried.
	UpdatePayment(ctx context.Context, authorizationID string, update func(p *Payment) error) (*Payment, error)

	ListPayments(ctx context.Context) ([]*Payment, error)
}

type Inventory interface {
	SetStock(ctx context.Context, sku string, quantity int) error

	Available(ctx context.Context, sku string) (int, error)

	// Reserve takes quantity items of sku for orderID. Reserving again for the same order returns
	// the existing reservation without taking more stock.
	Reserve(ctx context.Context, orderID, sku string, quantity int) (*Reservation, error)

	// Release returns the stock of orderID's reservation. Releasing twice is a no-op.
	Release(ctx context.Context, orderID string) (*Reservation, error)
}

type Reports interface {
	SaveReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, date string) (*Report, error)
}

type Notifications interface {
	// AppendNotification stores n unless a notification with the same key exists, and reports
	// whether it was stored.
	AppendNotification(ctx context.Context, n *Notification) (bool, error)

	ListNotifications(ctx context.Context, recipient string) ([]*Notification, error)
}

// Runs maps workflow ids to the execution id of their first run. Later runs are found by
// following the continue-as-new chain in history.
type Runs interface {
	RecordRun(ctx context.Context, workflowID, executionID string) error
	Run(ctx context.Context, workflowID string) (string, error)
	DeleteRun(ctx context.Context, workflowID string) error
}

type Store interface {
	Ledger
	Inventory
	Reports
	Notifications
	Runs

	Close() error
}
