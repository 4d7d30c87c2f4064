// Package activities implements the side-effecting steps of the order workflows. Every activity
// is idempotent: the engine may execute an attempt again after its result was lost, so repeated
// calls with the same arguments must not charge, reserve or notify twice.
package activities

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jellydator/ttlcache/v3"

	"github.com/cschleiden/orderflow/store"
)

// Activities is registered with a worker as a whole, workflows reference its methods through a
// nil *Activities.
type Activities struct {
	store store.Store
	clock clock.Clock

	// paymentLimit declines authorizations above the limit. Zero disables the limit.
	paymentLimit int64

	// sent remembers recently delivered notification keys, the store holds the durable record.
	sent *ttlcache.Cache[string, struct{}]
}

type Option func(*Activities)

func WithClock(c clock.Clock) Option {
	return func(a *Activities) {
		a.clock = c
	}
}

func WithPaymentLimit(limit int64) Option {
	return func(a *Activities) {
		a.paymentLimit = limit
	}
}

func WithNotificationCacheTTL(ttl time.Duration) Option {
	return func(a *Activities) {
		a.sent = ttlcache.New[string, struct{}](ttlcache.WithTTL[string, struct{}](ttl))
	}
}

func New(s store.Store, opts ...Option) *Activities {
	a := &Activities{
		store: s,
		clock: clock.New(),
		sent:  ttlcache.New[string, struct{}](ttlcache.WithTTL[string, struct{}](time.Hour)),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Order is the input of order-level activities.
type Order struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Amount     int64  `json:"amount"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
}

type StockRequest struct {
	OrderID  string `json:"orderId"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type PaymentRequest struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Amount     int64  `json:"amount"`
}

type Notification struct {
	// Key identifies the notification, delivering the same key twice sends it once.
	Key       string `json:"key"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type ReportRequest struct {
	Date string `json:"date"`

	// Previous is the summary of the last successful report run, empty for the first run.
	Previous string `json:"previous"`
}
