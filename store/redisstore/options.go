package redisstore

import (
	"time"
)

type Options struct {
	KeyPrefix string

	// MaxConflictRetries bounds how often an optimistic transaction is retried after a
	// concurrent modification of a watched key.
	MaxConflictRetries uint64

	// ConflictBackoff is the first delay before retrying a conflicting transaction.
	ConflictBackoff time.Duration

	// NotificationTTL is how long delivered notification keys are remembered for de-duplication.
	NotificationTTL time.Duration
}

type Option func(*Options)

func WithKeyPrefix(keyPrefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = keyPrefix
	}
}

func WithConflictRetries(retries uint64, backoff time.Duration) Option {
	return func(o *Options) {
		o.MaxConflictRetries = retries
		o.ConflictBackoff = backoff
	}
}

func WithNotificationTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.NotificationTTL = ttl
	}
}
