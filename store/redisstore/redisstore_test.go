package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/store"
	"github.com/cschleiden/orderflow/store/storetest"
)

func redisAddr() string {
	if addr := os.Getenv("ORDERFLOW_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}

	return "localhost:6379"
}

// getClient returns a client for the test server, skipping the test if none is reachable.
func getClient(t *testing.T) redis.UniversalClient {
	if testing.Short() {
		t.Skip()
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{redisAddr()},
		Password:    os.Getenv("ORDERFLOW_TEST_REDIS_PASSWORD"),
		DialTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available at %s: %v", redisAddr(), err)
	}

	return client
}

func Test_RedisStore(t *testing.T) {
	client := getClient(t)
	defer client.Close()

	storetest.StoreTest(t, func() store.Store {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			panic(err)
		}

		// Closing the store closes its client, every test gets its own
		c := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{redisAddr()},
			Password: os.Getenv("ORDERFLOW_TEST_REDIS_PASSWORD"),
		})

		s, err := New(c, WithKeyPrefix("orderflow-test:"))
		if err != nil {
			panic(err)
		}

		return s
	}, func(s store.Store) {
		if err := s.Close(); err != nil {
			panic(err)
		}
	})
}

func Test_Keys(t *testing.T) {
	require.Equal(t, "p:payment:AUTH-1", paymentKey("p:", "AUTH-1"))
	require.Equal(t, "p:stock:SKU-1", stockKey("p:", "SKU-1"))
	require.Equal(t, "p:runs", runsKey("p:"))
}
