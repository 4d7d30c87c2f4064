package memstore

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/cschleiden/orderflow/store"
	"github.com/cschleiden/orderflow/store/storetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func Test_MemStore(t *testing.T) {
	storetest.StoreTest(t, func() store.Store {
		s, err := New()
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
