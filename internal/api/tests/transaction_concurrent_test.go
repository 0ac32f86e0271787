package api_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/rongwang/ledger-server/internal/api/testutils"
	"github.com/rongwang/ledger-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestConcurrentTransactions(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testCtx.CreateUser(t, "alice", "pa", 100)
	testCtx.CreateUser(t, "bob", "pb", 100)

	// Test concurrent withdrawals against a single account
	t.Run("TestNoOverdraft", func(t *testing.T) {
		const numGoroutines = 30

		codes := make(chan int, numGoroutines)
		var wg sync.WaitGroup

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/transaction", models.CreateTransactionRequest{
					Type: models.Withdrawal, Amount: 10, Username: "alice", Password: "pa",
				})
				codes <- w.Code
			}()
		}

		wg.Wait()
		close(codes)

		counts := map[int]int{}
		for code := range codes {
			counts[code]++
		}
		assert.Equal(t, 10, counts[http.StatusCreated])
		assert.Equal(t, numGoroutines-10, counts[http.StatusConflict])

		w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/user/alice?password=pa", nil)
		var alice models.UserResponse
		testutils.DecodeJSON(t, w, &alice)
		assert.Equal(t, int64(0), alice.Balance)
	})

	// Test transfers in both directions at once
	t.Run("TestOpposingTransfers", func(t *testing.T) {
		testCtx.CreateUser(t, "carol", "pc", 100)

		const rounds = 20
		var wg sync.WaitGroup
		for i := 0; i < rounds; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				testutils.PerformRequest(testCtx.Router, http.MethodPost, "/transaction", models.CreateTransactionRequest{
					Type: models.Transfer, Amount: 2, Username: "bob", Recipient: "carol", Password: "pb",
				})
			}()
			go func() {
				defer wg.Done()
				testutils.PerformRequest(testCtx.Router, http.MethodPost, "/transaction", models.CreateTransactionRequest{
					Type: models.Transfer, Amount: 1, Username: "carol", Recipient: "bob", Password: "pc",
				})
			}()
		}
		wg.Wait()

		var bob, carol models.UserResponse
		testutils.DecodeJSON(t, testutils.PerformRequest(testCtx.Router, http.MethodGet, "/user/bob?password=pb", nil), &bob)
		testutils.DecodeJSON(t, testutils.PerformRequest(testCtx.Router, http.MethodGet, "/user/carol?password=pc", nil), &carol)
		assert.Equal(t, int64(200), bob.Balance+carol.Balance)
		assert.Equal(t, int64(100-rounds*2+rounds), bob.Balance)
	})
}
