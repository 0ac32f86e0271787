package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/ledger-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransaction(date time.Time) models.Transaction {
	return models.Transaction{
		TxType:        models.Transfer,
		Amount:        10,
		Username:      models.StringPtr("alice"),
		RecipientName: models.StringPtr("bob"),
		Date:          date,
	}
}

func TestTransactionIDIsReproducible(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	id1, err := TransactionID(sampleTransaction(at))
	require.NoError(t, err)
	// sub-second differences are below the hashed resolution
	id2, err := TransactionID(sampleTransaction(at.Add(400 * time.Millisecond)))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)

	// anyone holding the canonical form can recompute the ID
	canonical := `{"txId":null,"txType":"Transfer","amount":10,"username":"alice","recipientname":"bob","date":"2024-03-01 12:00:00"}`
	sum := sha256.Sum256([]byte(canonical))
	assert.Equal(t, hex.EncodeToString(sum[:]), id1)
}

func TestTransactionIDChangesWithContent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base, err := TransactionID(sampleTransaction(at))
	require.NoError(t, err)

	variants := map[string]models.Transaction{}
	v := sampleTransaction(at)
	v.Amount = 11
	variants["amount"] = v
	v = sampleTransaction(at)
	v.RecipientName = nil
	variants["recipient"] = v
	v = sampleTransaction(at)
	v.TxType = models.Deposit
	variants["type"] = v
	variants["date"] = sampleTransaction(at.Add(time.Second))

	for name, tx := range variants {
		id, err := TransactionID(tx)
		require.NoError(t, err)
		assert.NotEqual(t, base, id, name)
	}

	// the existing ID is not part of the hashed form
	v = sampleTransaction(at)
	v.TxID = "something"
	id, err := TransactionID(v)
	require.NoError(t, err)
	assert.Equal(t, base, id)
}

func TestLockSetSerializesPerKey(t *testing.T) {
	locks := newLockSet()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"a", "b"}
			if i%2 == 1 {
				keys = []string{"b", "a", "b"}
			}
			unlock := locks.Lock(keys...)
			counter++
			unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Empty(t, locks.locks, "idle entries are released")
}
