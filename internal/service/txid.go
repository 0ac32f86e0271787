package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rongwang/ledger-server/internal/models"
)

// TransactionID derives the identifier of t from its content: the SHA-256 of
// its canonical JSON form, in which txId is null and the date has second
// precision. Identical transactions within the same second share an ID.
func TransactionID(t models.Transaction) (string, error) {
	canonical, err := t.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("error encoding transaction: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
