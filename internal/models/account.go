// internal/models/account.go
package models

import (
	"bytes"

	"github.com/google/uuid"
)

// AccountID identifies a ledger holder: a registered user, a treasury, or a
// listing's escrow account.
type AccountID = uuid.UUID

// escrowNamespace derives escrow accounts from listing ids.
var escrowNamespace = uuid.MustParse("6f1c0b64-2f0e-5a53-9d8e-3b5f1f4c7a21")

// CompareAccounts orders accounts by their byte representation.
func CompareAccounts(a, b AccountID) int {
	return bytes.Compare(a[:], b[:])
}

// EscrowAccount is the deterministic account that holds buyer payments for
// a listing until the owner confirms delivery.
func EscrowAccount(listingID uuid.UUID) AccountID {
	return uuid.NewSHA1(escrowNamespace, listingID[:])
}

// ParseAccount parses the textual form of an account id.
func ParseAccount(s string) (AccountID, error) {
	return uuid.Parse(s)
}
