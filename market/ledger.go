/*
ledger.go - Credit ledger: the single writer of user balances

PURPOSE:
  Owns every mutation of Account.Credits. Debit enforces overdraft
  prevention; Credit handles voucher grants and purchase refunds. Nothing
  else in the system writes the credits field.

ATOMICITY:
  Every mutation is a compare-and-set loop:
  1. Read the account document (captures the version)
  2. Check the invariant against the value just read
  3. Write back conditioned on that version
  4. On a lost race, re-read and retry, bounded by maxCASRetries

  A computed balance is never written over state it was not derived from;
  the write is always conditioned on the exact version the new value was
  computed against.

SEE ALSO:
  - stock.go: the same discipline applied to product quantities
  - workflow.go: the only caller that pairs debits with stock changes
*/
package market

import (
	"context"
	"errors"

	"github.com/campuscart/market-engine/docstore"
)

// maxCASRetries bounds optimistic-concurrency retries before a mutation
// fails with ErrConflict.
const maxCASRetries = 5

// =============================================================================
// CREDIT LEDGER
// =============================================================================

// CreditLedger mutates user credit balances. Construct with NewCreditLedger;
// the store handle is injected, never ambient.
type CreditLedger struct {
	store docstore.Store
	audit *AuditLog
}

func NewCreditLedger(store docstore.Store, audit *AuditLog) *CreditLedger {
	return &CreditLedger{store: store, audit: audit}
}

// Debit decreases the balance by amount. Fails with
// InsufficientCreditsError if the current balance cannot cover it.
// Returns the new balance.
func (l *CreditLedger) Debit(ctx context.Context, userID string, amount int64, actorID, reason string) (int64, error) {
	if err := validatePositive("amount", amount); err != nil {
		return 0, err
	}

	newBalance, err := l.apply(ctx, userID, func(account *Account) error {
		if account.Credits < amount {
			return &InsufficientCreditsError{
				UserID:    userID,
				Available: account.Credits,
				Requested: amount,
			}
		}
		account.Credits -= amount
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.audit.RecordRef(ctx, actorID, AuditCreditsDebited, userID,
		"debited %d credits from %s: %s", amount, userID, reason)
	return newBalance, nil
}

// Credit increases the balance by amount (voucher grants, refunds).
// Returns the new balance.
func (l *CreditLedger) Credit(ctx context.Context, userID string, amount int64, actorID, reason string) (int64, error) {
	if err := validatePositive("amount", amount); err != nil {
		return 0, err
	}

	newBalance, err := l.apply(ctx, userID, func(account *Account) error {
		account.Credits += amount
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.audit.RecordRef(ctx, actorID, AuditCreditsGranted, userID,
		"granted %d credits to %s: %s", amount, userID, reason)
	return newBalance, nil
}

// Balance is a read-only lookup.
func (l *CreditLedger) Balance(ctx context.Context, userID string) (int64, error) {
	doc, err := l.store.Get(ctx, CollectionUsers, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return 0, &NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return 0, err
	}
	var account Account
	if err := decodeDoc(doc, &account); err != nil {
		return 0, err
	}
	return account.Credits, nil
}

// apply runs mutate against the current account state and writes the
// result with compare-and-set, retrying on lost races.
func (l *CreditLedger) apply(ctx context.Context, userID string, mutate func(*Account) error) (int64, error) {
	account, err := casUpdate(ctx, l.store, CollectionUsers, userID, "user", mutate)
	if err != nil {
		return 0, err
	}
	return account.Credits, nil
}
