/*
accounts.go - Account management

PURPOSE:
  Creation, lookup, and deletion of marketplace accounts. The credits
  field on an account is owned by CreditLedger; this service never
  mutates it after creation.
*/
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campuscart/market-engine/docstore"
)

// Accounts manages the users collection.
type Accounts struct {
	store docstore.Store
	audit *AuditLog
}

func NewAccounts(store docstore.Store, audit *AuditLog) *Accounts {
	return &Accounts{store: store, audit: audit}
}

// Create registers an account under the auth identity id. Initial credits
// may be zero but never negative.
func (a *Accounts) Create(ctx context.Context, id, firstName, lastName, email string, role Role, credits int64) (*Account, error) {
	if credits < 0 {
		return nil, &InvalidAmountError{Field: "credits", Value: credits}
	}
	if role != RoleResident && role != RoleStaff {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidAmount, role)
	}

	account := Account{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		Credits:   credits,
		CreatedAt: time.Now().UTC(),
	}

	doc, err := encodeDoc(account.ID, account)
	if err != nil {
		return nil, err
	}
	if err := a.store.Put(ctx, CollectionUsers, doc); err != nil {
		return nil, err
	}

	a.audit.RecordRef(ctx, id, AuditAccountCreated, id,
		"account created for %s (%s)", account.Email, role)
	return &account, nil
}

// Get returns the account or a NotFoundError.
func (a *Accounts) Get(ctx context.Context, id string) (*Account, error) {
	doc, err := a.store.Get(ctx, CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return nil, err
	}
	var account Account
	if err := decodeDoc(doc, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByEmail scans for a matching email. The users collection is small
// enough that a linear pass beats maintaining a secondary index.
func (a *Accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := a.store.List(ctx, CollectionUsers)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		var account Account
		if err := decodeDoc(doc, &account); err != nil {
			return nil, err
		}
		if account.Email == email {
			return &account, nil
		}
	}
	return nil, &NotFoundError{Kind: "user", ID: email}
}

// List returns all accounts sorted by email (staff user management view).
func (a *Accounts) List(ctx context.Context) ([]Account, error) {
	docs, err := a.store.List(ctx, CollectionUsers)
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(docs))
	for _, doc := range docs {
		var account Account
		if err := decodeDoc(doc, &account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Email < accounts[j].Email
	})
	return accounts, nil
}

// Delete removes an account (staff action).
func (a *Accounts) Delete(ctx context.Context, actorID, id string) error {
	err := a.store.Delete(ctx, CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return &NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return err
	}
	a.audit.RecordRef(ctx, actorID, AuditAccountDeleted, id, "account %s deleted", id)
	return nil
}
