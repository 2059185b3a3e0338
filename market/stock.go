/*
stock.go - Inventory stock manager: the single writer of product quantities

PURPOSE:
  Owns every mutation of Product.Quantity plus staff product management
  (add/edit/remove). Decrement enforces the non-negative invariant:
  concurrent purchases of the last unit resolve to exactly one success
  and one OutOfStockError.

ATOMICITY:
  Same compare-and-set retry discipline as the credit ledger: the
  decrement is conditioned on the pre-decrement quantity still holding,
  not on a value read earlier in the request flow.

SEE ALSO:
  - ledger.go: the balance counterpart
  - workflow.go: pairs decrements with debits and compensates on failure
*/
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/market-engine/docstore"
)

// =============================================================================
// STOCK MANAGER
// =============================================================================

// StockManager mutates product quantities and manages the catalog.
type StockManager struct {
	store docstore.Store
	audit *AuditLog
}

func NewStockManager(store docstore.Store, audit *AuditLog) *StockManager {
	return &StockManager{store: store, audit: audit}
}

// Decrement reduces quantity by qty. Fails with OutOfStockError if the
// current quantity cannot cover it. Returns the remaining quantity.
func (m *StockManager) Decrement(ctx context.Context, productID string, qty int64, actorID, reason string) (int64, error) {
	if err := validatePositive("quantity", qty); err != nil {
		return 0, err
	}

	remaining, err := m.apply(ctx, productID, func(p *Product) error {
		if p.Quantity < qty {
			return &OutOfStockError{
				ProductID: productID,
				Available: p.Quantity,
				Requested: qty,
			}
		}
		p.Quantity -= qty
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.audit.RecordRef(ctx, actorID, AuditStockDecremented, productID,
		"decremented %s by %d: %s", productID, qty, reason)
	return remaining, nil
}

// Increment restores quantity (restock, or compensation when an order is
// rolled back). Returns the new quantity.
func (m *StockManager) Increment(ctx context.Context, productID string, qty int64, actorID, reason string) (int64, error) {
	if err := validatePositive("quantity", qty); err != nil {
		return 0, err
	}

	newQty, err := m.apply(ctx, productID, func(p *Product) error {
		p.Quantity += qty
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.audit.RecordRef(ctx, actorID, AuditStockIncremented, productID,
		"incremented %s by %d: %s", productID, qty, reason)
	return newQty, nil
}

// Available is a read-only quantity lookup.
func (m *StockManager) Available(ctx context.Context, productID string) (int64, error) {
	product, err := m.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Quantity, nil
}

// Get returns the product or a NotFoundError.
func (m *StockManager) Get(ctx context.Context, productID string) (*Product, error) {
	doc, err := m.store.Get(ctx, CollectionInventory, productID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &NotFoundError{Kind: "product", ID: productID}
	}
	if err != nil {
		return nil, err
	}
	var product Product
	if err := decodeDoc(doc, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns the catalog sorted by name.
func (m *StockManager) List(ctx context.Context) ([]Product, error) {
	docs, err := m.store.List(ctx, CollectionInventory)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		var p Product
		if err := decodeDoc(doc, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	return products, nil
}

// =============================================================================
// CATALOG MANAGEMENT (staff)
// =============================================================================

// AddProduct creates a catalog entry. Initial quantity may be zero
// (pre-order only) but never negative, and the price must be positive.
func (m *StockManager) AddProduct(ctx context.Context, actorID, name, description string, price, quantity int64, imageURL string) (*Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: product name must not be empty", ErrInvalidAmount)
	}
	if err := validatePositive("price", price); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, &InvalidAmountError{Field: "quantity", Value: quantity}
	}

	now := time.Now().UTC()
	product := Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		Quantity:    quantity,
		ImageURL:    imageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := encodeDoc(product.ID, product)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, CollectionInventory, doc); err != nil {
		return nil, err
	}

	m.audit.RecordRef(ctx, actorID, AuditProductAdded, product.ID,
		"added product %q price %d quantity %d", name, price, quantity)
	return &product, nil
}

// UpdateProduct edits name/description/price/image. Quantity is not
// editable here; restock and order flows own it.
func (m *StockManager) UpdateProduct(ctx context.Context, actorID, productID, name, description string, price int64, imageURL string) (*Product, error) {
	if err := validatePositive("price", price); err != nil {
		return nil, err
	}

	var result Product
	_, err := m.apply(ctx, productID, func(p *Product) error {
		p.Name = name
		p.Description = description
		p.Price = price
		p.ImageURL = imageURL
		p.UpdatedAt = time.Now().UTC()
		result = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.audit.RecordRef(ctx, actorID, AuditProductUpdated, productID,
		"updated product %s", productID)
	return &result, nil
}

// RemoveProduct deletes a catalog entry.
func (m *StockManager) RemoveProduct(ctx context.Context, actorID, productID string) error {
	err := m.store.Delete(ctx, CollectionInventory, productID)
	if errors.Is(err, docstore.ErrNotFound) {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	if err != nil {
		return err
	}
	m.audit.RecordRef(ctx, actorID, AuditProductRemoved, productID,
		"removed product %s", productID)
	return nil
}

// apply mirrors CreditLedger.apply for the inventory collection.
func (m *StockManager) apply(ctx context.Context, productID string, mutate func(*Product) error) (int64, error) {
	product, err := casUpdate(ctx, m.store, CollectionInventory, productID, "product", mutate)
	if err != nil {
		return 0, err
	}
	return product.Quantity, nil
}
