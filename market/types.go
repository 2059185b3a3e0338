/*
Package market implements the ledger and fulfillment core of the campus
marketplace.

PURPOSE:
  Residents buy and pre-order items with a credit balance and request
  credit vouchers; staff manage inventory, restock, and resolve requests.
  This package owns all of the business rules:

  - CreditLedger:   the single writer of user credit balances
  - StockManager:   the single writer of product quantities
  - WorkflowEngine: purchase / pre-order / voucher state machines
  - Reporter:       read-only rollups derived from stored requests
  - AuditLog:       append-only trail of every mutation

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: a resident or staff member with a non-negative credit balance
  - Product: an inventory item with a non-negative quantity
  - PurchaseRequest / PreorderRequest / VoucherRequest: workflow records
    whose total amounts are snapshotted at creation and never recomputed

DESIGN PRINCIPLES:
  1. Ownership: balances, quantities, and statuses each have exactly one
     writer component; nothing else touches those fields
  2. Snapshots: request totals are quantity x unit price at creation time,
     immune to later price edits
  3. Validation first: inputs are rejected before any document is written

SEE ALSO:
  - errors.go: error taxonomy
  - workflow.go: state machines and their side effects
*/
package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuscart/market-engine/docstore"
)

// =============================================================================
// COLLECTIONS
// =============================================================================

const (
	CollectionUsers     = "users"
	CollectionInventory = "inventory"
	CollectionPurchases = "purchaseRequests"
	CollectionPreorders = "preorders"
	CollectionVouchers  = "voucherRequests"
	CollectionAuditLogs = "auditLogs"
)

// =============================================================================
// ACCOUNT
// =============================================================================

type Role string

const (
	RoleResident Role = "resident"
	RoleStaff    Role = "staff"
)

// Account is a marketplace user. Credits is mutated only by CreditLedger.
type Account struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is an inventory item. Quantity is mutated only by StockManager.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"` // credits per unit
	Quantity    int64     `json:"quantity"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// =============================================================================
// PURCHASE REQUEST
// =============================================================================

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
)

// PurchaseRequest records a buy against in-stock inventory. UnitPrice and
// TotalAmount are snapshots taken at creation; they never track later
// price changes. Immutable once completed.
type PurchaseRequest struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId"`
	ProductName string         `json:"productName"`
	UserID      string         `json:"userId"`
	Quantity    int64          `json:"quantity"`
	UnitPrice   int64          `json:"unitPrice"`
	TotalAmount int64          `json:"totalAmount"`
	Status      PurchaseStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// =============================================================================
// PRE-ORDER REQUEST
// =============================================================================

type PreorderStatus string

const (
	PreorderPending     PreorderStatus = "pending"
	PreorderAvailable   PreorderStatus = "available"
	PreorderUnavailable PreorderStatus = "unavailable"
	PreorderBought      PreorderStatus = "bought"
	PreorderCancelled   PreorderStatus = "cancelled"
)

// PreorderRequest is placed against a product with zero stock and resolved
// later by staff restocking. Credits are debited only at the final
// transition to bought.
type PreorderRequest struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId"`
	ProductName string         `json:"productName"`
	UserID      string         `json:"userId"`
	Quantity    int64          `json:"quantity"`
	UnitPrice   int64          `json:"unitPrice"`
	TotalAmount int64          `json:"totalAmount"`
	Status      PreorderStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// terminal reports whether no further transition is allowed.
func (s PreorderStatus) terminal() bool {
	return s == PreorderBought || s == PreorderCancelled || s == PreorderUnavailable
}

// =============================================================================
// VOUCHER REQUEST
// =============================================================================

type VoucherType string

const (
	VoucherFood      VoucherType = "food"
	VoucherBooks     VoucherType = "books"
	VoucherTransport VoucherType = "transport"
)

type VoucherStatus string

const (
	VoucherPending  VoucherStatus = "pending"
	VoucherAccepted VoucherStatus = "accepted"
	VoucherRejected VoucherStatus = "rejected"
)

type VoucherDecision string

const (
	DecisionAccept VoucherDecision = "accepted"
	DecisionReject VoucherDecision = "rejected"
)

// VoucherRequest asks staff for a credit grant. It transitions exactly
// once; accepted and rejected are terminal.
type VoucherRequest struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	Type       VoucherType   `json:"voucherType"`
	Amount     int64         `json:"amount"`
	Reason     string        `json:"reason"`
	Status     VoucherStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	ResolvedAt *time.Time    `json:"resolvedAt,omitempty"`
	ResolvedBy string        `json:"resolvedBy,omitempty"`
}

// =============================================================================
// VALIDATION
// =============================================================================

// validVoucherTypes matches the request form options.
var validVoucherTypes = map[VoucherType]bool{
	VoucherFood:      true,
	VoucherBooks:     true,
	VoucherTransport: true,
}

// validatePositive rejects zero and negative quantities/amounts before any
// state is touched.
func validatePositive(field string, v int64) error {
	if v <= 0 {
		return &InvalidAmountError{Field: field, Value: v}
	}
	return nil
}

// =============================================================================
// DOCUMENT CODEC
// =============================================================================
// Entities are stored as JSON documents. These helpers keep the
// marshal/unmarshal noise out of the domain logic and validate the schema
// at the store boundary.

func encodeDoc(id string, v any) (docstore.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encode document %s: %w", id, err)
	}
	return docstore.Document{ID: id, Data: data}, nil
}

func decodeDoc(doc docstore.Document, v any) error {
	if err := json.Unmarshal(doc.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}
