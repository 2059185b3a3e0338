/*
workflow.go - Request workflow engine

PURPOSE:
  Drives the three request state machines and the ledger/stock side
  effects tied to their transitions:

  Purchase:  pending -> completed
             (created completed when fulfilment is immediate)
  Pre-order: pending -> {available, unavailable} -> {bought, cancelled}
  Voucher:   pending -> {accepted, rejected}, single transition only

SIDE-EFFECT PAIRING:
  A buy (purchase creation, or pre-order confirmation) pairs a credit
  debit with a stock decrement. The store gives us per-document atomicity
  only, so the pair runs as debit-then-decrement with a compensating
  credit if the decrement fails: the ledger and stock are never left
  inconsistent relative to each other, and the original error surfaces.

STATUS WRITES:
  Every status transition goes through the compare-and-set loop, so it is
  written at the version the status was read from. Two concurrent
  resolutions of the same voucher therefore cannot both apply: the loser
  re-reads, sees a terminal status, and fails with ErrAlreadyProcessed.

SEE ALSO:
  - ledger.go, stock.go: the two single-writer owners this engine drives
  - report.go: read-only rollups over the records written here
*/
package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/market-engine/docstore"
)

// =============================================================================
// WORKFLOW ENGINE
// =============================================================================

// WorkflowEngine orchestrates requests. All dependencies are injected.
type WorkflowEngine struct {
	store    docstore.Store
	ledger   *CreditLedger
	stock    *StockManager
	accounts *Accounts
	audit    *AuditLog
}

func NewWorkflowEngine(store docstore.Store, ledger *CreditLedger, stock *StockManager, accounts *Accounts, audit *AuditLog) *WorkflowEngine {
	return &WorkflowEngine{store: store, ledger: ledger, stock: stock, accounts: accounts, audit: audit}
}

// requireStaff guards staff-only transitions.
func (e *WorkflowEngine) requireStaff(ctx context.Context, actorID string) error {
	account, err := e.accounts.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if account.Role != RoleStaff {
		return fmt.Errorf("%w: %s is not staff", ErrUnauthorized, actorID)
	}
	return nil
}

// =============================================================================
// PURCHASE: pending -> completed
// =============================================================================

// Purchase buys qty units of an in-stock product. Validation happens
// before any mutation; on success the debit and decrement have both
// applied and the request is recorded completed with price snapshots.
func (e *WorkflowEngine) Purchase(ctx context.Context, userID, productID string, qty int64) (*PurchaseRequest, error) {
	return e.purchase(ctx, userID, productID, qty, false)
}

// PurchaseDeferred records the buy as pending for staff fulfilment.
// Credits and stock are still taken up front so the reservation holds.
func (e *WorkflowEngine) PurchaseDeferred(ctx context.Context, userID, productID string, qty int64) (*PurchaseRequest, error) {
	return e.purchase(ctx, userID, productID, qty, true)
}

func (e *WorkflowEngine) purchase(ctx context.Context, userID, productID string, qty int64, deferred bool) (*PurchaseRequest, error) {
	if err := validatePositive("quantity", qty); err != nil {
		return nil, err
	}

	product, err := e.stock.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	total := qty * product.Price

	// Fail-fast checks. The authoritative checks live inside the CAS'd
	// debit and decrement below; these just avoid touching the ledger
	// when the outcome is already known.
	if product.Quantity < qty {
		return nil, &OutOfStockError{ProductID: productID, Available: product.Quantity, Requested: qty}
	}
	balance, err := e.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, &InsufficientCreditsError{UserID: userID, Available: balance, Requested: total}
	}

	requestID := uuid.NewString()
	if _, err := e.ledger.Debit(ctx, userID, total, userID, fmt.Sprintf("purchase %s", requestID)); err != nil {
		return nil, err
	}
	if _, err := e.stock.Decrement(ctx, productID, qty, userID, fmt.Sprintf("purchase %s", requestID)); err != nil {
		// Debit landed but the decrement did not: refund before surfacing
		// the original error so ledger and stock stay consistent.
		if _, refundErr := e.ledger.Credit(ctx, userID, total, userID,
			fmt.Sprintf("refund for failed purchase %s", requestID)); refundErr != nil {
			return nil, fmt.Errorf("purchase failed (%w) and refund failed: %v", err, refundErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	request := PurchaseRequest{
		ID:          requestID,
		ProductID:   productID,
		ProductName: product.Name,
		UserID:      userID,
		Quantity:    qty,
		UnitPrice:   product.Price,
		TotalAmount: total,
		Status:      PurchaseCompleted,
		CreatedAt:   now,
	}
	if deferred {
		request.Status = PurchasePending
	} else {
		request.CompletedAt = &now
	}

	doc, err := encodeDoc(request.ID, request)
	if err != nil {
		return nil, e.unwindPurchase(ctx, userID, productID, qty, total, requestID, err)
	}
	if err := e.store.Put(ctx, CollectionPurchases, doc); err != nil {
		return nil, e.unwindPurchase(ctx, userID, productID, qty, total, requestID, err)
	}

	e.audit.RecordRef(ctx, userID, AuditPurchaseCreated, request.ID,
		"%s bought %d x %q for %d credits (%s)", userID, qty, product.Name, total, request.Status)
	return &request, nil
}

// unwindPurchase rolls back a debit and decrement that landed before the
// purchase record could be written. The original error is surfaced; a
// rollback failure is appended so neither is lost.
func (e *WorkflowEngine) unwindPurchase(ctx context.Context, userID, productID string, qty, total int64, requestID string, cause error) error {
	if _, refundErr := e.ledger.Credit(ctx, userID, total, userID,
		fmt.Sprintf("refund for failed purchase %s", requestID)); refundErr != nil {
		return fmt.Errorf("purchase failed (%w) and refund failed: %v", cause, refundErr)
	}
	if _, restoreErr := e.stock.Increment(ctx, productID, qty, userID,
		fmt.Sprintf("restock for failed purchase %s", requestID)); restoreErr != nil {
		return fmt.Errorf("purchase failed (%w) and stock restore failed: %v", cause, restoreErr)
	}
	return cause
}

// CompletePurchase marks a deferred purchase fulfilled (staff action).
// Completed requests are immutable; a second call fails.
func (e *WorkflowEngine) CompletePurchase(ctx context.Context, staffID, requestID string) (*PurchaseRequest, error) {
	if err := e.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}

	request, err := casUpdate(ctx, e.store, CollectionPurchases, requestID, "purchase", func(r *PurchaseRequest) error {
		if r.Status != PurchasePending {
			return &AlreadyProcessedError{RequestID: requestID, Status: string(r.Status)}
		}
		now := time.Now().UTC()
		r.Status = PurchaseCompleted
		r.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.audit.RecordRef(ctx, staffID, AuditPurchaseCompleted, requestID,
		"purchase %s completed", requestID)
	return &request, nil
}

// ListPurchases returns purchase requests, optionally filtered to one
// user, newest first.
func (e *WorkflowEngine) ListPurchases(ctx context.Context, userID string) ([]PurchaseRequest, error) {
	docs, err := e.store.List(ctx, CollectionPurchases)
	if err != nil {
		return nil, err
	}
	var result []PurchaseRequest
	for _, doc := range docs {
		var request PurchaseRequest
		if err := decodeDoc(doc, &request); err != nil {
			return nil, err
		}
		if userID != "" && request.UserID != userID {
			continue
		}
		result = append(result, request)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// =============================================================================
// PRE-ORDER: pending -> {available, unavailable} -> {bought, cancelled}
// =============================================================================

// Preorder places a request against a product with zero current stock.
// No credits are taken; the debit happens only at ConfirmPreorder.
func (e *WorkflowEngine) Preorder(ctx context.Context, userID, productID string, qty int64) (*PreorderRequest, error) {
	if err := validatePositive("quantity", qty); err != nil {
		return nil, err
	}
	if _, err := e.accounts.Get(ctx, userID); err != nil {
		return nil, err
	}

	product, err := e.stock.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Quantity > 0 {
		return nil, ErrPreorderRequiresNoStock
	}

	now := time.Now().UTC()
	request := PreorderRequest{
		ID:          uuid.NewString(),
		ProductID:   productID,
		ProductName: product.Name,
		UserID:      userID,
		Quantity:    qty,
		UnitPrice:   product.Price,
		TotalAmount: qty * product.Price,
		Status:      PreorderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := encodeDoc(request.ID, request)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, CollectionPreorders, doc); err != nil {
		return nil, err
	}

	e.audit.RecordRef(ctx, userID, AuditPreorderCreated, request.ID,
		"%s pre-ordered %d x %q", userID, qty, product.Name)
	return &request, nil
}

// MarkPreorderAvailable moves pending -> available after a restock
// (staff action, never automatic). The product must actually cover the
// requested quantity.
func (e *WorkflowEngine) MarkPreorderAvailable(ctx context.Context, staffID, preorderID string) (*PreorderRequest, error) {
	if err := e.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}
	return e.transitionPreorder(ctx, staffID, preorderID, func(r *PreorderRequest) error {
		if r.Status != PreorderPending {
			return &AlreadyProcessedError{RequestID: preorderID, Status: string(r.Status)}
		}
		available, err := e.stock.Available(ctx, r.ProductID)
		if err != nil {
			return err
		}
		if available < r.Quantity {
			return &OutOfStockError{ProductID: r.ProductID, Available: available, Requested: r.Quantity}
		}
		r.Status = PreorderAvailable
		return nil
	})
}

// MarkPreorderUnavailable moves pending -> unavailable when the item will
// not be restocked.
func (e *WorkflowEngine) MarkPreorderUnavailable(ctx context.Context, staffID, preorderID string) (*PreorderRequest, error) {
	if err := e.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}
	return e.transitionPreorder(ctx, staffID, preorderID, func(r *PreorderRequest) error {
		if r.Status != PreorderPending {
			return &AlreadyProcessedError{RequestID: preorderID, Status: string(r.Status)}
		}
		r.Status = PreorderUnavailable
		return nil
	})
}

// ConfirmPreorder is the user buying an available pre-order: the snapshot
// total is debited and stock decremented, with the same compensation rule
// as Purchase. This is the only point where a pre-order touches credits.
func (e *WorkflowEngine) ConfirmPreorder(ctx context.Context, userID, preorderID string) (*PreorderRequest, error) {
	// Reserve the status first: flipping available -> bought under CAS
	// guarantees only one confirmation proceeds to the money movement.
	request, err := e.transitionPreorder(ctx, userID, preorderID, func(r *PreorderRequest) error {
		if r.UserID != userID {
			return fmt.Errorf("%w: pre-order %s belongs to another user", ErrUnauthorized, preorderID)
		}
		if r.Status != PreorderAvailable {
			return &AlreadyProcessedError{RequestID: preorderID, Status: string(r.Status)}
		}
		r.Status = PreorderBought
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.ledger.Debit(ctx, userID, request.TotalAmount, userID,
		fmt.Sprintf("pre-order %s", preorderID)); err != nil {
		// Money did not move: put the pre-order back to available.
		if revertErr := e.revertPreorder(ctx, userID, preorderID, PreorderAvailable); revertErr != nil {
			return nil, fmt.Errorf("confirm failed (%w) and status revert failed: %v", err, revertErr)
		}
		return nil, err
	}

	if _, err := e.stock.Decrement(ctx, request.ProductID, request.Quantity, userID,
		fmt.Sprintf("pre-order %s", preorderID)); err != nil {
		// Debit landed but stock did not: refund, then revert the status.
		if _, refundErr := e.ledger.Credit(ctx, userID, request.TotalAmount, userID,
			fmt.Sprintf("refund for failed pre-order %s", preorderID)); refundErr != nil {
			return nil, fmt.Errorf("confirm failed (%w) and refund failed: %v", err, refundErr)
		}
		if revertErr := e.revertPreorder(ctx, userID, preorderID, PreorderAvailable); revertErr != nil {
			return nil, fmt.Errorf("confirm failed (%w) and status revert failed: %v", err, revertErr)
		}
		return nil, err
	}

	e.audit.RecordRef(ctx, userID, AuditPreorderTransition, preorderID,
		"pre-order %s bought for %d credits", preorderID, request.TotalAmount)
	return request, nil
}

// CancelPreorder moves pending|available -> cancelled. No side effects
// beyond the status; nothing was debited yet.
func (e *WorkflowEngine) CancelPreorder(ctx context.Context, userID, preorderID string) (*PreorderRequest, error) {
	return e.transitionPreorder(ctx, userID, preorderID, func(r *PreorderRequest) error {
		if r.UserID != userID {
			return fmt.Errorf("%w: pre-order %s belongs to another user", ErrUnauthorized, preorderID)
		}
		if r.Status.terminal() {
			return &AlreadyProcessedError{RequestID: preorderID, Status: string(r.Status)}
		}
		r.Status = PreorderCancelled
		return nil
	})
}

// ListPreorders returns pre-orders, optionally filtered to one user,
// newest first.
func (e *WorkflowEngine) ListPreorders(ctx context.Context, userID string) ([]PreorderRequest, error) {
	docs, err := e.store.List(ctx, CollectionPreorders)
	if err != nil {
		return nil, err
	}
	var result []PreorderRequest
	for _, doc := range docs {
		var request PreorderRequest
		if err := decodeDoc(doc, &request); err != nil {
			return nil, err
		}
		if userID != "" && request.UserID != userID {
			continue
		}
		result = append(result, request)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// transitionPreorder applies mutate under compare-and-set and records the
// transition in the audit log.
func (e *WorkflowEngine) transitionPreorder(ctx context.Context, actorID, preorderID string, mutate func(*PreorderRequest) error) (*PreorderRequest, error) {
	request, err := casUpdate(ctx, e.store, CollectionPreorders, preorderID, "preorder", func(r *PreorderRequest) error {
		if err := mutate(r); err != nil {
			return err
		}
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.audit.RecordRef(ctx, actorID, AuditPreorderTransition, preorderID,
		"pre-order %s -> %s", preorderID, request.Status)
	return &request, nil
}

// revertPreorder is the compensation path: force the status back after a
// failed money movement. Bypasses the normal transition guards.
func (e *WorkflowEngine) revertPreorder(ctx context.Context, actorID, preorderID string, status PreorderStatus) error {
	_, err := e.transitionPreorder(ctx, actorID, preorderID, func(r *PreorderRequest) error {
		r.Status = status
		return nil
	})
	return err
}

// =============================================================================
// VOUCHER: pending -> {accepted, rejected}, single transition
// =============================================================================

// RequestVoucher creates a pending voucher request.
func (e *WorkflowEngine) RequestVoucher(ctx context.Context, userID string, voucherType VoucherType, amount int64, reason string) (*VoucherRequest, error) {
	if err := validatePositive("amount", amount); err != nil {
		return nil, err
	}
	if !validVoucherTypes[voucherType] {
		return nil, fmt.Errorf("%w: unknown voucher type %q", ErrInvalidAmount, voucherType)
	}
	if _, err := e.accounts.Get(ctx, userID); err != nil {
		return nil, err
	}

	request := VoucherRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      voucherType,
		Amount:    amount,
		Reason:    reason,
		Status:    VoucherPending,
		CreatedAt: time.Now().UTC(),
	}

	doc, err := encodeDoc(request.ID, request)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, CollectionVouchers, doc); err != nil {
		return nil, err
	}

	e.audit.RecordRef(ctx, userID, AuditVoucherRequested, request.ID,
		"%s requested a %s voucher for %d credits", userID, voucherType, amount)
	return &request, nil
}

// ResolveVoucher applies the single allowed transition. Acceptance also
// credits the requester as part of the same transition. A second
// resolution attempt fails with ErrAlreadyProcessed and leaves the
// balance untouched: the status flip happens under CAS at the pending
// version, so exactly one resolver wins.
func (e *WorkflowEngine) ResolveVoucher(ctx context.Context, staffID, requestID string, decision VoucherDecision) (*VoucherRequest, error) {
	if err := e.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidAmount, decision)
	}

	request, err := casUpdate(ctx, e.store, CollectionVouchers, requestID, "voucher", func(r *VoucherRequest) error {
		if r.Status != VoucherPending {
			return &AlreadyProcessedError{RequestID: requestID, Status: string(r.Status)}
		}
		now := time.Now().UTC()
		r.Status = VoucherStatus(decision)
		r.ResolvedAt = &now
		r.ResolvedBy = staffID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision == DecisionAccept {
		if _, err := e.ledger.Credit(ctx, request.UserID, request.Amount, staffID,
			fmt.Sprintf("voucher %s accepted", requestID)); err != nil {
			// The grant did not land: revert the status so the request can
			// be resolved again rather than silently losing the credits.
			if revertErr := e.revertVoucher(ctx, requestID); revertErr != nil {
				return nil, fmt.Errorf("voucher credit failed (%w) and status revert failed: %v", err, revertErr)
			}
			return nil, err
		}
	}

	e.audit.RecordRef(ctx, staffID, AuditVoucherResolved, requestID,
		"voucher %s %s by %s", requestID, decision, staffID)
	return &request, nil
}

// revertVoucher puts a voucher back to pending after a failed grant.
func (e *WorkflowEngine) revertVoucher(ctx context.Context, requestID string) error {
	_, err := casUpdate(ctx, e.store, CollectionVouchers, requestID, "voucher", func(r *VoucherRequest) error {
		r.Status = VoucherPending
		r.ResolvedAt = nil
		r.ResolvedBy = ""
		return nil
	})
	return err
}

// ListVouchers returns voucher requests, optionally filtered to one user,
// newest first.
func (e *WorkflowEngine) ListVouchers(ctx context.Context, userID string) ([]VoucherRequest, error) {
	docs, err := e.store.List(ctx, CollectionVouchers)
	if err != nil {
		return nil, err
	}
	var result []VoucherRequest
	for _, doc := range docs {
		var request VoucherRequest
		if err := decodeDoc(doc, &request); err != nil {
			return nil, err
		}
		if userID != "" && request.UserID != userID {
			continue
		}
		result = append(result, request)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// =============================================================================
// RESTOCK
// =============================================================================

// Restock adds qty units of a product (staff action). It does not touch
// pre-order statuses; staff mark those available explicitly.
func (e *WorkflowEngine) Restock(ctx context.Context, staffID, productID string, qty int64) (int64, error) {
	if err := e.requireStaff(ctx, staffID); err != nil {
		return 0, err
	}
	return e.stock.Increment(ctx, productID, qty, staffID, "restock")
}
