package market_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscart/market-engine/docstore"
	"github.com/campuscart/market-engine/docstore/memory"
	"github.com/campuscart/market-engine/market"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testMarket struct {
	store    docstore.Store
	accounts *market.Accounts
	ledger   *market.CreditLedger
	stock    *market.StockManager
	workflow *market.WorkflowEngine
	reporter *market.Reporter
}

func newTestMarket(t *testing.T) *testMarket {
	return newTestMarketWithStore(t, memory.New())
}

func newTestMarketWithStore(t *testing.T, store docstore.Store) *testMarket {
	audit := market.NewAuditLog(store)
	accounts := market.NewAccounts(store, audit)
	ledger := market.NewCreditLedger(store, audit)
	stock := market.NewStockManager(store, audit)
	return &testMarket{
		store:    store,
		accounts: accounts,
		ledger:   ledger,
		stock:    stock,
		workflow: market.NewWorkflowEngine(store, ledger, stock, accounts, audit),
		reporter: market.NewReporter(store),
	}
}

func (m *testMarket) resident(t *testing.T, id string, credits int64) {
	t.Helper()
	_, err := m.accounts.Create(context.Background(), id, "Res", "Ident", id+"@campus.test", market.RoleResident, credits)
	require.NoError(t, err)
}

func (m *testMarket) staff(t *testing.T, id string) {
	t.Helper()
	_, err := m.accounts.Create(context.Background(), id, "Sta", "Ff", id+"@campus.test", market.RoleStaff, 0)
	require.NoError(t, err)
}

func (m *testMarket) product(t *testing.T, name string, price, quantity int64) *market.Product {
	t.Helper()
	product, err := m.stock.AddProduct(context.Background(), "staff-1", name, "", price, quantity, "")
	require.NoError(t, err)
	return product
}

func (m *testMarket) balance(t *testing.T, userID string) int64 {
	t.Helper()
	balance, err := m.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func (m *testMarket) available(t *testing.T, productID string) int64 {
	t.Helper()
	available, err := m.stock.Available(context.Background(), productID)
	require.NoError(t, err)
	return available
}

// flakyStore wraps a real store and fails Update for one collection.
// It simulates a storage failure between the debit and the decrement.
type flakyStore struct {
	docstore.Store
	failCollection string
}

var errInjected = errors.New("injected storage failure")

func (s *flakyStore) Update(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	if collection == s.failCollection {
		return docstore.Document{}, errInjected
	}
	return s.Store.Update(ctx, collection, doc)
}

// unwritableStore wraps a real store and fails Put for one collection.
// It simulates the request record (or audit entry) failing to land
// after the money already moved.
type unwritableStore struct {
	docstore.Store
	failCollection string
}

func (s *unwritableStore) Put(ctx context.Context, collection string, doc docstore.Document) error {
	if collection == s.failCollection {
		return errInjected
	}
	return s.Store.Put(ctx, collection, doc)
}

// =============================================================================
// PURCHASE TESTS
// =============================================================================

func TestWorkflow_Purchase_HappyPath(t *testing.T) {
	// GIVEN: A resident with 100 credits and a product at 30 credits, 2 in stock
	// WHEN: Buying both units
	// THEN: Balance 40, stock 0, and a completed request with snapshots

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 2)

	request, err := m.workflow.Purchase(ctx, "u1", product.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, market.PurchaseCompleted, request.Status)
	assert.Equal(t, int64(30), request.UnitPrice)
	assert.Equal(t, int64(60), request.TotalAmount)
	assert.Equal(t, "Kettle", request.ProductName)
	require.NotNil(t, request.CompletedAt)

	assert.Equal(t, int64(40), m.balance(t, "u1"))
	assert.Equal(t, int64(0), m.available(t, product.ID))
}

func TestWorkflow_Purchase_InsufficientCredits_NothingMoves(t *testing.T) {
	// GIVEN: A resident with 20 credits and a 30-credit product
	// WHEN: Buying one unit
	// THEN: InsufficientCreditsError; balance, stock, and history untouched

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 20)
	product := m.product(t, "Kettle", 30, 5)

	_, err := m.workflow.Purchase(ctx, "u1", product.ID, 1)
	assert.ErrorIs(t, err, market.ErrInsufficientCredits)

	assert.Equal(t, int64(20), m.balance(t, "u1"))
	assert.Equal(t, int64(5), m.available(t, product.ID))

	purchases, err := m.workflow.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestWorkflow_Purchase_OutOfStock_NothingMoves(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 1)

	_, err := m.workflow.Purchase(ctx, "u1", product.ID, 2)
	assert.ErrorIs(t, err, market.ErrOutOfStock)

	assert.Equal(t, int64(100), m.balance(t, "u1"))
	assert.Equal(t, int64(1), m.available(t, product.ID))
}

func TestWorkflow_Purchase_InvalidQuantity_Rejected(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 5)

	_, err := m.workflow.Purchase(ctx, "u1", product.ID, 0)
	assert.ErrorIs(t, err, market.ErrInvalidAmount)

	_, err = m.workflow.Purchase(ctx, "u1", product.ID, -3)
	assert.ErrorIs(t, err, market.ErrInvalidAmount)
}

func TestWorkflow_Purchase_UnknownProduct(t *testing.T) {
	m := newTestMarket(t)
	m.resident(t, "u1", 100)

	_, err := m.workflow.Purchase(context.Background(), "u1", "ghost", 1)
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestWorkflow_Purchase_SnapshotImmuneToPriceChange(t *testing.T) {
	// GIVEN: A completed purchase at 30/unit
	// WHEN: Staff later raise the price to 50
	// THEN: The stored request still shows the price paid

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 5)

	request, err := m.workflow.Purchase(ctx, "u1", product.ID, 1)
	require.NoError(t, err)

	_, err = m.stock.UpdateProduct(ctx, "staff-1", product.ID, "Kettle", "", 50, "")
	require.NoError(t, err)

	purchases, err := m.workflow.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, request.ID, purchases[0].ID)
	assert.Equal(t, int64(30), purchases[0].UnitPrice)
	assert.Equal(t, int64(30), purchases[0].TotalAmount)
}

func TestWorkflow_Purchase_DecrementFails_DebitRefunded(t *testing.T) {
	// GIVEN: A store where inventory writes fail after the debit landed
	// WHEN: A purchase runs
	// THEN: The compensating credit restores the balance and no request
	//       is recorded

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 5)

	// Swap in the failing store for the buy itself.
	broken := newTestMarketWithStore(t, &flakyStore{Store: m.store, failCollection: market.CollectionInventory})

	_, err := broken.workflow.Purchase(ctx, "u1", product.ID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(100), m.balance(t, "u1"), "debit must be refunded")
	assert.Equal(t, int64(5), m.available(t, product.ID))

	purchases, err := m.workflow.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestWorkflow_Purchase_RecordWriteFails_DebitAndStockRestored(t *testing.T) {
	// GIVEN: A store where the purchase record cannot be written, after
	//        the debit and the decrement both landed
	// WHEN: A purchase runs
	// THEN: The debit is refunded, the unit goes back on the shelf, and
	//       no request exists

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 5)

	broken := newTestMarketWithStore(t, &unwritableStore{Store: m.store, failCollection: market.CollectionPurchases})

	_, err := broken.workflow.Purchase(ctx, "u1", product.ID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(100), m.balance(t, "u1"), "debit must be refunded")
	assert.Equal(t, int64(5), m.available(t, product.ID), "stock must be restored")

	purchases, err := m.workflow.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestWorkflow_Purchase_AuditAppendFails_PurchaseStands(t *testing.T) {
	// GIVEN: A store where audit entries cannot be written
	// WHEN: A purchase runs
	// THEN: The purchase itself still lands; the trail is best-effort

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 5)

	broken := newTestMarketWithStore(t, &unwritableStore{Store: m.store, failCollection: market.CollectionAuditLogs})

	request, err := broken.workflow.Purchase(ctx, "u1", product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, market.PurchaseCompleted, request.Status)

	assert.Equal(t, int64(70), m.balance(t, "u1"))
	assert.Equal(t, int64(4), m.available(t, product.ID))

	purchases, err := m.workflow.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
}

func TestWorkflow_ConcurrentPurchases_LastUnit_SingleWinner(t *testing.T) {
	// GIVEN: One unit left and several residents racing to buy it
	// WHEN: All purchases run concurrently against the same store
	// THEN: Exactly one succeeds; every loser keeps their credits and
	//       exactly one request is recorded

	const buyers = 6

	m := newTestMarket(t)
	ctx := context.Background()
	product := m.product(t, "Kettle", 30, 1)

	ids := make([]string, buyers)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i+1)
		m.resident(t, ids[i], 100)
	}

	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.workflow.Purchase(ctx, ids[i], product.ID, 1)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		if err == nil {
			winners++
			assert.Equal(t, int64(70), m.balance(t, ids[i]), "winner pays")
			continue
		}
		assert.True(t, errors.Is(err, market.ErrOutOfStock) || market.IsRetryable(err),
			"loser sees out-of-stock or contention, got: %v", err)
		assert.Equal(t, int64(100), m.balance(t, ids[i]), "loser keeps their credits")
	}
	assert.Equal(t, 1, winners, "exactly one buyer gets the last unit")
	assert.Equal(t, int64(0), m.available(t, product.ID))

	purchases, err := m.workflow.ListPurchases(ctx, "")
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
}

// =============================================================================
// DEFERRED PURCHASE TESTS
// =============================================================================

func TestWorkflow_PurchaseDeferred_PendingUntilStaffComplete(t *testing.T) {
	// GIVEN: A deferred buy (credits and stock taken, fulfilment later)
	// WHEN: Staff complete it
	// THEN: pending -> completed exactly once

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	m.staff(t, "staff-1")
	product := m.product(t, "Kettle", 30, 2)

	request, err := m.workflow.PurchaseDeferred(ctx, "u1", product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, market.PurchasePending, request.Status)
	assert.Nil(t, request.CompletedAt)

	// Reservation holds even while pending.
	assert.Equal(t, int64(70), m.balance(t, "u1"))
	assert.Equal(t, int64(1), m.available(t, product.ID))

	completed, err := m.workflow.CompletePurchase(ctx, "staff-1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, market.PurchaseCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Completed requests are immutable.
	_, err = m.workflow.CompletePurchase(ctx, "staff-1", request.ID)
	assert.ErrorIs(t, err, market.ErrAlreadyProcessed)
}

func TestWorkflow_CompletePurchase_ResidentRejected(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Kettle", 30, 2)

	request, err := m.workflow.PurchaseDeferred(ctx, "u1", product.ID, 1)
	require.NoError(t, err)

	_, err = m.workflow.CompletePurchase(ctx, "u1", request.ID)
	assert.ErrorIs(t, err, market.ErrUnauthorized)
}

// =============================================================================
// PRE-ORDER TESTS
// =============================================================================

func TestWorkflow_Preorder_RequiresZeroStock(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	stocked := m.product(t, "Kettle", 30, 3)

	_, err := m.workflow.Preorder(ctx, "u1", stocked.ID, 1)
	assert.ErrorIs(t, err, market.ErrPreorderRequiresNoStock)
}

func TestWorkflow_Preorder_FullLifecycle(t *testing.T) {
	// GIVEN: A pre-order on an out-of-stock product
	// WHEN: Staff restock, mark it available, and the user confirms
	// THEN: pending -> available -> bought, debiting the snapshot total
	//       only at the final transition

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	m.staff(t, "staff-1")
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, market.PreorderPending, request.Status)
	assert.Equal(t, int64(80), request.TotalAmount)
	assert.Equal(t, int64(100), m.balance(t, "u1"), "no debit at creation")

	// Cannot mark available before stock covers the request.
	_, err = m.workflow.MarkPreorderAvailable(ctx, "staff-1", request.ID)
	assert.ErrorIs(t, err, market.ErrOutOfStock)

	_, err = m.workflow.Restock(ctx, "staff-1", product.ID, 5)
	require.NoError(t, err)

	available, err := m.workflow.MarkPreorderAvailable(ctx, "staff-1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, market.PreorderAvailable, available.Status)
	assert.Equal(t, int64(100), m.balance(t, "u1"), "no debit at availability")

	bought, err := m.workflow.ConfirmPreorder(ctx, "u1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, market.PreorderBought, bought.Status)
	assert.Equal(t, int64(20), m.balance(t, "u1"))
	assert.Equal(t, int64(3), m.available(t, product.ID))
}

func TestWorkflow_Preorder_SnapshotImmuneToPriceChange(t *testing.T) {
	// The total locked in at creation is what the confirmation debits,
	// even if staff changed the price in between.
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	m.staff(t, "staff-1")
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 1)
	require.NoError(t, err)

	_, err = m.stock.UpdateProduct(ctx, "staff-1", product.ID, "Rice Cooker", "", 90, "")
	require.NoError(t, err)

	_, err = m.workflow.Restock(ctx, "staff-1", product.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.MarkPreorderAvailable(ctx, "staff-1", request.ID)
	require.NoError(t, err)

	bought, err := m.workflow.ConfirmPreorder(ctx, "u1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), bought.TotalAmount)
	assert.Equal(t, int64(60), m.balance(t, "u1"), "debit uses the creation-time snapshot")
}

func TestWorkflow_ConfirmPreorder_InsufficientCredits_StatusReverted(t *testing.T) {
	// GIVEN: An available pre-order the user can no longer afford
	// WHEN: Confirming
	// THEN: The debit fails and the pre-order returns to available

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 10)
	m.staff(t, "staff-1")
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.Restock(ctx, "staff-1", product.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.MarkPreorderAvailable(ctx, "staff-1", request.ID)
	require.NoError(t, err)

	_, err = m.workflow.ConfirmPreorder(ctx, "u1", request.ID)
	assert.ErrorIs(t, err, market.ErrInsufficientCredits)

	preorders, err := m.workflow.ListPreorders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, preorders, 1)
	assert.Equal(t, market.PreorderAvailable, preorders[0].Status, "failed confirmation must not burn the pre-order")
	assert.Equal(t, int64(10), m.balance(t, "u1"))
}

func TestWorkflow_ConfirmPreorder_OtherUser_Rejected(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	m.resident(t, "u2", 100)
	m.staff(t, "staff-1")
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.Restock(ctx, "staff-1", product.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.MarkPreorderAvailable(ctx, "staff-1", request.ID)
	require.NoError(t, err)

	_, err = m.workflow.ConfirmPreorder(ctx, "u2", request.ID)
	assert.ErrorIs(t, err, market.ErrUnauthorized)
}

func TestWorkflow_ConfirmPreorder_PendingNotConfirmable(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 1)
	require.NoError(t, err)

	_, err = m.workflow.ConfirmPreorder(ctx, "u1", request.ID)
	assert.ErrorIs(t, err, market.ErrAlreadyProcessed)
}

func TestWorkflow_CancelPreorder_TerminalStatesRejected(t *testing.T) {
	// GIVEN: A pre-order marked unavailable
	// WHEN: The user cancels it
	// THEN: AlreadyProcessed; unavailable is terminal

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	m.staff(t, "staff-1")
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 1)
	require.NoError(t, err)

	unavailable, err := m.workflow.MarkPreorderUnavailable(ctx, "staff-1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, market.PreorderUnavailable, unavailable.Status)

	_, err = m.workflow.CancelPreorder(ctx, "u1", request.ID)
	assert.ErrorIs(t, err, market.ErrAlreadyProcessed)
}

func TestWorkflow_CancelPreorder_WhilePendingOrAvailable(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 100)
	product := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", product.ID, 1)
	require.NoError(t, err)

	cancelled, err := m.workflow.CancelPreorder(ctx, "u1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, market.PreorderCancelled, cancelled.Status)
	assert.Equal(t, int64(100), m.balance(t, "u1"), "nothing was debited, nothing to refund")
}

// =============================================================================
// VOUCHER TESTS
// =============================================================================

func TestWorkflow_Voucher_AcceptGrantsCredits(t *testing.T) {
	// GIVEN: A pending voucher for 50 credits
	// WHEN: Staff accept it
	// THEN: The requester's balance goes up by exactly 50

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 10)
	m.staff(t, "staff-1")

	request, err := m.workflow.RequestVoucher(ctx, "u1", market.VoucherFood, 50, "groceries")
	require.NoError(t, err)
	assert.Equal(t, market.VoucherPending, request.Status)

	resolved, err := m.workflow.ResolveVoucher(ctx, "staff-1", request.ID, market.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, market.VoucherAccepted, resolved.Status)
	assert.Equal(t, "staff-1", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	assert.Equal(t, int64(60), m.balance(t, "u1"))
}

func TestWorkflow_Voucher_RejectLeavesBalance(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 10)
	m.staff(t, "staff-1")

	request, err := m.workflow.RequestVoucher(ctx, "u1", market.VoucherBooks, 50, "textbooks")
	require.NoError(t, err)

	resolved, err := m.workflow.ResolveVoucher(ctx, "staff-1", request.ID, market.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, market.VoucherRejected, resolved.Status)

	assert.Equal(t, int64(10), m.balance(t, "u1"))
}

func TestWorkflow_Voucher_DoubleResolve_SingleGrant(t *testing.T) {
	// GIVEN: An accepted voucher
	// WHEN: Staff resolve it again (either decision)
	// THEN: AlreadyProcessed, and the balance reflects exactly one grant

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 0)
	m.staff(t, "staff-1")

	request, err := m.workflow.RequestVoucher(ctx, "u1", market.VoucherTransport, 25, "bus pass")
	require.NoError(t, err)

	_, err = m.workflow.ResolveVoucher(ctx, "staff-1", request.ID, market.DecisionAccept)
	require.NoError(t, err)

	_, err = m.workflow.ResolveVoucher(ctx, "staff-1", request.ID, market.DecisionAccept)
	assert.ErrorIs(t, err, market.ErrAlreadyProcessed)

	_, err = m.workflow.ResolveVoucher(ctx, "staff-1", request.ID, market.DecisionReject)
	assert.ErrorIs(t, err, market.ErrAlreadyProcessed)

	assert.Equal(t, int64(25), m.balance(t, "u1"), "credits granted exactly once")
}

func TestWorkflow_Voucher_ResidentCannotResolve(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 0)
	m.resident(t, "u2", 0)

	request, err := m.workflow.RequestVoucher(ctx, "u1", market.VoucherFood, 25, "groceries")
	require.NoError(t, err)

	_, err = m.workflow.ResolveVoucher(ctx, "u2", request.ID, market.DecisionAccept)
	assert.ErrorIs(t, err, market.ErrUnauthorized)
}

func TestWorkflow_Voucher_Validation(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 0)
	m.staff(t, "staff-1")

	_, err := m.workflow.RequestVoucher(ctx, "u1", market.VoucherFood, 0, "zero")
	assert.ErrorIs(t, err, market.ErrInvalidAmount)

	_, err = m.workflow.RequestVoucher(ctx, "u1", "jetski", 25, "unknown type")
	assert.ErrorIs(t, err, market.ErrInvalidAmount)

	request, err := m.workflow.RequestVoucher(ctx, "u1", market.VoucherFood, 25, "groceries")
	require.NoError(t, err)

	_, err = m.workflow.ResolveVoucher(ctx, "staff-1", request.ID, "maybe")
	assert.ErrorIs(t, err, market.ErrInvalidAmount)
}

// =============================================================================
// RESTOCK TESTS
// =============================================================================

func TestWorkflow_Restock_StaffOnly(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 0)
	m.staff(t, "staff-1")
	product := m.product(t, "Kettle", 30, 0)

	_, err := m.workflow.Restock(ctx, "u1", product.ID, 5)
	assert.ErrorIs(t, err, market.ErrUnauthorized)

	quantity, err := m.workflow.Restock(ctx, "staff-1", product.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), quantity)
}
