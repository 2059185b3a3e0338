package market_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TOP PRODUCTS
// =============================================================================

func TestReport_TopProducts_RankedByQuantity(t *testing.T) {
	// GIVEN: Purchases of 5 kettles, 3 toasters, 1 blender
	// WHEN: Building the report
	// THEN: Rows come back in descending quantity order

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)

	kettle := m.product(t, "Kettle", 10, 10)
	toaster := m.product(t, "Toaster", 10, 10)
	blender := m.product(t, "Blender", 10, 10)

	_, err := m.workflow.Purchase(ctx, "u1", kettle.ID, 5)
	require.NoError(t, err)
	_, err = m.workflow.Purchase(ctx, "u1", toaster.ID, 3)
	require.NoError(t, err)
	_, err = m.workflow.Purchase(ctx, "u1", blender.ID, 1)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	require.Len(t, report.TopProducts, 3)
	assert.Equal(t, "Kettle", report.TopProducts[0].ProductName)
	assert.Equal(t, int64(5), report.TopProducts[0].TotalQuantity)
	assert.Equal(t, "Toaster", report.TopProducts[1].ProductName)
	assert.Equal(t, "Blender", report.TopProducts[2].ProductName)
}

func TestReport_TopProducts_TieBrokenByEarliestRequest(t *testing.T) {
	// GIVEN: Two products with the same total quantity
	// WHEN: Building the report
	// THEN: The one requested first ranks higher

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)

	first := m.product(t, "Toaster", 10, 10)
	second := m.product(t, "Kettle", 10, 10)

	_, err := m.workflow.Purchase(ctx, "u1", first.ID, 2)
	require.NoError(t, err)
	_, err = m.workflow.Purchase(ctx, "u1", second.ID, 2)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "Toaster", report.TopProducts[0].ProductName, "earliest first request wins the tie")
	assert.Equal(t, "Kettle", report.TopProducts[1].ProductName)
}

func TestReport_TopProducts_TruncatedToTopN(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)

	for _, name := range []string{"A", "B", "C", "D"} {
		p := m.product(t, name, 10, 10)
		_, err := m.workflow.Purchase(ctx, "u1", p.ID, 1)
		require.NoError(t, err)
	}

	report, err := m.reporter.Build(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, report.TopProducts, 2)
}

func TestReport_TopProducts_CountsPreordersExceptCancelled(t *testing.T) {
	// GIVEN: A pending pre-order and a cancelled one
	// WHEN: Building the report
	// THEN: Only the pending pre-order's quantity is counted

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)

	cooker := m.product(t, "Rice Cooker", 40, 0)

	_, err := m.workflow.Preorder(ctx, "u1", cooker.ID, 2)
	require.NoError(t, err)

	dropped, err := m.workflow.Preorder(ctx, "u1", cooker.ID, 5)
	require.NoError(t, err)
	_, err = m.workflow.CancelPreorder(ctx, "u1", dropped.ID)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	require.Len(t, report.TopProducts, 1)
	assert.Equal(t, int64(2), report.TopProducts[0].TotalQuantity)
}

// =============================================================================
// REVENUE
// =============================================================================

func TestReport_Revenue_SplitsCompletedAndPending(t *testing.T) {
	// GIVEN: A completed purchase (60), a deferred one (30), and a
	//        pending pre-order (40)
	// WHEN: Building the report
	// THEN: Total revenue counts only money that moved; the rest is pending

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)

	kettle := m.product(t, "Kettle", 30, 10)
	cooker := m.product(t, "Rice Cooker", 40, 0)

	_, err := m.workflow.Purchase(ctx, "u1", kettle.ID, 2)
	require.NoError(t, err)
	_, err = m.workflow.PurchaseDeferred(ctx, "u1", kettle.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.Preorder(ctx, "u1", cooker.ID, 1)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(60), report.TotalRevenue)
	assert.Equal(t, int64(70), report.PendingRevenue)
}

func TestReport_Revenue_BoughtPreorderCounts(t *testing.T) {
	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)
	m.staff(t, "staff-1")

	cooker := m.product(t, "Rice Cooker", 40, 0)

	request, err := m.workflow.Preorder(ctx, "u1", cooker.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.Restock(ctx, "staff-1", cooker.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.MarkPreorderAvailable(ctx, "staff-1", request.ID)
	require.NoError(t, err)
	_, err = m.workflow.ConfirmPreorder(ctx, "u1", request.ID)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(40), report.TotalRevenue)
	assert.Equal(t, int64(0), report.PendingRevenue)
}

// =============================================================================
// AVERAGE SPEND
// =============================================================================

func TestReport_AverageSpend_AcrossBuyers(t *testing.T) {
	// GIVEN: u1 spent 60, u2 spent 30
	// WHEN: Building the report
	// THEN: Average spend is 45 over 2 buyers

	m := newTestMarket(t)
	ctx := context.Background()
	m.resident(t, "u1", 1000)
	m.resident(t, "u2", 1000)

	kettle := m.product(t, "Kettle", 30, 10)

	_, err := m.workflow.Purchase(ctx, "u1", kettle.ID, 2)
	require.NoError(t, err)
	_, err = m.workflow.Purchase(ctx, "u2", kettle.ID, 1)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, report.BuyerCount)
	assert.True(t, report.AverageSpend.Equal(decimal.NewFromInt(45)),
		"expected 45, got %s", report.AverageSpend)
}

func TestReport_AverageSpend_RoundedToTwoPlaces(t *testing.T) {
	// 100 / 3 buyers = 33.33
	m := newTestMarket(t)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		m.resident(t, id, 1000)
	}

	a := m.product(t, "A", 40, 10)
	b := m.product(t, "B", 30, 10)

	_, err := m.workflow.Purchase(ctx, "u1", a.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.Purchase(ctx, "u2", b.ID, 1)
	require.NoError(t, err)
	_, err = m.workflow.Purchase(ctx, "u3", b.ID, 1)
	require.NoError(t, err)

	report, err := m.reporter.Build(ctx, 10)
	require.NoError(t, err)

	expected, err := decimal.NewFromString("33.33")
	require.NoError(t, err)
	assert.True(t, report.AverageSpend.Equal(expected),
		"expected 33.33, got %s", report.AverageSpend)
}

func TestReport_Empty(t *testing.T) {
	m := newTestMarket(t)

	report, err := m.reporter.Build(context.Background(), 10)
	require.NoError(t, err)

	assert.Empty(t, report.TopProducts)
	assert.Equal(t, int64(0), report.TotalRevenue)
	assert.Equal(t, int64(0), report.PendingRevenue)
	assert.Equal(t, 0, report.BuyerCount)
	assert.True(t, report.AverageSpend.IsZero(), "no buyers means zero average, not a division error")
}
