/*
report.go - Reporting aggregator

PURPOSE:
  Read-only rollups for the staff reports view, recomputed on demand from
  the stored purchase and pre-order records. No state of its own, no
  caching: the numbers are always consistent with whatever the workflow
  engine has committed.

ROLLUPS:
  - Top products by total requested quantity (purchases + pre-orders,
    cancelled ones excluded), ties broken by earliest request timestamp
  - Total revenue: completed purchases + bought pre-orders
  - Pending revenue: pending purchases + pending pre-orders
  - Average spend: total revenue / distinct purchasing users, as a
    decimal (credits are integers, averages are not)
*/
package market

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuscart/market-engine/docstore"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// ProductRank is one row of the top-products table.
type ProductRank struct {
	ProductID     string    `json:"productId"`
	ProductName   string    `json:"productName"`
	TotalQuantity int64     `json:"totalQuantity"`
	FirstRequest  time.Time `json:"firstRequest"`
}

// Report is the full rollup.
type Report struct {
	TopProducts    []ProductRank   `json:"topProducts"`
	TotalRevenue   int64           `json:"totalRevenue"`
	PendingRevenue int64           `json:"pendingRevenue"`
	AverageSpend   decimal.Decimal `json:"averageSpend"`
	BuyerCount     int             `json:"buyerCount"`
}

// =============================================================================
// REPORTER
// =============================================================================

// Reporter derives rollups from stored requests.
type Reporter struct {
	store docstore.Store
}

func NewReporter(store docstore.Store) *Reporter {
	return &Reporter{store: store}
}

// Build computes the report with at most topN product rows.
func (r *Reporter) Build(ctx context.Context, topN int) (*Report, error) {
	purchases, err := r.loadPurchases(ctx)
	if err != nil {
		return nil, err
	}
	preorders, err := r.loadPreorders(ctx)
	if err != nil {
		return nil, err
	}

	type rankAccum struct {
		name     string
		quantity int64
		first    time.Time
	}
	ranks := make(map[string]*rankAccum)
	tally := func(productID, name string, qty int64, at time.Time) {
		acc, ok := ranks[productID]
		if !ok {
			ranks[productID] = &rankAccum{name: name, quantity: qty, first: at}
			return
		}
		acc.quantity += qty
		if at.Before(acc.first) {
			acc.first = at
		}
	}

	var totalRevenue, pendingRevenue int64
	buyers := make(map[string]bool)

	for _, p := range purchases {
		tally(p.ProductID, p.ProductName, p.Quantity, p.CreatedAt)
		switch p.Status {
		case PurchaseCompleted:
			totalRevenue += p.TotalAmount
			buyers[p.UserID] = true
		case PurchasePending:
			pendingRevenue += p.TotalAmount
		}
	}
	for _, p := range preorders {
		if p.Status == PreorderCancelled {
			continue
		}
		tally(p.ProductID, p.ProductName, p.Quantity, p.CreatedAt)
		switch p.Status {
		case PreorderBought:
			totalRevenue += p.TotalAmount
			buyers[p.UserID] = true
		case PreorderPending:
			pendingRevenue += p.TotalAmount
		}
	}

	top := make([]ProductRank, 0, len(ranks))
	for id, acc := range ranks {
		top = append(top, ProductRank{
			ProductID:     id,
			ProductName:   acc.name,
			TotalQuantity: acc.quantity,
			FirstRequest:  acc.first,
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalQuantity != top[j].TotalQuantity {
			return top[i].TotalQuantity > top[j].TotalQuantity
		}
		return top[i].FirstRequest.Before(top[j].FirstRequest)
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}

	average := decimal.Zero
	if len(buyers) > 0 {
		average = decimal.NewFromInt(totalRevenue).
			Div(decimal.NewFromInt(int64(len(buyers)))).
			Round(2)
	}

	return &Report{
		TopProducts:    top,
		TotalRevenue:   totalRevenue,
		PendingRevenue: pendingRevenue,
		AverageSpend:   average,
		BuyerCount:     len(buyers),
	}, nil
}

func (r *Reporter) loadPurchases(ctx context.Context) ([]PurchaseRequest, error) {
	docs, err := r.store.List(ctx, CollectionPurchases)
	if err != nil {
		return nil, err
	}
	result := make([]PurchaseRequest, 0, len(docs))
	for _, doc := range docs {
		var request PurchaseRequest
		if err := decodeDoc(doc, &request); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, nil
}

func (r *Reporter) loadPreorders(ctx context.Context) ([]PreorderRequest, error) {
	docs, err := r.store.List(ctx, CollectionPreorders)
	if err != nil {
		return nil, err
	}
	result := make([]PreorderRequest, 0, len(docs))
	for _, doc := range docs {
		var request PreorderRequest
		if err := decodeDoc(doc, &request); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, nil
}
