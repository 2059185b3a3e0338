/*
audit.go - Append-only audit trail

PURPOSE:
  Every mutating ledger, stock, and workflow operation records who did
  what when. Entries are never updated or deleted; the staff audit view
  reads them back filtered by actor, action, and time range.

SEE ALSO:
  - ledger.go, stock.go, workflow.go: writers
*/
package market

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/market-engine/docstore"
)

// =============================================================================
// AUDIT ENTRY
// =============================================================================

type AuditAction string

const (
	AuditCreditsDebited     AuditAction = "credits_debited"
	AuditCreditsGranted     AuditAction = "credits_granted"
	AuditStockDecremented   AuditAction = "stock_decremented"
	AuditStockIncremented   AuditAction = "stock_incremented"
	AuditProductAdded       AuditAction = "product_added"
	AuditProductUpdated     AuditAction = "product_updated"
	AuditProductRemoved     AuditAction = "product_removed"
	AuditPurchaseCreated    AuditAction = "purchase_created"
	AuditPurchaseCompleted  AuditAction = "purchase_completed"
	AuditPreorderCreated    AuditAction = "preorder_created"
	AuditPreorderTransition AuditAction = "preorder_transitioned"
	AuditVoucherRequested   AuditAction = "voucher_requested"
	AuditVoucherResolved    AuditAction = "voucher_resolved"
	AuditAccountCreated     AuditAction = "account_created"
	AuditAccountDeleted     AuditAction = "account_deleted"
)

// AuditEntry records one mutation. Append-only.
type AuditEntry struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	ActorID     string      `json:"actorId,omitempty"`
	Action      AuditAction `json:"action"`
	Message     string      `json:"message"`
	ReferenceID string      `json:"referenceId,omitempty"`
}

// AuditFilter narrows a Query. Nil fields match everything.
type AuditFilter struct {
	ActorID *string
	Action  *AuditAction
	From    *time.Time
	To      *time.Time
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditLog writes and reads the auditLogs collection.
type AuditLog struct {
	Store docstore.Store
}

func NewAuditLog(store docstore.Store) *AuditLog {
	return &AuditLog{Store: store}
}

// Record appends an entry. The trail is best-effort: by the time an
// entry is written the operation it describes has already landed, so a
// failed append is logged rather than surfaced to the caller.
func (a *AuditLog) Record(ctx context.Context, actorID string, action AuditAction, format string, args ...any) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Action:    action,
		Message:   fmt.Sprintf(format, args...),
	}
	a.append(ctx, entry)
}

// RecordRef is Record with a reference to the affected entity.
func (a *AuditLog) RecordRef(ctx context.Context, actorID string, action AuditAction, referenceID, format string, args ...any) {
	entry := AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ActorID:     actorID,
		Action:      action,
		Message:     fmt.Sprintf(format, args...),
		ReferenceID: referenceID,
	}
	a.append(ctx, entry)
}

func (a *AuditLog) append(ctx context.Context, entry AuditEntry) {
	doc, err := encodeDoc(entry.ID, entry)
	if err != nil {
		log.Printf("audit: encode entry %s (%s): %v", entry.ID, entry.Action, err)
		return
	}
	if err := a.Store.Put(ctx, CollectionAuditLogs, doc); err != nil {
		log.Printf("audit: append entry %s (%s): %v", entry.ID, entry.Action, err)
	}
}

// Query returns entries matching the filter, oldest first.
func (a *AuditLog) Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	docs, err := a.Store.List(ctx, CollectionAuditLogs)
	if err != nil {
		return nil, err
	}

	var result []AuditEntry
	for _, doc := range docs {
		var entry AuditEntry
		if err := decodeDoc(doc, &entry); err != nil {
			return nil, err
		}
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		if filter.From != nil && entry.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && entry.Timestamp.After(*filter.To) {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}
