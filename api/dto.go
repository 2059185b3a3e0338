/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in the domain layer, before any mutation. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/campuscart/market-engine/market"
)

// =============================================================================
// AUTH
// =============================================================================

type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	// Role is honored only when the caller is staff; public sign-ups are
	// always residents.
	Role string `json:"role,omitempty"`
	// InitialCredits is honored only when the caller is staff.
	InitialCredits int64 `json:"initial_credits,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionDTO struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Credits   int64  `json:"credits"`
	CreatedAt string `json:"created_at"`
}

func toAccountDTO(a market.Account) AccountDTO {
	return AccountDTO{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Role:      string(a.Role),
		Credits:   a.Credits,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	ImageURL    string `json:"image_url"`
	UpdatedAt   string `json:"updated_at"`
}

func toProductDTO(p market.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		ImageURL:    p.ImageURL,
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

type ProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	ImageURL    string `json:"image_url"`
}

type RestockRequest struct {
	Quantity int64 `json:"quantity"`
}

// =============================================================================
// PURCHASES
// =============================================================================

type PurchaseCreateRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Deferred  bool   `json:"deferred,omitempty"`
}

type PurchaseDTO struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UserID      string `json:"user_id"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toPurchaseDTO(p market.PurchaseRequest) PurchaseDTO {
	return PurchaseDTO{
		ID:          p.ID,
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		UserID:      p.UserID,
		Quantity:    p.Quantity,
		UnitPrice:   p.UnitPrice,
		TotalAmount: p.TotalAmount,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PRE-ORDERS
// =============================================================================

type PreorderCreateRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type PreorderDTO struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UserID      string `json:"user_id"`
	Quantity    int64  `json:"quantity"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toPreorderDTO(p market.PreorderRequest) PreorderDTO {
	return PreorderDTO{
		ID:          p.ID,
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		UserID:      p.UserID,
		Quantity:    p.Quantity,
		TotalAmount: p.TotalAmount,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// VOUCHERS
// =============================================================================

type VoucherCreateRequest struct {
	Type   string `json:"voucher_type"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type VoucherResolveRequest struct {
	Decision string `json:"decision"` // "accepted" or "rejected"
}

type VoucherDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Type      string `json:"voucher_type"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toVoucherDTO(v market.VoucherRequest) VoucherDTO {
	return VoucherDTO{
		ID:        v.ID,
		UserID:    v.UserID,
		Type:      string(v.Type),
		Amount:    v.Amount,
		Reason:    v.Reason,
		Status:    string(v.Status),
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// REPORTS / AUDIT
// =============================================================================

type ReportDTO struct {
	TopProducts    []ProductRankDTO `json:"top_products"`
	TotalRevenue   int64            `json:"total_revenue"`
	PendingRevenue int64            `json:"pending_revenue"`
	AverageSpend   string           `json:"average_spend"`
	BuyerCount     int              `json:"buyer_count"`
}

type ProductRankDTO struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	TotalQuantity int64  `json:"total_quantity"`
}

type AuditEntryDTO struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	ActorID     string `json:"actor_id,omitempty"`
	Action      string `json:"action"`
	Message     string `json:"message"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
