/*
handlers.go - HTTP API handlers for the campus marketplace

PURPOSE:
  Exposes the marketplace engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the session identity (middleware, see server.go)
  3. Call domain logic (workflow engine, ledger, stock, reporter)
  4. Serialize response
  5. Map errors to statuses

ERROR HANDLING:
  Every domain error reaches the client as JSON with a distinct status:
  - 400: invalid amounts/quantities, malformed input
  - 401: missing or invalid session
  - 403: role mismatch
  - 404: unknown product/user/request
  - 409: terminal-state re-transition, optimistic-lock exhaustion
  - 422: insufficient credits, out of stock
  - 500: storage failures
  Nothing is swallowed; there is no console-only failure path.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuscart/market-engine/auth"
	"github.com/campuscart/market-engine/market"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Auth     auth.Provider
	Accounts *market.Accounts
	Ledger   *market.CreditLedger
	Stock    *market.StockManager
	Workflow *market.WorkflowEngine
	Reporter *market.Reporter
	Audit    *market.AuditLog
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// SignUp registers a resident account. Staff-created accounts (with role
// or starting credits) go through the same endpoint with a staff session.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	role := market.RoleResident
	var credits int64
	if claims := sessionClaims(r); claims != nil && claims.Role == market.RoleStaff {
		if req.Role != "" {
			role = market.Role(req.Role)
		}
		credits = req.InitialCredits
	}

	id, err := h.Auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, "Sign-up failed", err)
		return
	}

	account, err := h.Accounts.Create(r.Context(), id, req.FirstName, req.LastName, req.Email, role, credits)
	if err != nil {
		writeDomainError(w, "Account creation failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(*account))
}

// SignIn exchanges credentials for a session token.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, "Sign-in failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SessionDTO{
		UserID:    session.UserID,
		Email:     session.Email,
		Role:      string(session.Role),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

// SendPasswordReset issues a reset link. Always 202: the response does
// not reveal whether the email exists.
func (h *Handler) SendPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Auth.SendPasswordReset(r.Context(), req.Email); err != nil {
		writeDomainError(w, "Password reset failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset link sent"})
}

// ResetPassword consumes a reset token.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeDomainError(w, "Password reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// ChangePassword changes the signed-in user's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	if err := h.Auth.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeDomainError(w, "Password change failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// AdminResetPassword sends a reset link on a user's behalf (staff).
func (h *Handler) AdminResetPassword(w http.ResponseWriter, r *http.Request) {
	account, err := h.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "User lookup failed", err)
		return
	}
	if err := h.Auth.AdminResetPassword(r.Context(), account.Email); err != nil {
		writeDomainError(w, "Password reset failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset link sent"})
}

// Me returns the signed-in account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	account, err := h.Accounts.Get(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, "Account lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Stock.List(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.Stock.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Product lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*product))
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	product, err := h.Stock.AddProduct(r.Context(), claims.UserID, req.Name, req.Description, req.Price, req.Quantity, req.ImageURL)
	if err != nil {
		writeDomainError(w, "Failed to add product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*product))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	product, err := h.Stock.UpdateProduct(r.Context(), claims.UserID, chi.URLParam(r, "id"), req.Name, req.Description, req.Price, req.ImageURL)
	if err != nil {
		writeDomainError(w, "Failed to update product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*product))
}

func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	if err := h.Stock.RemoveProduct(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to remove product", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	quantity, err := h.Workflow.Restock(r.Context(), claims.UserID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeDomainError(w, "Restock failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"quantity": quantity})
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)

	var (
		purchase *market.PurchaseRequest
		err      error
	)
	if req.Deferred {
		purchase, err = h.Workflow.PurchaseDeferred(r.Context(), claims.UserID, req.ProductID, req.Quantity)
	} else {
		purchase, err = h.Workflow.Purchase(r.Context(), claims.UserID, req.ProductID, req.Quantity)
	}
	if err != nil {
		writeDomainError(w, "Purchase failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(*purchase))
}

func (h *Handler) CompletePurchase(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	purchase, err := h.Workflow.CompletePurchase(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Completion failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(*purchase))
}

// ListPurchases returns the caller's history; staff see everything.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	filter := claims.UserID
	if claims.Role == market.RoleStaff {
		filter = ""
	}
	purchases, err := h.Workflow.ListPurchases(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list purchases", err)
		return
	}
	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PRE-ORDER HANDLERS
// =============================================================================

func (h *Handler) CreatePreorder(w http.ResponseWriter, r *http.Request) {
	var req PreorderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	preorder, err := h.Workflow.Preorder(r.Context(), claims.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, "Pre-order failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPreorderDTO(*preorder))
}

func (h *Handler) ConfirmPreorder(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	preorder, err := h.Workflow.ConfirmPreorder(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Confirmation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreorderDTO(*preorder))
}

func (h *Handler) CancelPreorder(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	preorder, err := h.Workflow.CancelPreorder(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Cancellation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreorderDTO(*preorder))
}

func (h *Handler) MarkPreorderAvailable(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	preorder, err := h.Workflow.MarkPreorderAvailable(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Transition failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreorderDTO(*preorder))
}

func (h *Handler) MarkPreorderUnavailable(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	preorder, err := h.Workflow.MarkPreorderUnavailable(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Transition failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreorderDTO(*preorder))
}

func (h *Handler) ListPreorders(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	filter := claims.UserID
	if claims.Role == market.RoleStaff {
		filter = ""
	}
	preorders, err := h.Workflow.ListPreorders(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list pre-orders", err)
		return
	}
	dtos := make([]PreorderDTO, len(preorders))
	for i, p := range preorders {
		dtos[i] = toPreorderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// VOUCHER HANDLERS
// =============================================================================

func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req VoucherCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	voucher, err := h.Workflow.RequestVoucher(r.Context(), claims.UserID, market.VoucherType(req.Type), req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, "Voucher request failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(*voucher))
}

func (h *Handler) ResolveVoucher(w http.ResponseWriter, r *http.Request) {
	var req VoucherResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	claims := sessionClaims(r)
	voucher, err := h.Workflow.ResolveVoucher(r.Context(), claims.UserID, chi.URLParam(r, "id"), market.VoucherDecision(req.Decision))
	if err != nil {
		writeDomainError(w, "Resolution failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(*voucher))
}

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	filter := claims.UserID
	if claims.Role == market.RoleStaff {
		filter = ""
	}
	vouchers, err := h.Workflow.ListVouchers(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list vouchers", err)
		return
	}
	dtos := make([]VoucherDTO, len(vouchers))
	for i, v := range vouchers {
		dtos[i] = toVoucherDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT / AUDIT / USER HANDLERS (staff)
// =============================================================================

const defaultTopN = 5

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reporter.Build(r.Context(), defaultTopN)
	if err != nil {
		writeDomainError(w, "Failed to build report", err)
		return
	}

	dtos := make([]ProductRankDTO, len(report.TopProducts))
	for i, p := range report.TopProducts {
		dtos[i] = ProductRankDTO{
			ProductID:     p.ProductID,
			ProductName:   p.ProductName,
			TotalQuantity: p.TotalQuantity,
		}
	}
	writeJSON(w, http.StatusOK, ReportDTO{
		TopProducts:    dtos,
		TotalRevenue:   report.TotalRevenue,
		PendingRevenue: report.PendingRevenue,
		AverageSpend:   report.AverageSpend.String(),
		BuyerCount:     report.BuyerCount,
	})
}

func (h *Handler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Audit.Query(r.Context(), market.AuditFilter{})
	if err != nil {
		writeDomainError(w, "Failed to read audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:          e.ID,
			Timestamp:   e.Timestamp.Format(time.RFC3339),
			ActorID:     e.ActorID,
			Action:      string(e.Action),
			Message:     e.Message,
			ReferenceID: e.ReferenceID,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.List(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list users", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r)
	if err := h.Accounts.Delete(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrAlreadyProcessed), errors.Is(err, market.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, market.ErrInsufficientCredits), errors.Is(err, market.ErrOutOfStock),
		errors.Is(err, market.ErrPreorderRequiresNoStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
