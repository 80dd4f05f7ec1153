// Package finance exposes the transaction ledger and balance summary. These
// routes are the protected surface gated by the auth middleware; they trust
// the identity it attaches and scope every query to that user.
package finance

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/edufinance/backend/internal/auth"
	apperrors "github.com/edufinance/backend/internal/errors"
	"github.com/edufinance/backend/internal/store"
)

type createTransactionRequest struct {
	Amount   *float64 `json:"amount"`
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Date     string   `json:"date"`
	Note     string   `json:"note"`
}

type balanceResponse struct {
	UserName string  `json:"userName"`
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

type deleteResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

type Handlers struct {
	users        store.UserStore
	transactions store.TransactionStore
}

func NewHandlers(users store.UserStore, transactions store.TransactionStore) *Handlers {
	return &Handlers{users: users, transactions: transactions}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	txs, err := h.transactions.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		return apperrors.StoreError("failed to list transactions").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, txs)
	return nil
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Amount == nil || req.Category == "" || req.Name == "" || req.Date == "" {
		return apperrors.ValidationError("amount, category, name, date are required")
	}

	tx := &store.Transaction{
		UserID:   identity.UserID,
		Name:     req.Name,
		Date:     req.Date,
		Amount:   *req.Amount,
		Category: req.Category,
		Note:     req.Note,
	}
	if err := h.transactions.Create(r.Context(), tx); err != nil {
		return apperrors.StoreError("failed to create transaction").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusCreated, tx)
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return apperrors.BadRequest("invalid transaction id")
	}

	if err := h.transactions.Delete(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return apperrors.TransactionNotFound()
		}
		return apperrors.StoreError("failed to delete transaction").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, deleteResponse{OK: true, ID: id})
	return nil
}

func (h *Handlers) Balance(w http.ResponseWriter, r *http.Request) error {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	userName := "User"
	if user, err := h.users.GetByID(r.Context(), identity.UserID); err == nil {
		userName = user.Name
	}

	txs, err := h.transactions.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		return apperrors.StoreError("failed to load transactions").WithCause(err)
	}

	var income, expenses float64
	for _, tx := range txs {
		if tx.Amount > 0 {
			income += tx.Amount
		} else {
			expenses += -tx.Amount
		}
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, balanceResponse{
		UserName: userName,
		Month:    time.Now().Format("January 2006"),
		Income:   income,
		Expenses: expenses,
		Balance:  income - expenses,
	})
	return nil
}
