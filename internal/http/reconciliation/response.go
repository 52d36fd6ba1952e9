package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type transactionResponse struct {
	ID                uuid.UUID                `json:"id"`
	ContractNumber    string                   `json:"contract_number"`
	Amount            decimal.Decimal          `json:"amount"`
	PaymentDate       string                   `json:"payment_date"`
	BankID            string                   `json:"bank_id"`
	BankTransactionID string                   `json:"bank_transaction_id"`
	Status            transaction.Status       `json:"status"`
	Divergences       []transaction.Divergence `json:"divergences,omitempty"`
	LastError         string                   `json:"last_error,omitempty"`
	ReconciledAt      *time.Time               `json:"reconciled_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         *time.Time               `json:"updated_at,omitempty"`
}

type listResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
}

type divergenceResponse struct {
	Transaction transactionResponse      `json:"transaction"`
	Divergences []transaction.Divergence `json:"divergences"`
}

type dispatchResponse struct {
	DispatchedCount int `json:"dispatched_count"`
}

func toResponse(tx *transaction.BankTransaction) transactionResponse {
	return transactionResponse{
		ID:                tx.ID,
		ContractNumber:    tx.ContractNumber,
		Amount:            tx.Amount,
		PaymentDate:       tx.PaymentDate.UTC().Format(time.DateOnly),
		BankID:            tx.BankID,
		BankTransactionID: tx.BankTransactionID,
		Status:            tx.Status,
		Divergences:       tx.Divergences,
		LastError:         tx.LastError,
		ReconciledAt:      tx.ReconciledAt,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
	}
}

func toListResponse(page *reconciliation.StatusPage) listResponse {
	resp := listResponse{
		Transactions: make([]transactionResponse, len(page.Transactions)),
		Total:        page.Total,
	}

	for i, tx := range page.Transactions {
		resp.Transactions[i] = toResponse(tx)
	}

	return resp
}
