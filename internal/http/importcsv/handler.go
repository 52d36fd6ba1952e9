package importcsv

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/consignado/internal/importer"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type importedResponse struct {
	ID                uuid.UUID       `json:"id"`
	ContractNumber    string          `json:"contract_number"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentDate       string          `json:"payment_date"`
	BankTransactionID string          `json:"bank_transaction_id"`
}

type importResponse struct {
	Imported     int                `json:"imported"`
	Skipped      []string           `json:"skipped"`
	Transactions []importedResponse `json:"transactions"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	bank := r.FormValue("bank")
	if bank == "" {
		http.Error(w, "bank field is required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	params, err := h.importSvc.Parse(importer.Format(r.FormValue("format")), bank, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.importSvc.Store(r.Context(), params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toResponse(result)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func toResponse(result *importer.Result) importResponse {
	resp := importResponse{
		Imported:     len(result.Created),
		Skipped:      make([]string, 0, len(result.Skipped)),
		Transactions: make([]importedResponse, 0, len(result.Created)),
	}

	for _, p := range result.Skipped {
		resp.Skipped = append(resp.Skipped, p.BankTransactionID)
	}

	for _, tx := range result.Created {
		resp.Transactions = append(resp.Transactions, toImported(tx))
	}

	return resp
}

func toImported(tx *transaction.BankTransaction) importedResponse {
	return importedResponse{
		ID:                tx.ID,
		ContractNumber:    tx.ContractNumber,
		Amount:            tx.Amount,
		PaymentDate:       tx.PaymentDate.Format("2006-01-02"),
		BankTransactionID: tx.BankTransactionID,
	}
}
