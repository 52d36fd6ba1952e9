package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MrJamesThe3rd/consignado/internal/importer/febraban"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

var ErrBankRequired = errors.New("bank id is required")

// Result reports what an import stored. Skipped rows were already known for
// the same bank and transaction id.
type Result struct {
	Created []*transaction.BankTransaction
	Skipped []transaction.CreateParams
}

type Service struct {
	transactions transaction.Repository
	parsers      map[Format]Parser
	logger       *slog.Logger
}

func NewService(transactions transaction.Repository, logger *slog.Logger) *Service {
	return &Service{
		transactions: transactions,
		parsers: map[Format]Parser{
			FormatFebraban: febraban.NewParser(),
		},
		logger: logger,
	}
}

// Parse reads a statement without storing it.
func (s *Service) Parse(format Format, bankID string, r io.Reader) ([]transaction.CreateParams, error) {
	bankID = strings.TrimSpace(bankID)
	if bankID == "" {
		return nil, ErrBankRequired
	}

	if format == "" {
		format = FormatFebraban
	}

	parser, ok := s.parsers[format]
	if !ok {
		return nil, fmt.Errorf("unknown statement format: %s", format)
	}

	return parser.Parse(r, bankID)
}

// Import parses a statement and stores every new row as a PENDING transaction.
// It does not dispatch reconciliation.
func (s *Service) Import(ctx context.Context, format Format, bankID string, r io.Reader) (*Result, error) {
	params, err := s.Parse(format, bankID, r)
	if err != nil {
		return nil, err
	}

	return s.Store(ctx, params)
}

// Store creates the parsed rows, skipping ones already stored for the same bank.
func (s *Service) Store(ctx context.Context, params []transaction.CreateParams) (*Result, error) {
	if len(params) == 0 {
		return &Result{}, nil
	}

	created, skipped, err := s.transactions.CreateTransactions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("storing transactions: %w", err)
	}

	s.logger.Info("imported bank statement",
		"bank_id", params[0].BankID, "created", len(created), "skipped", len(skipped))

	return &Result{Created: created, Skipped: skipped}, nil
}
