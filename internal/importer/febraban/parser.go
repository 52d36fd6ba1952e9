// Package febraban reads the ';'-separated payment statements Brazilian banks
// export for payroll-deductible loan installments.
package febraban

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	enc "github.com/MrJamesThe3rd/consignado/internal/encoding"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

var ErrUnknownLayout = errors.New("no matching statement layout found")

var dateLayouts = []string{"02/01/2006", "02-01-2006", "2006-01-02"}

// Parser auto-detects the statement layout by matching column headers against
// known profiles. Leading metadata lines before the header are ignored.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader, bankID string) ([]transaction.CreateParams, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, ErrUnknownLayout
	}

	return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1, bankID)
}

type colIndex map[string]int

func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows skips rows without a parseable date (totals, page footers) and
// rejects rows that have a date but lack the other required values.
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int, bankID string) ([]transaction.CreateParams, error) {
	var txs []transaction.CreateParams

	for i, row := range rows {
		rowNum := headerRowNum + i + 1

		date, ok := parseDate(cellValue(row, cols[p.DateCol]))
		if !ok {
			continue
		}

		contractNumber := cellValue(row, cols[p.ContractCol])
		if contractNumber == "" {
			return nil, fmt.Errorf("row %d: missing contract number", rowNum)
		}

		txID := cellValue(row, cols[p.TransactionCol])
		if txID == "" {
			return nil, fmt.Errorf("row %d: missing transaction id", rowNum)
		}

		amount, err := parseBrazilianAmount(cellValue(row, cols[p.AmountCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount: %w", rowNum, err)
		}

		if !amount.IsPositive() {
			return nil, fmt.Errorf("row %d: amount must be positive, got %s", rowNum, amount)
		}

		txs = append(txs, transaction.CreateParams{
			ContractNumber:    contractNumber,
			Amount:            amount,
			PaymentDate:       date,
			BankID:            bankID,
			BankTransactionID: txID,
		})
	}

	return txs, nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
