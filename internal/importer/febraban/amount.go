package febraban

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseBrazilianAmount parses "1.234,56", "R$ 1.234,56" or "10,00" into a decimal.
func parseBrazilianAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	clean = strings.ReplaceAll(clean, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	return decimal.NewFromString(clean)
}
