package importer

import (
	"io"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type Format string

const (
	FormatFebraban Format = "febraban"
)

// Parser turns one bank's statement into transactions to create for that bank.
type Parser interface {
	Parse(r io.Reader, bankID string) ([]transaction.CreateParams, error)
}
