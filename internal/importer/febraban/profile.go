package febraban

// Profile describes the column layout of a payroll-deduction statement export.
// Adding a layout is adding a Profile to the profiles slice.
type Profile struct {
	Name           string
	ContractCol    string
	AmountCol      string
	DateCol        string
	TransactionCol string
}

func (p Profile) requiredCols() []string {
	return []string{p.ContractCol, p.AmountCol, p.DateCol, p.TransactionCol}
}

// profiles is tried in order during detection.
var profiles = []Profile{
	{
		Name:           "retorno",
		ContractCol:    "Contrato",
		AmountCol:      "Valor",
		DateCol:        "Data Pagamento",
		TransactionCol: "ID Transação",
	},
	{
		Name:           "extrato",
		ContractCol:    "Nº Contrato",
		AmountCol:      "Valor Pago",
		DateCol:        "Data",
		TransactionCol: "Documento",
	},
}
