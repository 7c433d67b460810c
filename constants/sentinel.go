package constants

// Placeholder values written instead of omitting a field. The spreadsheet
// writer relies on every column being populated.
const (
	NotAvailable   = "N/A"
	DefaultTax     = "0"
	PriceNotListed = "No disponible"
)
