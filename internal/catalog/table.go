package catalog

import "fmt"

// Table names a provider catalog table. Only the constants below are valid;
// table names are never taken from request input.
type Table string

const (
	TableGeneral Table = "proveedor_general"
	TableBogota  Table = "proveedor_bogota"
)

// Tables lists every known catalog table.
func Tables() []Table {
	return []Table{TableGeneral, TableBogota}
}

// Valid reports whether t is one of the known catalog tables.
func (t Table) Valid() bool {
	switch t {
	case TableGeneral, TableBogota:
		return true
	}
	return false
}

// ParseTable resolves a configured name to a Table.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown catalog table %q", name)
	}
	return t, nil
}

// Provider binds a display name to its catalog table.
type Provider struct {
	Name  string
	Table Table
}

// DefaultProviders in report column order.
func DefaultProviders() []Provider {
	return []Provider{
		{Name: "Proveedor General", Table: TableGeneral},
		{Name: "Proveedor Bogotá", Table: TableBogota},
	}
}

// DefaultThreshold is the minimum similarity for a catalog row to match.
const DefaultThreshold = 0.15

// Eligible reports whether a row with similarity sim may match. The
// threshold itself is inclusive.
func Eligible(sim, threshold float64) bool {
	return sim >= threshold
}
