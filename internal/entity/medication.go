package entity

import (
	"strings"

	"github.com/joseph-ayodele/pharma-quotes/constants"
)

// MedicationRecord is one extracted invoice line item. Every field holds a
// concrete string; absence is represented by a sentinel, never by omission.
type MedicationRecord struct {
	Name           string `json:"nombre"`
	RegulatoryCode string `json:"cum"`
	RegistrationID string `json:"invima"`
	Batch          string `json:"lote"`
	UnitPrice      string `json:"valorUnitario"`
	Tax            string `json:"iva"`
	TotalPrice     string `json:"valorTotal"`

	// Keyed by provider display name. Populated by the comparator only.
	ProviderCodes  map[string]string `json:"providerCodes,omitempty"`
	ProviderPrices map[string]string `json:"providerPrices,omitempty"`

	// Degraded marks the raw-text fallback produced when a response could not be decoded.
	Degraded bool `json:"-"`
}

// NewMedicationRecord returns a record with every field at its sentinel.
func NewMedicationRecord() MedicationRecord {
	return MedicationRecord{
		Name:           constants.NotAvailable,
		RegulatoryCode: constants.NotAvailable,
		RegistrationID: constants.NotAvailable,
		Batch:          constants.NotAvailable,
		UnitPrice:      constants.NotAvailable,
		Tax:            constants.DefaultTax,
		TotalPrice:     constants.NotAvailable,
	}
}

// Normalize replaces empty or whitespace-only fields with their sentinels.
func (m *MedicationRecord) Normalize() {
	m.Name = orDefault(m.Name, constants.NotAvailable)
	m.RegulatoryCode = orDefault(m.RegulatoryCode, constants.NotAvailable)
	m.RegistrationID = orDefault(m.RegistrationID, constants.NotAvailable)
	m.Batch = orDefault(m.Batch, constants.NotAvailable)
	m.UnitPrice = orDefault(m.UnitPrice, constants.NotAvailable)
	m.Tax = orDefault(m.Tax, constants.DefaultTax)
	m.TotalPrice = orDefault(m.TotalPrice, constants.NotAvailable)
}

// Clone returns a deep copy so enrichment never mutates the caller's record.
func (m MedicationRecord) Clone() MedicationRecord {
	out := m
	out.ProviderCodes = cloneMap(m.ProviderCodes)
	out.ProviderPrices = cloneMap(m.ProviderPrices)
	return out
}

// ProviderCode returns the matched code for provider or the "N/A" sentinel.
func (m MedicationRecord) ProviderCode(provider string) string {
	if v, ok := m.ProviderCodes[provider]; ok {
		return v
	}
	return constants.NotAvailable
}

// ProviderPrice returns the formatted price for provider or the "No disponible" sentinel.
func (m MedicationRecord) ProviderPrice(provider string) string {
	if v, ok := m.ProviderPrices[provider]; ok {
		return v
	}
	return constants.PriceNotListed
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
