// Package compare enriches extracted medication records with the closest
// catalog entry of each configured provider.
package compare

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/catalog"
	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/metrics"
)

var priceLocale = language.MustParse("es-CO")

// Comparator looks up every record in every provider catalog.
type Comparator struct {
	searcher  catalog.Searcher
	providers []catalog.Provider
	threshold float64
	printer   *message.Printer
	logger    *slog.Logger
}

type Option func(*Comparator)

// WithThreshold overrides the minimum similarity (inclusive).
func WithThreshold(th float64) Option {
	return func(c *Comparator) {
		if th > 0 {
			c.threshold = th
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Comparator. A nil or empty providers list uses
// catalog.DefaultProviders.
func New(searcher catalog.Searcher, providers []catalog.Provider, opts ...Option) *Comparator {
	if len(providers) == 0 {
		providers = catalog.DefaultProviders()
	}
	c := &Comparator{
		searcher:  searcher,
		providers: append([]catalog.Provider(nil), providers...),
		threshold: catalog.DefaultThreshold,
		printer:   message.NewPrinter(priceLocale),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the provider display names in declaration order.
func (c *Comparator) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name
	}
	return names
}

// Compare returns enriched copies of records in the same order. Lookup
// failures are scoped to one provider and one record; the affected cells keep
// their sentinels.
func (c *Comparator) Compare(ctx context.Context, records []entity.MedicationRecord) []entity.MedicationRecord {
	out := make([]entity.MedicationRecord, len(records))
	for i, rec := range records {
		r := rec.Clone()
		r.ProviderCodes = make(map[string]string, len(c.providers))
		r.ProviderPrices = make(map[string]string, len(c.providers))
		for _, p := range c.providers {
			code, price := c.lookup(ctx, p, r.Name)
			r.ProviderCodes[p.Name] = code
			r.ProviderPrices[p.Name] = price
		}
		out[i] = r
	}
	return out
}

func (c *Comparator) lookup(ctx context.Context, p catalog.Provider, name string) (string, string) {
	// A placeholder name must never pull in a catalog price.
	if n := strings.TrimSpace(name); n == "" || n == constants.NotAvailable {
		metrics.CatalogLookups.WithLabelValues(p.Name, "miss").Inc()
		return constants.NotAvailable, constants.PriceNotListed
	}
	m, err := c.searcher.BestMatch(ctx, p.Table, name, c.threshold)
	if err != nil {
		metrics.CatalogLookups.WithLabelValues(p.Name, "error").Inc()
		c.logger.Warn("compare.lookup.failed", "provider", p.Name, "product", name, "error", err)
		return constants.NotAvailable, constants.PriceNotListed
	}
	if m == nil || !catalog.Eligible(m.Similarity, c.threshold) {
		metrics.CatalogLookups.WithLabelValues(p.Name, "miss").Inc()
		c.logger.Debug("compare.lookup.miss", "provider", p.Name, "product", name)
		return constants.NotAvailable, constants.PriceNotListed
	}
	metrics.CatalogLookups.WithLabelValues(p.Name, "hit").Inc()
	c.logger.Debug("compare.lookup.hit",
		"provider", p.Name,
		"product", name,
		"match", m.Product,
		"similarity", m.Similarity,
	)
	return m.Code, c.FormatPrice(m.Price)
}

// FormatPrice renders price with Colombian grouping, e.g. 125000 as "$125.000".
func (c *Comparator) FormatPrice(price float64) string {
	return "$" + c.printer.Sprint(number.Decimal(price, number.MaxFractionDigits(2)))
}
