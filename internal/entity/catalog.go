package entity

// CatalogEntry is one row of a provider price list.
type CatalogEntry struct {
	Code    string  `json:"code"`
	Product string  `json:"product"`
	Price   float64 `json:"price"`
}

// CatalogMatch is a catalog row together with its similarity to the query.
type CatalogMatch struct {
	CatalogEntry
	Similarity float64 `json:"similarity"`
}
