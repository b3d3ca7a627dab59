package config

import "sort"

// Product is a purchasable quota pack.
type Product struct {
	ID          string
	Name        string
	AmountCents int
	Quota       int
	Currency    string
}

// Catalog is an immutable set of products keyed by id.
type Catalog struct {
	products map[string]Product
}

// NewCatalog copies products into a Catalog.
func NewCatalog(products ...Product) Catalog {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return Catalog{products: m}
}

// DefaultCatalog returns the Google Play products sold by the app.
func DefaultCatalog() Catalog {
	return NewCatalog(
		Product{ID: "pdf_editor_50_pages", Name: "50 pages", AmountCents: 100, Quota: 50, Currency: "USD"},
		Product{ID: "pdf_editor_5000_pages", Name: "5000 pages", AmountCents: 5000, Quota: 5000, Currency: "USD"},
	)
}

func (c Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Products returns all products ordered by price.
func (c Catalog) Products() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AmountCents != out[j].AmountCents {
			return out[i].AmountCents < out[j].AmountCents
		}
		return out[i].ID < out[j].ID
	})
	return out
}
