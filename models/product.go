// Package models defines data structures for the scraper.
package models

// Base field names present on every scraped product.
const (
	FieldProductName = "Product name"
	FieldURL         = "URL"
	FieldRating      = "Rating"
)

// Attribute table field names the normalization steps operate on.
const (
	FieldPriceExclTax = "Price (excl. tax)"
	FieldPriceInclTax = "Price (incl. tax)"
	FieldTax          = "Tax"
	FieldAvailability = "Availability"
	FieldCurrency     = "Currency"
)

// Field is one named string value of a product record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawProduct holds the scraped string fields of one product detail page.
// Field order follows the page: base fields first, then attribute table rows.
// Optional attributes are absent rather than empty when the page has no table.
type RawProduct struct {
	fields []Field
	index  map[string]int
}

// NewRawProduct builds a record with the three base fields.
func NewRawProduct(name, url, rating string) *RawProduct {
	p := &RawProduct{index: make(map[string]int)}
	p.Set(FieldProductName, name)
	p.Set(FieldURL, url)
	p.Set(FieldRating, rating)
	return p
}

// Set stores value under name. An existing key keeps its position.
func (p *RawProduct) Set(name, value string) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[name]; ok {
		p.fields[i].Value = value
		return
	}
	p.index[name] = len(p.fields)
	p.fields = append(p.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (p *RawProduct) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	i, ok := p.index[name]
	if !ok {
		return "", false
	}
	return p.fields[i].Value, true
}

// Keys returns field names in insertion order.
func (p *RawProduct) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.fields))
	for i, f := range p.fields {
		keys[i] = f.Name
	}
	return keys
}

// Len reports the number of fields.
func (p *RawProduct) Len() int {
	if p == nil {
		return 0
	}
	return len(p.fields)
}
