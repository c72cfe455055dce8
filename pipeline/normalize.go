// Package pipeline turns scraped string records into typed columns and
// exports the resulting table.
package pipeline

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/booksdata/models"
)

var (
	priceSynonyms        = regexp.MustCompile(`(?i)(Free|Give Away|Gratis|No charge)`)
	availabilitySynonyms = regexp.MustCompile(`(?i)(Not in stock|Out of stock|Sold out|Unavailable)`)
	nonNumeric           = regexp.MustCompile(`[^\d.]`)
)

// PriceColumns are converted together: all of them or none.
var PriceColumns = []string{models.FieldPriceExclTax, models.FieldPriceInclTax, models.FieldTax}

// Options selects the normalization steps.
type Options struct {
	ProductNameAsIndex bool
	RatingAsFloat      bool
	ParseCurrency      bool
	ParsePrices        bool
	ParseAvailability  bool
}

// DefaultOptions enables every conversion and leaves the index unset.
func DefaultOptions() Options {
	return Options{
		RatingAsFloat:     true,
		ParseCurrency:     true,
		ParsePrices:       true,
		ParseAvailability: true,
	}
}

// Normalize applies the selected steps in order: index, rating, currency,
// prices, availability. Currency reads the raw price text, so it runs before
// prices are retyped.
func Normalize(t *models.Table, opts Options) error {
	if opts.ProductNameAsIndex {
		if err := t.SetIndex(models.FieldProductName); err != nil {
			return err
		}
	}
	if opts.RatingAsFloat {
		if err := ConvertRatings(t); err != nil {
			return err
		}
	}
	if opts.ParseCurrency {
		if err := ExtractCurrency(t); err != nil {
			return err
		}
	}
	if opts.ParsePrices {
		if _, err := ParsePrices(t); err != nil {
			return err
		}
	}
	if opts.ParseAvailability {
		if _, err := ParseAvailability(t); err != nil {
			return err
		}
	}
	return nil
}

// RatingToFloat converts a rating word to the 1.0-5.0 scale, ignoring case.
func RatingToFloat(rating string) (float64, error) {
	switch strings.ToLower(rating) {
	case "one":
		return 1.0, nil
	case "two":
		return 2.0, nil
	case "three":
		return 3.0, nil
	case "four":
		return 4.0, nil
	case "five":
		return 5.0, nil
	default:
		return 0, ErrRating{Value: rating}
	}
}

// ConvertRatings retypes the Rating column as numbers.
func ConvertRatings(t *models.Table) error {
	cells, ok := t.Column(models.FieldRating)
	if !ok {
		return ErrMissingColumn{Columns: []string{models.FieldRating}}
	}
	out := make([]models.Cell, len(cells))
	for i, cell := range cells {
		if cell.Kind != models.CellString {
			return ErrTypeMismatch{Column: models.FieldRating, Row: i, Want: "string"}
		}
		v, err := RatingToFloat(cell.Str)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = models.NumberCell(v)
	}
	return t.SetColumn(models.FieldRating, out)
}

// CurrencySymbol returns the first of $, £ or € in text.
func CurrencySymbol(text string) (string, bool) {
	i := strings.IndexAny(text, "$£€")
	if i < 0 {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return string(r), true
}

// ExtractCurrency adds a Currency column derived from the price including tax.
// Rows without a symbol get a missing value.
func ExtractCurrency(t *models.Table) error {
	cells, ok := t.Column(models.FieldPriceInclTax)
	if !ok {
		return ErrMissingColumn{Columns: []string{models.FieldPriceInclTax}}
	}
	out := make([]models.Cell, len(cells))
	for i, cell := range cells {
		switch cell.Kind {
		case models.CellMissing:
			out[i] = models.MissingCell()
		case models.CellString:
			if symbol, ok := CurrencySymbol(cell.Str); ok {
				out[i] = models.StringCell(symbol)
			}
		default:
			return ErrTypeMismatch{Column: models.FieldPriceInclTax, Row: i, Want: "string"}
		}
	}
	return t.SetColumn(models.FieldCurrency, out)
}

// ParseAmount substitutes synonyms with zero, strips everything but digits
// and dots, and parses the rest.
func ParseAmount(text string, synonyms *regexp.Regexp) (float64, error) {
	cleaned := synonyms.ReplaceAllString(text, "0")
	cleaned = nonNumeric.ReplaceAllString(cleaned, "")
	return strconv.ParseFloat(cleaned, 64)
}

// ParsePrice parses one price or tax cell.
func ParsePrice(text string) (float64, error) {
	return ParseAmount(text, priceSynonyms)
}

// ParseStock parses one availability cell into an item count.
func ParseStock(text string) (float64, error) {
	return ParseAmount(text, availabilitySynonyms)
}

// ParsePrices retypes the three price columns. If any cell fails to parse all
// three are left as they were and false is returned.
func ParsePrices(t *models.Table) (bool, error) {
	return convertGroup(t, PriceColumns, ParsePrice)
}

// ParseAvailability retypes the Availability column, leaving it untouched if
// any cell fails to parse.
func ParseAvailability(t *models.Table) (bool, error) {
	return convertGroup(t, []string{models.FieldAvailability}, ParseStock)
}

func convertGroup(t *models.Table, columns []string, parse func(string) (float64, error)) (bool, error) {
	var missing []string
	for _, col := range columns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return false, ErrMissingColumn{Columns: missing}
	}

	converted := make(map[string][]models.Cell, len(columns))
	for _, col := range columns {
		cells, _ := t.Column(col)
		out := make([]models.Cell, len(cells))
		for i, cell := range cells {
			switch cell.Kind {
			case models.CellNumber:
				out[i] = cell
			case models.CellString:
				v, err := parse(cell.Str)
				if err != nil {
					slog.Warn("leaving columns unparsed",
						slog.Any("columns", columns),
						slog.String("column", col),
						slog.Int("row", i),
						slog.String("value", cell.Str),
					)
					return false, nil
				}
				out[i] = models.NumberCell(v)
			default:
				slog.Warn("leaving columns unparsed",
					slog.Any("columns", columns),
					slog.String("column", col),
					slog.Int("row", i),
				)
				return false, nil
			}
		}
		converted[col] = out
	}

	for _, col := range columns {
		if err := t.SetColumn(col, converted[col]); err != nil {
			return false, err
		}
	}
	return true, nil
}
