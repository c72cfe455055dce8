// Package parser turns single pages of the catalogue into structured data.
// Every function is pure: markup in, values out.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/booksdata/models"
)

// Selectors and href affixes of the target site's markup.
const (
	CategorySelector = "ul a[href^='../books/']"
	ProductSelector  = "article.product_pod > h3 > a"
	PagerSelector    = "ul.pager li.current"
	TitleSelector    = "article.product_page div.col-sm-6.product_main > h1"
	RatingSelector   = "article.product_page div.col-sm-6.product_main > p[class^='star-rating ']"
	TableSelector    = "article.product_page > table.table.table-striped"

	// "../" and "/index.html"
	categoryPrefixLen = 3
	categorySuffixLen = 11
	// "../../../"
	productPrefixLen = 9
)

func newDocument(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseCategories maps lower-cased category names to their navigation paths.
// An href that does not have the expected shape yields a meaningless path
// rather than an error.
func ParseCategories(markup string) (map[string]string, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}

	categories := make(map[string]string)
	doc.Find(CategorySelector).Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(s.Text()))
		href, _ := s.Attr("href")
		categories[name] = trimAffixes(href, categoryPrefixLen, categorySuffixLen)
	})
	return categories, nil
}

// ParseProductPaths lists product detail paths in page order.
func ParseProductPaths(markup string) ([]string, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}

	anchors := doc.Find(ProductSelector)
	paths := make([]string, 0, anchors.Length())
	var missing error
	anchors.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			missing = ErrMissingElement{Selector: ProductSelector + "[href]"}
			return false
		}
		paths = append(paths, trimAffixes(href, productPrefixLen, 0))
		return true
	})
	if missing != nil {
		return nil, missing
	}
	return paths, nil
}

// ParsePageCount returns the total number of listing pages announced by the
// pager, or 0 when the page has no pager.
func ParsePageCount(markup string) (int, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return 0, err
	}

	current := doc.Find(PagerSelector).First()
	if current.Length() == 0 {
		return 0, nil
	}

	text := strings.TrimSpace(current.Text())
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, ErrPageCount{Text: text, Err: errors.New("empty pager")}
	}
	total, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, ErrPageCount{Text: text, Err: err}
	}
	return total, nil
}

// RemainingPages lists the page numbers after the first one, 2..total.
func RemainingPages(total int) []int {
	if total < 2 {
		return nil
	}
	pages := make([]int, 0, total-1)
	for n := 2; n <= total; n++ {
		pages = append(pages, n)
	}
	return pages
}

// ParseProduct extracts the product record from a detail page.
func ParseProduct(markup, url string) (*models.RawProduct, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}

	titleSel := doc.Find(TitleSelector).First()
	if titleSel.Length() == 0 {
		return nil, ErrMissingElement{Selector: TitleSelector}
	}
	title := strings.TrimSpace(titleSel.Text())
	if title == "" {
		return nil, ErrMissingElement{Selector: TitleSelector + " text"}
	}

	ratingSel := doc.Find(RatingSelector).First()
	if ratingSel.Length() == 0 {
		return nil, ErrMissingElement{Selector: RatingSelector}
	}
	class, _ := ratingSel.Attr("class")
	tokens := strings.Fields(class)
	if len(tokens) < 2 {
		return nil, ErrMissingElement{Selector: RatingSelector + " rating token"}
	}

	product := models.NewRawProduct(title, url, tokens[1])

	table := doc.Find(TableSelector).First()
	if table.Length() == 0 {
		return product, nil
	}

	var rowErr error
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		th := tr.Find("th").First()
		td := tr.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			rowErr = ErrMissingElement{Selector: TableSelector + " tr > th, td"}
			return false
		}
		product.Set(strings.TrimSpace(th.Text()), strings.TrimSpace(td.Text()))
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return product, nil
}

func trimAffixes(s string, prefix, suffix int) string {
	if len(s) < prefix+suffix {
		return ""
	}
	return s[prefix : len(s)-suffix]
}
