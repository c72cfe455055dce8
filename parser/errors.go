package parser

import "fmt"

// ErrMissingElement indicates that markup lacks an element the page shape requires.
type ErrMissingElement struct {
	Selector string
}

func (e ErrMissingElement) Error() string {
	return fmt.Sprintf("missing element: %s", e.Selector)
}

// ErrPageCount indicates a pager element whose text does not end in a page number.
type ErrPageCount struct {
	Text string
	Err  error
}

func (e ErrPageCount) Error() string {
	return fmt.Errorf("page count %q: %w", e.Text, e.Err).Error()
}

func (e ErrPageCount) Unwrap() error {
	return e.Err
}
