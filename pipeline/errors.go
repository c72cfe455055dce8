package pipeline

import (
	"fmt"
	"strings"
)

// ErrRating indicates a rating word outside one..five.
type ErrRating struct {
	Value string
}

func (e ErrRating) Error() string {
	return fmt.Sprintf("rating must be one of one..five, got %q", e.Value)
}

// ErrTypeMismatch indicates a cell whose representation the step cannot take.
type ErrTypeMismatch struct {
	Column string
	Row    int
	Want   string
}

func (e ErrTypeMismatch) Error() string {
	return fmt.Sprintf("column %q row %d: expected %s", e.Column, e.Row, e.Want)
}

// ErrMissingColumn indicates the table lacks a column a step operates on.
type ErrMissingColumn struct {
	Columns []string
}

func (e ErrMissingColumn) Error() string {
	return fmt.Sprintf("missing column(s): %s", strings.Join(e.Columns, ", "))
}

// ErrUnsupportedFormat indicates an export format other than df, csv, excel or json.
type ErrUnsupportedFormat struct {
	Format string
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Format)
}
