package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/aluiziolira/booksdata/parser"
)

// Failure classes reported for discarded cohorts and counted in ErrorsByType.
const (
	ClassHTTPStatus = "http_status"
	ClassTimeout    = "timeout"
	ClassConnection = "connection"
	ClassParse      = "parse"
	ClassCancelled  = "cancelled"
	ClassOther      = "other"
)

// ErrHTTPStatus indicates a response outside the 200-399 range.
type ErrHTTPStatus struct {
	StatusCode int
	URL        string
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.URL)
}

// ErrBodyTooLarge indicates a response body over the configured size limit.
type ErrBodyTooLarge struct {
	URL   string
	Limit int
}

func (e ErrBodyTooLarge) Error() string {
	return fmt.Sprintf("response body of %s exceeds %d bytes", e.URL, e.Limit)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrCategoryNotFound indicates the requested category is not in the catalogue.
type ErrCategoryNotFound struct {
	Category string
}

func (e ErrCategoryNotFound) Error() string {
	return fmt.Sprintf("category not found: %q", e.Category)
}

// CohortFailure is one failed member of a cohort.
type CohortFailure struct {
	Key   string
	Class string
	Err   error
}

// ErrCohort reports that at least one member of a concurrent cohort failed and
// the cohort's results were discarded as a whole.
type ErrCohort struct {
	Stage    string
	Size     int
	Failures []CohortFailure
}

func (e ErrCohort) Error() string {
	classes := e.Classes()
	names := make([]string, 0, len(classes))
	for class, n := range classes {
		names = append(names, fmt.Sprintf("%s=%d", class, n))
	}
	sort.Strings(names)
	return fmt.Sprintf("%s cohort failed: %d of %d members (%s)", e.Stage, len(e.Failures), e.Size, strings.Join(names, ", "))
}

func (e ErrCohort) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Classes counts failures per class.
func (e ErrCohort) Classes() map[string]int {
	out := make(map[string]int)
	for _, f := range e.Failures {
		out[f.Class]++
	}
	return out
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return ClassCancelled
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return ClassTimeout
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return ClassHTTPStatus
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return ClassConnection
	}
	var missing parser.ErrMissingElement
	if errors.As(err, &missing) {
		return ClassParse
	}
	var pageCount parser.ErrPageCount
	if errors.As(err, &pageCount) {
		return ClassParse
	}
	return ClassOther
}

// classifyError maps a raw transport error onto the typed errors above.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection{Err: err}
	}
	return err
}
