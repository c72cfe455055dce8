package scraper

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// runCohort launches fn once per key and joins them as one unit. Either every
// member succeeds and the results come back in key order, or the cohort fails
// with ErrCohort and no result is returned. Sibling members are not cancelled
// when one fails; their outcomes are still collected for classification.
func runCohort[T any](ctx context.Context, stage string, limit int, keys []string, fn func(context.Context, string) (T, error)) ([]T, error) {
	results := make([]T, len(keys))
	errs := make([]error, len(keys))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, key := range keys {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s member %s panicked: %v", stage, key, r)
					errs[i] = err
				}
			}()
			value, err := fn(ctx, key)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = value
			return nil
		})
	}

	if err := g.Wait(); err == nil {
		return results, nil
	}

	cohortErr := ErrCohort{Stage: stage, Size: len(keys)}
	for i, err := range errs {
		if err == nil {
			continue
		}
		cohortErr.Failures = append(cohortErr.Failures, CohortFailure{
			Key:   keys[i],
			Class: errorTypeLabel(err),
			Err:   err,
		})
	}
	return nil, cohortErr
}
