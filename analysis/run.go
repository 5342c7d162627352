package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Report bundles the results of every check.
type Report struct {
	Links      LinkReport       `json:"links" yaml:"links"`
	Duplicates DuplicateReport  `json:"duplicates" yaml:"duplicates"`
	Structure  SiteStructure    `json:"structure" yaml:"structure"`
	Uniqueness UniquenessReport `json:"uniqueness" yaml:"uniqueness"`
}

// RunAll runs the four checks concurrently over the same URLs.
func (a *Analyzer) RunAll(ctx context.Context, domain string, urls []string) (Report, error) {
	var result Report
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		result.Links, err = a.BrokenLinks(groupCtx, domain, urls, nil)

		return err
	})
	group.Go(func() error {
		var err error
		result.Duplicates, err = a.Duplicates(groupCtx, urls, nil)

		return err
	})
	group.Go(func() error {
		var err error
		result.Structure, err = a.Structure(groupCtx, domain, urls, nil)

		return err
	})
	group.Go(func() error {
		var err error
		result.Uniqueness, err = a.Uniqueness(groupCtx, urls, nil)

		return err
	})

	if err := group.Wait(); err != nil {
		return result, err
	}

	return result, nil
}
