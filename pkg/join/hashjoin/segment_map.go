package hashjoin

import (
	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/jon-wei/druid-sub000/pkg/config"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/segment"
)

// SegmentMapFn builds the clauses of a query once and returns a function
// wrapping each base segment the query reads. All wrapped segments share one
// filter analyzer, so a filter is pre-analyzed once per query rather than once
// per segment. With no clauses the function returns segments unchanged.
func SegmentMapFn(specs []join.ClauseSpec, factory join.JoinableFactory, cfg config.JoinConfig, opts ...Option) (func(segment.StorageAdapter) segment.StorageAdapter, error) {
	clauses, err := join.CreateClauses(specs, factory)
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		return func(base segment.StorageAdapter) segment.StorageAdapter { return base }, nil
	}
	if err := validate(clauses, cfg); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.queryID == "" {
		o.queryID = uuid.NewString()
	}
	o.analyzer = newAnalyzer(clauses, cfg, o)
	logClauses(log.With(o.logger, "query_id", o.queryID), clauses)

	return func(base segment.StorageAdapter) segment.StorageAdapter {
		return newAdapter(base, clauses, o)
	}, nil
}
