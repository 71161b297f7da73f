package executor

import "github.com/pkg/errors"

// QueryResult is a query's output, either for one batch or accumulated
// across a whole run. Exactly one field is meaningful, per IsAggregate.
//
// Rows is never compacted: a row dropped by the query's filter still
// occupies a slot, carrying gen.SentinelValue, so Rows always has exactly
// as many entries as rows were read. Compacting it is a collaborator's
// concern, not this engine's.
type QueryResult struct {
	IsAggregate bool

	// Rows holds every batch's projected values, concatenated in arrival
	// order, one entry per input row.
	Rows []int32

	// Sum is the query's running total, for an aggregate-mode query.
	Sum float32
}

// NewQueryResult creates an empty accumulator for a query of the given kind.
func NewQueryResult(isAggregate bool) *QueryResult {
	return &QueryResult{IsAggregate: isAggregate}
}

// Accumulate folds one batch's QueryResult into acc, in place. It fails if
// the batch's aggregate-ness disagrees with acc's.
func Accumulate(acc *QueryResult, batch QueryResult) error {
	if acc.IsAggregate != batch.IsAggregate {
		return errors.Wrapf(ErrAccumulationKindMismatch, "query is_aggregate=%v, batch is_aggregate=%v", acc.IsAggregate, batch.IsAggregate)
	}

	if acc.IsAggregate {
		acc.Sum += batch.Sum
		return nil
	}

	acc.Rows = append(acc.Rows, batch.Rows...)
	return nil
}
