package executor

import (
	"context"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/sirupsen/logrus"
	substraitpb "github.com/substrait-io/substrait-go/proto"
)

// RecordReader is the minimal external collaborator interface Run needs from
// a columnar file reader, modeled directly on arrow/ipc.Reader's own shape
// so any Arrow-producing collaborator satisfies it without an adapter.
type RecordReader interface {
	Schema() *arrow.Schema
	Next() bool
	Record() arrow.Record
	Err() error
}

// Run compiles rawPlan against the first batch's schema, then executes and
// accumulates every batch reader yields, in arrival order. ctx is checked
// between batches, not mid-dispatch: a single dispatch cannot be safely
// interrupted, so cancellation only takes effect once a batch finishes.
func Run(ctx context.Context, reader RecordReader, rawPlan *substraitpb.Plan, d Dispatcher) (*QueryResult, error) {
	log := logrus.WithField("component", "executor")

	var cq *CompiledQuery
	var global *QueryResult
	batches := 0

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Error("query run canceled")
			return nil, err
		}

		batch := reader.Record()

		if cq == nil {
			compiled, err := Compile(rawPlan, batch.Schema(), d)
			if err != nil {
				log.WithError(err).Error("compile failed")
				return nil, err
			}
			cq = compiled
			global = NewQueryResult(cq.Plan.IsAggregate)
		}

		result, err := cq.Execute(batch)
		if err != nil {
			log.WithError(err).Error("batch execution failed")
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"rows": batch.NumRows(),
		}).Debug("batch_executed")

		if err := Accumulate(global, result); err != nil {
			log.WithError(err).Error("accumulation failed")
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"rows_total": len(global.Rows),
			"sum":        global.Sum,
		}).Debug("batch_accumulated")

		batches++
	}
	if err := reader.Err(); err != nil {
		log.WithError(err).Error("record reader failed")
		return nil, err
	}

	if batches == 0 {
		return nil, ErrNoDataProcessed
	}
	return global, nil
}
