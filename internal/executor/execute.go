package executor

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/pkg/errors"

	"github.com/csotherden/wsql/internal/plan"
)

// Execute runs the compiled query against one batch and returns its raw
// dispatch result. The batch's schema must be column-compatible with the
// schema Compile was called with (same types at the indices the query
// references); Execute does not re-validate the whole schema.
func (cq *CompiledQuery) Execute(batch arrow.Record) (QueryResult, error) {
	rowCount := uint32(batch.NumRows())

	columns := make(map[uint32]Column, len(cq.BindingMap))
	for col := range cq.BindingMap {
		c, err := extractColumn(batch, col, cq.Plan.ColumnTypes[col])
		if err != nil {
			return QueryResult{}, errors.Wrapf(err, "column %d", col)
		}
		columns[col] = c
	}

	result, err := cq.dispatcher.Dispatch(cq.Plan, cq.BindingMap, rowCount, columns)
	if err != nil {
		return QueryResult{}, errors.Wrap(ErrGpuDispatchFailure, err.Error())
	}
	return result, nil
}

// extractColumn materializes column idx of batch as a Column matching
// scalarType, coercing Decimal128 to float32.
func extractColumn(batch arrow.Record, idx uint32, scalarType plan.ScalarType) (Column, error) {
	col := batch.Column(int(idx))

	switch scalarType {
	case plan.ScalarInt32:
		arr, ok := col.(*array.Int32)
		if !ok {
			return Column{}, errors.Wrapf(ErrUnsupportedColumnArray, "expected Int32 array, got %T", col)
		}
		return Column{Int32: arr.Int32Values(), IsInt32: true}, nil

	case plan.ScalarFloat32:
		switch arr := col.(type) {
		case *array.Float32:
			return Column{Float32: arr.Float32Values()}, nil
		case *array.Decimal128:
			scale := arr.DataType().(*arrow.Decimal128Type).Scale
			values := make([]float32, arr.Len())
			for i := 0; i < arr.Len(); i++ {
				values[i] = float32(arr.Value(i).ToFloat64(scale))
			}
			return Column{Float32: values}, nil
		default:
			return Column{}, errors.Wrapf(ErrUnsupportedColumnArray, "expected Float32 or Decimal128 array, got %T", col)
		}

	default:
		return Column{}, errors.Errorf("executor: unknown scalar type %v for column %d", scalarType, idx)
	}
}
