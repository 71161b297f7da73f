// Package plan lowers a decoded Substrait relational plan into a fused
// PhysicalPlan: one projection expression, an optional filter, an aggregate
// flag, and a column-type map. Substrait wire decoding itself is a
// collaborator's responsibility; this package only ever sees an
// already-decoded *proto.Plan.
package plan

import "github.com/csotherden/wsql/internal/ir"

// ScalarType is one of the two scalar types the shader generator and GPU
// runtime understand. Decimal128 columns are coerced to ScalarFloat32 at
// column-type installation time; no other Arrow type is supported.
type ScalarType int

const (
	ScalarInt32 ScalarType = iota
	ScalarFloat32
)

func (t ScalarType) String() string {
	switch t {
	case ScalarInt32:
		return "int32"
	case ScalarFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// PhysicalPlan is the fused, post-lowering representation of a query: a
// single table scan, an optional filter, and either a projection or a
// scalar SUM aggregate over a projection. It lives for the duration of one
// query run.
type PhysicalPlan struct {
	// Projection is evaluated for every row that passes Filter (or every
	// row, if Filter is nil). Required.
	Projection *ir.Expression

	// Filter is evaluated per row; rows for which it is false are excluded
	// from the projection output (sentinel-filled) or the aggregate sum.
	// Optional.
	Filter *ir.Expression

	// IsAggregate, when true, makes this query a scalar SUM over
	// Projection instead of a row-for-row projection.
	IsAggregate bool

	// ColumnTypes maps every column index referenced by Projection or
	// Filter to its scalar type. Populated after lowering, once the first
	// batch's schema is known.
	ColumnTypes map[uint32]ScalarType
}

// UsedColumns returns the sorted, deduplicated set of column indices
// referenced by either Projection or Filter.
func (p *PhysicalPlan) UsedColumns() []uint32 {
	cols := ir.CollectColumns(p.Projection)
	for c := range ir.CollectColumns(p.Filter) {
		cols[c] = struct{}{}
	}
	out := make([]uint32, 0, len(cols))
	for c := range cols {
		out = append(out, c)
	}
	// Insertion sort: UsedColumns is small (one query's worth of columns),
	// and sort.Slice would be the only reason to import sort here.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
