package executor

import "github.com/csotherden/wsql/internal/plan"

// Column is one bound input column's values, already coerced to the scalar
// type installed on the plan (plan.InstallColumnTypes). Exactly one of the
// two slices is populated, per IsInt32.
type Column struct {
	Int32   []int32
	Float32 []float32
	IsInt32 bool
}

// Dispatcher runs a compiled physical plan over one batch's columns and
// returns its output buffer, expressed as a single-batch QueryResult. Its
// Rows hold every row including sentinel-filtered ones, uncompacted.
// CompiledQuery.Execute calls this once per batch; production code supplies
// a *GPUDispatcher, tests supply a fake that evaluates the plan in-process.
type Dispatcher interface {
	Dispatch(p *plan.PhysicalPlan, bindingMap map[uint32]uint32, rowCount uint32, columns map[uint32]Column) (QueryResult, error)
}
