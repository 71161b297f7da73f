package executor

import (
	"github.com/csotherden/wsql/internal/gen"
	"github.com/csotherden/wsql/internal/ir"
	"github.com/csotherden/wsql/internal/plan"
)

// fakeDispatcher is a GPU-less Dispatcher: it evaluates a PhysicalPlan's
// expression tree directly in Go, row by row, reproducing exactly the
// per-row and reduction semantics the generated WGSL encodes (including the
// aggregate-mode int-to-float widening and the projection-mode sentinel for
// filtered rows). It lets Compile/Execute/Run/Accumulate be tested
// deterministically without a real GPU driver.
type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(p *plan.PhysicalPlan, bindingMap map[uint32]uint32, rowCount uint32, columns map[uint32]Column) (QueryResult, error) {
	if p.IsAggregate {
		var sum float32
		for row := 0; row < int(rowCount); row++ {
			if p.Filter != nil && !evalBool(p.Filter, row, columns, p.ColumnTypes, true) {
				continue
			}
			sum += evalNumericAsF32(p.Projection, row, columns, p.ColumnTypes, true)
		}
		return QueryResult{IsAggregate: true, Sum: sum}, nil
	}

	rows := make([]int32, rowCount)
	for row := 0; row < int(rowCount); row++ {
		rows[row] = gen.SentinelValue
		if p.Filter != nil && !evalBool(p.Filter, row, columns, p.ColumnTypes, false) {
			continue
		}
		rows[row] = evalNumericAsI32(p.Projection, row, columns, p.ColumnTypes, false)
	}
	return QueryResult{Rows: rows}, nil
}

func evalNumericAsF32(e *ir.Expression, row int, columns map[uint32]Column, colTypes map[uint32]plan.ScalarType, aggregate bool) float32 {
	switch v := evalExpr(e, row, columns, colTypes, aggregate).(type) {
	case float32:
		return v
	case int32:
		return float32(v)
	default:
		return 0
	}
}

func evalNumericAsI32(e *ir.Expression, row int, columns map[uint32]Column, colTypes map[uint32]plan.ScalarType, aggregate bool) int32 {
	switch v := evalExpr(e, row, columns, colTypes, aggregate).(type) {
	case int32:
		return v
	case float32:
		return int32(v)
	default:
		return 0
	}
}

func evalBool(e *ir.Expression, row int, columns map[uint32]Column, colTypes map[uint32]plan.ScalarType, aggregate bool) bool {
	b, _ := evalExpr(e, row, columns, colTypes, aggregate).(bool)
	return b
}

// evalExpr mirrors internal/gen's translate: the value kind at each node
// (int32, float32, or bool) follows the same rules the shader generator
// uses to decide casts and operators.
func evalExpr(e *ir.Expression, row int, columns map[uint32]Column, colTypes map[uint32]plan.ScalarType, aggregate bool) interface{} {
	switch e.Kind {
	case ir.KindLiteral:
		if e.LiteralKind == ir.LiteralF32 {
			return e.F32
		}
		return e.I32

	case ir.KindColumn:
		c := columns[e.Column]
		if c.IsInt32 {
			v := c.Int32[row]
			if aggregate && colTypes[e.Column] == plan.ScalarInt32 {
				return float32(v)
			}
			return v
		}
		return c.Float32[row]

	default:
		l := evalExpr(e.Left, row, columns, colTypes, aggregate)
		r := evalExpr(e.Right, row, columns, colTypes, aggregate)
		switch e.Kind {
		case ir.KindAdd:
			return numericBinOp(l, r, func(a, b int32) int32 { return a + b }, func(a, b float32) float32 { return a + b })
		case ir.KindSubtract:
			return numericBinOp(l, r, func(a, b int32) int32 { return a - b }, func(a, b float32) float32 { return a - b })
		case ir.KindMultiply:
			return numericBinOp(l, r, func(a, b int32) int32 { return a * b }, func(a, b float32) float32 { return a * b })
		case ir.KindGreaterThan:
			return asF64(l) > asF64(r)
		case ir.KindLessThan:
			return asF64(l) < asF64(r)
		case ir.KindEqual:
			return asF64(l) == asF64(r)
		case ir.KindAnd:
			return l.(bool) && r.(bool)
		case ir.KindOr:
			return l.(bool) || r.(bool)
		default:
			return nil
		}
	}
}

func numericBinOp(l, r interface{}, onInt func(a, b int32) int32, onFloat func(a, b float32) float32) interface{} {
	li, lok := l.(int32)
	ri, rok := r.(int32)
	if lok && rok {
		return onInt(li, ri)
	}
	return onFloat(asF32(l), asF32(r))
}

func asF64(v interface{}) float64 {
	switch t := v.(type) {
	case int32:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return 0
	}
}

func asF32(v interface{}) float32 {
	switch t := v.(type) {
	case int32:
		return float32(t)
	case float32:
		return t
	default:
		return 0
	}
}
