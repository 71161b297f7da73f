// Package gen is the JIT shader generator: it emits a WGSL compute program
// specialized to one plan.PhysicalPlan and a column-to-binding map.
package gen

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/csotherden/wsql/internal/ir"
	"github.com/csotherden/wsql/internal/plan"
)

// Workgroup is the fixed WGSL workgroup size every generated kernel uses.
// The executor's workgroup-count arithmetic and the reduction tree's
// stride sequence (32, 16, 8, 4, 2, 1) both assume exactly this size.
const Workgroup = 64

// sentinel is the bit pattern written into filtered-out projection rows:
// the signed int32 minimum, spelled as a bitcast of the unsigned literal so
// the WGSL parser never has to negate an out-of-range positive literal.
const sentinel = "bitcast<i32>(0x80000000u)"

// SentinelValue is sentinel's Go-side value, exported so callers and tests
// can recognize a filtered-out row in a projection result without decoding
// the generated WGSL themselves.
const SentinelValue int32 = math.MinInt32

var binaryOps = map[ir.Kind]string{
	ir.KindAdd:         "+",
	ir.KindSubtract:    "-",
	ir.KindMultiply:    "*",
	ir.KindGreaterThan: ">",
	ir.KindLessThan:    "<",
	ir.KindEqual:       "==",
	ir.KindAnd:         "&&",
	ir.KindOr:          "||",
}

// Generate emits the complete WGSL source for p, given the column-index to
// binding-slot assignment in bindingMap (built by the executor from
// plan.PhysicalPlan.UsedColumns()).
func Generate(p *plan.PhysicalPlan, bindingMap map[uint32]uint32) (string, error) {
	logic, err := translate(p.Projection, bindingMap, p.ColumnTypes, p.IsAggregate)
	if err != nil {
		return "", errors.Wrap(err, "translating projection")
	}

	condition := "true"
	if p.Filter != nil {
		condition, err = translate(p.Filter, bindingMap, p.ColumnTypes, p.IsAggregate)
		if err != nil {
			return "", errors.Wrap(err, "translating filter")
		}
	}

	scalarType := "i32"
	valSentinel := sentinel
	if p.IsAggregate {
		scalarType = "f32"
		valSentinel = "0.0f"
	}

	var b strings.Builder
	b.WriteString("struct QueryParams {\n    row_count: u32,\n}\n\n")

	for _, slot := range sortedSlots(bindingMap) {
		col := columnForSlot(bindingMap, slot)
		inType := "f32"
		if p.ColumnTypes[col] == plan.ScalarInt32 {
			inType = "i32"
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read> in_col_%d: array<%s>;\n", slot, slot, inType)
	}

	outSlot := uint32(len(bindingMap))
	fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read_write> out_col: array<%s>;\n", outSlot, scalarType)
	fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read> params: QueryParams;\n\n", outSlot+1)

	if p.IsAggregate {
		fmt.Fprintf(&b, "var<workgroup> scratch: array<f32, %d>;\n\n", Workgroup)
	}

	fmt.Fprintf(&b, "@compute @workgroup_size(%d)\n", Workgroup)
	b.WriteString("fn main(\n")
	b.WriteString("    @builtin(global_invocation_id) global_id: vec3<u32>,\n")
	b.WriteString("    @builtin(local_invocation_id) local_id: vec3<u32>,\n")
	b.WriteString("    @builtin(workgroup_id) group_id: vec3<u32>,\n")
	b.WriteString(") {\n")
	b.WriteString("    let idx = global_id.x;\n")
	b.WriteString("    let l_idx = local_id.x;\n\n")
	fmt.Fprintf(&b, "    var val: %s = %s;\n\n", scalarType, valSentinel)
	fmt.Fprintf(&b, "    if (idx < params.row_count) {\n")
	fmt.Fprintf(&b, "        if (%s) {\n", condition)
	fmt.Fprintf(&b, "            val = %s;\n", logic)
	b.WriteString("        }\n")
	b.WriteString("    }\n\n")

	if p.IsAggregate {
		b.WriteString("    scratch[l_idx] = val;\n")
		b.WriteString("    workgroupBarrier();\n\n")
		b.WriteString("    for (var s = 32u; s > 0u; s >>= 1u) {\n")
		b.WriteString("        if (l_idx < s) {\n")
		b.WriteString("            scratch[l_idx] += scratch[l_idx + s];\n")
		b.WriteString("        }\n")
		b.WriteString("        workgroupBarrier();\n")
		b.WriteString("    }\n\n")
		b.WriteString("    if (l_idx == 0u) {\n")
		b.WriteString("        out_col[group_id.x] = scratch[0];\n")
		b.WriteString("    }\n")
	} else {
		b.WriteString("    if (idx < params.row_count) {\n")
		b.WriteString("        out_col[idx] = val;\n")
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")

	return b.String(), nil
}

// translate emits a parenthesized infix WGSL expression for e. aggregate
// controls whether an integer column reference is widened to f32 so the
// reduction runs in float.
func translate(e *ir.Expression, bindingMap map[uint32]uint32, colTypes map[uint32]plan.ScalarType, aggregate bool) (string, error) {
	if e == nil {
		return "", errors.New("gen: nil expression")
	}

	switch e.Kind {
	case ir.KindLiteral:
		return translateLiteral(e), nil

	case ir.KindColumn:
		slot, ok := bindingMap[e.Column]
		if !ok {
			return "", errors.Errorf("gen: column %d has no binding", e.Column)
		}
		ref := fmt.Sprintf("in_col_%d[idx]", slot)
		if aggregate && colTypes[e.Column] == plan.ScalarInt32 {
			return fmt.Sprintf("f32(%s)", ref), nil
		}
		return ref, nil

	default:
		op, ok := binaryOps[e.Kind]
		if !ok {
			return "", errors.Errorf("gen: unsupported expression kind %v", e.Kind)
		}
		left, err := translate(e.Left, bindingMap, colTypes, aggregate)
		if err != nil {
			return "", err
		}
		right, err := translate(e.Right, bindingMap, colTypes, aggregate)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), nil
	}
}

func translateLiteral(e *ir.Expression) string {
	switch e.LiteralKind {
	case ir.LiteralI32, ir.LiteralDate:
		return fmt.Sprintf("%di", e.I32)
	case ir.LiteralF32:
		return formatFloatLiteral(e.F32)
	default:
		// Unreachable for a correctly constructed tree: NewLiteral* only
		// ever sets one of the three LiteralKind values above.
		return "0i"
	}
}

// formatFloatLiteral renders v as its shortest decimal representation plus
// the WGSL float suffix, so 5.0 becomes "5f" rather than "5.000000f".
func formatFloatLiteral(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32) + "f"
}

func sortedSlots(bindingMap map[uint32]uint32) []uint32 {
	slots := make([]uint32, 0, len(bindingMap))
	for _, slot := range bindingMap {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

func columnForSlot(bindingMap map[uint32]uint32, slot uint32) uint32 {
	for col, s := range bindingMap {
		if s == slot {
			return col
		}
	}
	return 0
}
