package executor

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/sirupsen/logrus"
	substraitpb "github.com/substrait-io/substrait-go/proto"

	"github.com/csotherden/wsql/internal/plan"
)

// CompiledQuery is a physical plan bound to a concrete input schema: its
// columns are assigned binding slots, and their Arrow types are resolved to
// the scalar types the shader generator understands.
type CompiledQuery struct {
	Plan       *plan.PhysicalPlan
	BindingMap map[uint32]uint32 // column index -> binding slot, dense from 0
	dispatcher Dispatcher
}

// Compile lowers rawPlan, resolves its referenced columns against schema,
// and assigns each a binding slot in ascending column-index order. d is the
// Dispatcher every subsequent Execute call on the returned query will use.
func Compile(rawPlan *substraitpb.Plan, schema *arrow.Schema, d Dispatcher) (*CompiledQuery, error) {
	p, err := plan.Lower(rawPlan)
	if err != nil {
		return nil, err
	}
	if err := plan.InstallColumnTypes(p, schema); err != nil {
		return nil, err
	}

	used := p.UsedColumns()
	bindingMap := make(map[uint32]uint32, len(used))
	for slot, col := range used {
		bindingMap[col] = uint32(slot)
	}

	logrus.WithFields(logrus.Fields{
		"component":    "executor",
		"is_aggregate": p.IsAggregate,
		"has_filter":   p.Filter != nil,
		"columns_used": len(used),
	}).Debug("query_compiled")

	return &CompiledQuery{Plan: p, BindingMap: bindingMap, dispatcher: d}, nil
}
