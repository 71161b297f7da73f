package plan

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	substraitpb "github.com/substrait-io/substrait-go/proto"

	"github.com/csotherden/wsql/internal/ir"
)

// scalarFuncs maps a resolved Substrait scalar function name to the IR
// binary-node constructor it lowers to. Every entry takes exactly two
// arguments; any other arity is a malformed plan.
var scalarFuncs = map[string]func(l, r *ir.Expression) *ir.Expression{
	"add": ir.NewAdd,
	"sub": ir.NewSubtract,
	"mul": ir.NewMultiply,
	"gt":  ir.NewGreaterThan,
	"lt":  ir.NewLessThan,
	"eq":  ir.NewEqual,
	"and": ir.NewAnd,
	"or":  ir.NewOr,
}

// Lower walks a decoded Substrait plan's single root-to-scan relation chain
// and folds it into a PhysicalPlan. ColumnTypes is left empty; call
// InstallColumnTypes once the input stream's schema is known.
//
// Supported relation chain: any order of Read, Filter, Aggregate, Project
// that terminates at a Read, with at most one Filter and at most one
// Aggregate. Multiple aggregates, or aggregate functions other than SUM,
// are not validated; the first measure's argument is taken as the sum
// target regardless of the function name the plan attaches to it.
func Lower(rawPlan *substraitpb.Plan) (*PhysicalPlan, error) {
	funcs := extensionFunctions(rawPlan)

	root, err := rootRelation(rawPlan)
	if err != nil {
		return nil, err
	}

	st := &foldState{}
	if err := foldRelation(root, funcs, st); err != nil {
		return nil, err
	}
	if st.projection == nil {
		return nil, ErrNoProjection
	}

	return &PhysicalPlan{
		Projection:  st.projection,
		Filter:      st.filter,
		IsAggregate: st.isAggregate,
		ColumnTypes: make(map[uint32]ScalarType),
	}, nil
}

// foldState accumulates the fused pipeline while walking down the relation
// chain from the root.
type foldState struct {
	projection  *ir.Expression
	filter      *ir.Expression
	isAggregate bool
}

// extensionFunctions builds the function_anchor -> name registry from the
// plan's extension declarations.
func extensionFunctions(p *substraitpb.Plan) map[uint32]string {
	funcs := make(map[uint32]string)
	for _, ext := range p.GetExtensions() {
		fn := ext.GetExtensionFunction()
		if fn == nil {
			continue
		}
		funcs[fn.GetFunctionAnchor()] = fn.GetName()
	}
	return funcs
}

// rootRelation returns the root relation of the first PlanRel that carries
// one, whether it is expressed as a RelRoot (with a Names list) or a bare
// Rel.
func rootRelation(p *substraitpb.Plan) (*substraitpb.Rel, error) {
	for _, pr := range p.GetRelations() {
		if root := pr.GetRoot(); root != nil && root.GetInput() != nil {
			return root.GetInput(), nil
		}
		if rel := pr.GetRel(); rel != nil {
			return rel, nil
		}
	}
	return nil, errors.Wrap(ErrMalformedPlan, "plan has no relations")
}

// foldRelation applies one relation's contribution to st, then recurses
// into its single input (Read has none and terminates the walk).
func foldRelation(rel *substraitpb.Rel, funcs map[uint32]string, st *foldState) error {
	if rel == nil {
		return errors.Wrap(ErrMalformedPlan, "nil relation in chain")
	}

	switch {
	case rel.GetRead() != nil:
		return nil

	case rel.GetFilter() != nil:
		f := rel.GetFilter()
		if st.filter != nil {
			return errors.Wrap(ErrMalformedPlan, "plan has more than one filter")
		}
		cond, err := lowerExpression(f.GetCondition(), funcs)
		if err != nil {
			return errors.Wrap(err, "lowering filter condition")
		}
		st.filter = cond
		return foldRelation(f.GetInput(), funcs, st)

	case rel.GetAggregate() != nil:
		agg := rel.GetAggregate()
		st.isAggregate = true

		measures := agg.GetMeasures()
		if len(measures) == 0 {
			return errors.Wrap(ErrMalformedPlan, "aggregate relation has no measures")
		}
		// Only the first measure is supported; the aggregate function is
		// assumed to be SUM without validating it.
		fn := measures[0].GetMeasure()
		if fn == nil || len(fn.GetArguments()) == 0 {
			return errors.Wrap(ErrMalformedPlan, "aggregate measure has no arguments")
		}
		argExpr := fn.GetArguments()[0].GetValue()
		if argExpr == nil {
			return errors.Wrap(ErrMalformedPlan, "aggregate measure argument is not a value expression")
		}
		proj, err := lowerExpression(argExpr, funcs)
		if err != nil {
			return errors.Wrap(err, "lowering aggregate measure")
		}
		st.projection = proj
		return foldRelation(agg.GetInput(), funcs, st)

	case rel.GetProject() != nil:
		p := rel.GetProject()
		exprs := p.GetExpressions()

		switch {
		case st.projection == nil:
			if len(exprs) == 0 {
				return errors.Wrap(ErrMalformedPlan, "project relation has no expressions")
			}
			lowered, err := lowerExpression(exprs[0], funcs)
			if err != nil {
				return errors.Wrap(err, "lowering project expression")
			}
			st.projection = lowered

		default:
			if idx, ok := st.projection.IsColumn(); ok {
				if int(idx) >= len(exprs) {
					return errors.Wrapf(ErrMalformedPlan, "project relation has no expression at index %d", idx)
				}
				lowered, err := lowerExpression(exprs[idx], funcs)
				if err != nil {
					return errors.Wrap(err, "lowering substituted project expression")
				}
				st.projection = lowered
			} else {
				logrus.WithField("component", "plan").Debug("project relation left unfused: running projection is not a bare column")
			}
		}
		return foldRelation(p.GetInput(), funcs, st)

	default:
		return errors.Wrap(ErrUnsupportedRelation, "relation outside {Read, Filter, Aggregate, Project}")
	}
}

// lowerExpression translates one Substrait scalar expression into the IR.
func lowerExpression(expr *substraitpb.Expression, funcs map[uint32]string) (*ir.Expression, error) {
	if expr == nil {
		return nil, errors.Wrap(ErrMalformedPlan, "nil expression")
	}

	switch {
	case expr.GetLiteral() != nil:
		return lowerLiteral(expr.GetLiteral())
	case expr.GetSelection() != nil:
		return lowerSelection(expr.GetSelection())
	case expr.GetScalarFunction() != nil:
		return lowerScalarFunction(expr.GetScalarFunction(), funcs)
	default:
		return nil, errors.Wrap(ErrUnsupportedExpression, "expression variant not recognized")
	}
}

func lowerLiteral(lit *substraitpb.Expression_Literal) (*ir.Expression, error) {
	switch v := lit.GetLiteralType().(type) {
	case *substraitpb.Expression_Literal_I32:
		return ir.NewLiteralI32(v.I32), nil
	case *substraitpb.Expression_Literal_Fp32:
		return ir.NewLiteralF32(v.Fp32), nil
	case *substraitpb.Expression_Literal_Date:
		return ir.NewLiteralDate(v.Date), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedExpression, "unsupported literal type %T", v)
	}
}

func lowerSelection(sel *substraitpb.Expression_FieldReference) (*ir.Expression, error) {
	direct, ok := sel.GetReferenceType().(*substraitpb.Expression_FieldReference_DirectReference)
	if !ok || direct.DirectReference == nil {
		return nil, errors.Wrap(ErrUnsupportedExpression, "selection must be a direct reference")
	}
	structField, ok := direct.DirectReference.GetReferenceType().(*substraitpb.Expression_ReferenceSegment_StructField_)
	if !ok || structField.StructField == nil {
		return nil, errors.Wrap(ErrUnsupportedExpression, "direct reference must be a struct field")
	}
	return ir.NewColumn(uint32(structField.StructField.Field)), nil
}

func lowerScalarFunction(fn *substraitpb.Expression_ScalarFunction, funcs map[uint32]string) (*ir.Expression, error) {
	name, ok := funcs[fn.GetFunctionReference()]
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPlan, "unknown function anchor %d", fn.GetFunctionReference())
	}
	ctor, ok := scalarFuncs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedExpression, "unsupported function %q", name)
	}

	args := fn.GetArguments()
	if len(args) != 2 {
		return nil, errors.Wrapf(ErrMalformedPlan, "function %q expects 2 arguments, got %d", name, len(args))
	}
	left, err := lowerExpression(args[0].GetValue(), funcs)
	if err != nil {
		return nil, err
	}
	right, err := lowerExpression(args[1].GetValue(), funcs)
	if err != nil {
		return nil, err
	}
	return ctor(left, right), nil
}
