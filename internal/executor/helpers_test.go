package executor

import (
	substraitpb "github.com/substrait-io/substrait-go/proto"
)

// --- Substrait plan-tree builders, mirroring internal/plan's test helpers. ---

func litI32(v int32) *substraitpb.Expression {
	return &substraitpb.Expression{
		RexType: &substraitpb.Expression_Literal_{
			Literal: &substraitpb.Expression_Literal{
				LiteralType: &substraitpb.Expression_Literal_I32{I32: v},
			},
		},
	}
}

func column(field int32) *substraitpb.Expression {
	return &substraitpb.Expression{
		RexType: &substraitpb.Expression_Selection{
			Selection: &substraitpb.Expression_FieldReference{
				ReferenceType: &substraitpb.Expression_FieldReference_DirectReference{
					DirectReference: &substraitpb.Expression_ReferenceSegment{
						ReferenceType: &substraitpb.Expression_ReferenceSegment_StructField_{
							StructField: &substraitpb.Expression_ReferenceSegment_StructField{
								Field: field,
							},
						},
					},
				},
			},
		},
	}
}

func scalarFunc(anchor uint32, args ...*substraitpb.Expression) *substraitpb.Expression {
	fnArgs := make([]*substraitpb.FunctionArgument, len(args))
	for i, a := range args {
		fnArgs[i] = &substraitpb.FunctionArgument{
			ArgType: &substraitpb.FunctionArgument_Value{Value: a},
		}
	}
	return &substraitpb.Expression{
		RexType: &substraitpb.Expression_ScalarFunction_{
			ScalarFunction: &substraitpb.Expression_ScalarFunction{
				FunctionReference: anchor,
				Arguments:         fnArgs,
			},
		},
	}
}

func readRel() *substraitpb.Rel {
	return &substraitpb.Rel{RelType: &substraitpb.Rel_Read{Read: &substraitpb.ReadRel{}}}
}

func filterRel(cond *substraitpb.Expression, input *substraitpb.Rel) *substraitpb.Rel {
	return &substraitpb.Rel{RelType: &substraitpb.Rel_Filter{Filter: &substraitpb.FilterRel{
		Input:     input,
		Condition: cond,
	}}}
}

func projectRel(exprs []*substraitpb.Expression, input *substraitpb.Rel) *substraitpb.Rel {
	return &substraitpb.Rel{RelType: &substraitpb.Rel_Project{Project: &substraitpb.ProjectRel{
		Input:       input,
		Expressions: exprs,
	}}}
}

func aggregateRel(measureArg *substraitpb.Expression, input *substraitpb.Rel) *substraitpb.Rel {
	return &substraitpb.Rel{RelType: &substraitpb.Rel_Aggregate{Aggregate: &substraitpb.AggregateRel{
		Input: input,
		Measures: []*substraitpb.AggregateRel_Measure{
			{
				Measure: &substraitpb.AggregateFunction{
					Arguments: []*substraitpb.FunctionArgument{
						{ArgType: &substraitpb.FunctionArgument_Value{Value: measureArg}},
					},
				},
			},
		},
	}}}
}

func planWithRoot(root *substraitpb.Rel, functions map[uint32]string) *substraitpb.Plan {
	extensions := make([]*substraitpb.SimpleExtensionDeclaration, 0, len(functions))
	for anchor, name := range functions {
		extensions = append(extensions, &substraitpb.SimpleExtensionDeclaration{
			MappingType: &substraitpb.SimpleExtensionDeclaration_ExtensionFunction_{
				ExtensionFunction: &substraitpb.SimpleExtensionDeclaration_ExtensionFunction{
					FunctionAnchor: anchor,
					Name:           name,
				},
			},
		})
	}
	return &substraitpb.Plan{
		Extensions: extensions,
		Relations: []*substraitpb.PlanRel{
			{RelType: &substraitpb.PlanRel_Root{Root: &substraitpb.RelRoot{Input: root}}},
		},
	}
}
