// Package ir defines the scalar expression tree used between plan lowering
// and WGSL shader generation.
//
// An Expression is a strictly owning, finite, acyclic tree: every node other
// than a leaf (Literal, Column) owns exactly two children. There is no
// subexpression sharing, so the tree can be freed by ordinary garbage
// collection with no reference counting or arena bookkeeping.
package ir

import "fmt"

// Kind identifies which variant of Expression a node holds.
type Kind int

const (
	KindLiteral Kind = iota
	KindColumn
	KindAdd
	KindSubtract
	KindMultiply
	KindGreaterThan
	KindLessThan
	KindEqual
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "Literal"
	case KindColumn:
		return "Column"
	case KindAdd:
		return "Add"
	case KindSubtract:
		return "Subtract"
	case KindMultiply:
		return "Multiply"
	case KindGreaterThan:
		return "GreaterThan"
	case KindLessThan:
		return "LessThan"
	case KindEqual:
		return "Equal"
	case KindAnd:
		return "And"
	case KindOr:
		return "Or"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// LiteralKind identifies the scalar type a Literal node carries.
type LiteralKind int

const (
	// LiteralI32 is a signed 32-bit integer literal.
	LiteralI32 LiteralKind = iota
	// LiteralF32 is a 32-bit float literal.
	LiteralF32
	// LiteralDate is a date encoded as a signed 32-bit day offset. It is
	// represented identically to LiteralI32 on the GPU; the distinction
	// only matters to whichever collaborator produced the plan.
	LiteralDate
)

// Expression is a node in the scalar expression tree. The zero value is not
// meaningful; construct nodes with the New* functions below.
type Expression struct {
	Kind Kind

	// Set when Kind == KindLiteral.
	LiteralKind LiteralKind
	I32         int32
	F32         float32

	// Set when Kind == KindColumn: the index into the input batch schema.
	Column uint32

	// Set for all binary Kinds (everything except Literal and Column).
	Left, Right *Expression
}

// NewLiteralI32 builds a signed 32-bit integer literal node.
func NewLiteralI32(v int32) *Expression {
	return &Expression{Kind: KindLiteral, LiteralKind: LiteralI32, I32: v}
}

// NewLiteralF32 builds a 32-bit float literal node.
func NewLiteralF32(v float32) *Expression {
	return &Expression{Kind: KindLiteral, LiteralKind: LiteralF32, F32: v}
}

// NewLiteralDate builds a date literal node from a day-offset encoding.
func NewLiteralDate(days int32) *Expression {
	return &Expression{Kind: KindLiteral, LiteralKind: LiteralDate, I32: days}
}

// NewColumn builds a reference to column index i of the input batch.
func NewColumn(i uint32) *Expression {
	return &Expression{Kind: KindColumn, Column: i}
}

func newBinary(kind Kind, left, right *Expression) *Expression {
	return &Expression{Kind: kind, Left: left, Right: right}
}

func NewAdd(l, r *Expression) *Expression         { return newBinary(KindAdd, l, r) }
func NewSubtract(l, r *Expression) *Expression    { return newBinary(KindSubtract, l, r) }
func NewMultiply(l, r *Expression) *Expression    { return newBinary(KindMultiply, l, r) }
func NewGreaterThan(l, r *Expression) *Expression { return newBinary(KindGreaterThan, l, r) }
func NewLessThan(l, r *Expression) *Expression    { return newBinary(KindLessThan, l, r) }
func NewEqual(l, r *Expression) *Expression       { return newBinary(KindEqual, l, r) }
func NewAnd(l, r *Expression) *Expression         { return newBinary(KindAnd, l, r) }
func NewOr(l, r *Expression) *Expression          { return newBinary(KindOr, l, r) }

// IsColumn reports whether expr is a bare Column reference, and if so
// returns its index. Used by the Project-relation fusion rule in
// internal/plan, which only substitutes a running projection when it is
// exactly a bare column (not a column buried inside a larger expression).
func (e *Expression) IsColumn() (idx uint32, ok bool) {
	if e == nil || e.Kind != KindColumn {
		return 0, false
	}
	return e.Column, true
}

// CollectColumns returns the set of column indices referenced anywhere in
// expr. A nil expr (e.g. an absent filter) contributes no columns. The
// traversal order is unspecified; callers that need a stable order should
// sort the returned keys.
func CollectColumns(expr *Expression) map[uint32]struct{} {
	cols := make(map[uint32]struct{})
	collectColumns(expr, cols)
	return cols
}

func collectColumns(expr *Expression, cols map[uint32]struct{}) {
	if expr == nil {
		return
	}
	switch expr.Kind {
	case KindColumn:
		cols[expr.Column] = struct{}{}
	case KindLiteral:
		// no columns referenced
	default:
		collectColumns(expr.Left, cols)
		collectColumns(expr.Right, cols)
	}
}
