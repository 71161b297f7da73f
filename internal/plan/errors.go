package plan

import "github.com/pkg/errors"

// Error taxonomy for plan lowering. All are surfaced to the caller verbatim
// (wrapped with call-site context via errors.Wrap); none are retried.
var (
	// ErrUnsupportedExpression is returned when an expression variant or
	// scalar function name falls outside the accepted set
	// (add, sub, mul, gt, lt, eq, and, or).
	ErrUnsupportedExpression = errors.New("plan: unsupported expression")

	// ErrUnsupportedRelation is returned for any relation other than
	// Read, Filter, Aggregate, or Project.
	ErrUnsupportedRelation = errors.New("plan: unsupported relation")

	// ErrUnsupportedColumnType is returned when a referenced column's
	// Arrow type is not int32, float32, or decimal128 (coerced to float32).
	ErrUnsupportedColumnType = errors.New("plan: unsupported column type")

	// ErrNoProjection is returned when lowering reaches the end of the
	// relation chain without ever setting a projection.
	ErrNoProjection = errors.New("plan: no projection")

	// ErrMalformedPlan is returned when a required sub-field is missing,
	// e.g. a literal with no value set, or an aggregate with no measures.
	ErrMalformedPlan = errors.New("plan: malformed plan")
)
