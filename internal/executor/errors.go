package executor

import "github.com/pkg/errors"

// ErrGpuDispatchFailure wraps any failure surfaced by a Dispatcher while
// running one batch: buffer creation, pipeline build, submission, or
// readback.
var ErrGpuDispatchFailure = errors.New("executor: gpu dispatch failed")

// ErrAccumulationKindMismatch is returned by Accumulate when a batch result
// disagrees with the running QueryResult about whether the query is an
// aggregate.
var ErrAccumulationKindMismatch = errors.New("executor: batch result kind does not match query result kind")

// ErrNoDataProcessed is returned by Run when the reader yielded no batches
// at all. A query across zero batches has no meaningful projection or
// aggregate, so this is treated as a failure rather than an empty success.
var ErrNoDataProcessed = errors.New("executor: no data processed")

// ErrUnsupportedColumnArray is returned when a bound column's Arrow array
// type does not match the scalar type installed on the plan.
var ErrUnsupportedColumnArray = errors.New("executor: column array type does not match installed scalar type")
