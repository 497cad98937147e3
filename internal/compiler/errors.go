package compiler

import "errors"

// Domain-specific errors for the compiler pipeline.
//
// Every error produced while compiling one descriptor excludes that entry
// only; none of them abort the whole catalog.
var (
	// ErrInvalidCondition is returned when a mode condition cannot be compiled.
	ErrInvalidCondition = errors.New("compiler: invalid condition")

	// ErrUnsupportedOperator is returned when a condition uses an operator
	// other than equality, membership, bitwise and, or a union of those.
	ErrUnsupportedOperator = errors.New("compiler: unsupported operator")

	// ErrMultipleFields is returned when a condition references more than one IO field.
	ErrMultipleFields = errors.New("compiler: condition references more than one field")

	// ErrInvalidShape is returned when a platform or IO value has an unrecognised shape.
	ErrInvalidShape = errors.New("compiler: invalid shape")

	// ErrMaskExpansion is returned when expanding a masked condition would
	// produce more values than allowed.
	ErrMaskExpansion = errors.New("compiler: mask expansion too large")
)
