package coeff

import "errors"

var (
	// ErrDataFile indicates that the coefficient document could not be read.
	ErrDataFile = errors.New("coeff: data file")

	// ErrParse indicates malformed content or an unresolvable $ref.
	ErrParse = errors.New("coeff: parse")

	// ErrSchema indicates that the document decoded but does not have the
	// expected structure.
	ErrSchema = errors.New("coeff: schema")

	// ErrCategoryNotFound is returned when a lookup names a category the
	// document does not declare at all.
	ErrCategoryNotFound = errors.New("coeff: category not found")

	// ErrCoefficientNotFound is returned when the category exists but the
	// named scalar coefficient is not declared in it.
	ErrCoefficientNotFound = errors.New("coeff: coefficient not found")

	// ErrScenarioNotFound is returned when a static category lacks the
	// requested scenario.
	ErrScenarioNotFound = errors.New("coeff: scenario not found")
)
