package pipeline

import "errors"

// Strategy outcomes that are part of normal control flow. A template miss is
// expected and silent; a validation failure on one strategy just hands the
// document to the next one. Only the exhaustion of all strategies surfaces
// as a pipeline failure.
var (
	// ErrNoMatch means no loaded template applied to the document
	ErrNoMatch = errors.New("no template matched")

	// ErrValidationFailed means extracted data missed the minimum-field
	// check: non-empty vendor and a strictly positive total.
	ErrValidationFailed = errors.New("extracted data failed validation")
)
