package catalog

import "errors"

var (
	// ErrEmptyInput means no raw input resolved to a usable date.
	ErrEmptyInput = errors.New("no acquisitions found")
	// ErrInsufficientInput means only one distinct date resolved; pairs need two.
	ErrInsufficientInput = errors.New("at least two acquisition dates are required")
	// ErrInvalidSource means a raw input name carries no parseable sensing time.
	ErrInvalidSource = errors.New("invalid source name")
	// ErrReferenceNotFound means the operator reference date is not in the catalog.
	ErrReferenceNotFound = errors.New("reference date not in catalog")
)
