package forms

import "errors"

// Sentinel errors returned by the builder and reader. Callers match them with
// errors.Is; the wrapped message carries the offending name.
var (
	ErrTableExists      = errors.New("table definition already exists")
	ErrTableNotFound    = errors.New("table definition not found")
	ErrViewExists       = errors.New("table view already exists")
	ErrViewNotFound     = errors.New("table view not found")
	ErrReservedName     = errors.New("attribute name is reserved")
	ErrDuplicateName    = errors.New("attribute name already in use")
	ErrUnknownType      = errors.New("unknown attribute type")
	ErrMissingChoices   = errors.New("choice attribute requires choices")
	ErrMissingSubForm   = errors.New("form attribute requires a nested form")
	ErrDuplicateChoice  = errors.New("duplicate choice id in set")
	ErrUndefinedChoices = errors.New("undefined choices set")
)
