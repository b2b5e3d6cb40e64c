package domain

import "errors"

// Codec errors. A decode failure on a client query is always answered with FORMERR.
var (
	ErrTruncatedHeader         = errors.New("message shorter than header")
	ErrTruncatedQuestion       = errors.New("question section truncated")
	ErrUnsupportedNameEncoding = errors.New("compressed or extended label in question name")
	ErrNameTooLong             = errors.New("question name exceeds maximum length")
)

// Header and question sanity failures. These classify a client query as FORMERR.
var (
	ErrNotAQuery         = errors.New("QR bit set on a query")
	ErrReservedBitSet    = errors.New("reserved Z bit set")
	ErrCheckingDisabled  = errors.New("CD bit set")
	ErrNoQuestion        = errors.New("question count is zero")
	ErrUnexpectedAnswers = errors.New("query carries answer records")
	ErrZeroTypeOrClass   = errors.New("question type or class is zero")
)
