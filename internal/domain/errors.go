package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConfig is a bad filter, range, or run setting. Fatal, raised before
	// any row is processed.
	KindConfig
	// KindRead is an input decode failure. Fatal.
	KindRead
	// KindEncoding is a value the target format cannot represent. Recoverable
	// per field; fatal only when no structurally valid file can be produced.
	KindEncoding
	// KindIO is an unwritable destination. Fatal.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindRead:
		return "read"
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the single error type shared by every stage.
type Error struct {
	Kind Kind
	Op   string // stage or operation, e.g. "filter", "write csv"
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfig   = &Error{Kind: KindConfig}
	ErrRead     = &Error{Kind: KindRead}
	ErrEncoding = &Error{Kind: KindEncoding}
	ErrIO       = &Error{Kind: KindIO}
)

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// ConfigError wraps err as a KindConfig failure of op.
func ConfigError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// ReadError wraps err as a KindRead failure of op.
func ReadError(op string, err error) error {
	return &Error{Kind: KindRead, Op: op, Err: err}
}

// EncodingError wraps err as a KindEncoding failure of op.
func EncodingError(op string, err error) error {
	return &Error{Kind: KindEncoding, Op: op, Err: err}
}

// IOError wraps err as a KindIO failure of op.
func IOError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
