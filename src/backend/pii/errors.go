package pii

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the orchestration boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindFileRead
	KindEngineInit
	KindEngineNotReady
	KindDetection
	KindAnonymization
	KindUnsupportedFormat
	KindRedaction
)

func (k Kind) String() string {
	switch k {
	case KindFileRead:
		return "file_read_error"
	case KindEngineInit:
		return "engine_init_error"
	case KindEngineNotReady:
		return "engine_not_ready"
	case KindDetection:
		return "detection_error"
	case KindAnonymization:
		return "anonymization_error"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindRedaction:
		return "redaction_error"
	default:
		return "unknown_error"
	}
}

// Sentinel values for errors.Is. Only the Kind is compared.
var (
	ErrFileRead          = &Error{Kind: KindFileRead}
	ErrEngineInit        = &Error{Kind: KindEngineInit}
	ErrEngineNotReady    = &Error{Kind: KindEngineNotReady}
	ErrDetection         = &Error{Kind: KindDetection}
	ErrAnonymization     = &Error{Kind: KindAnonymization}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrRedaction         = &Error{Kind: KindRedaction}
)

// Error is the typed error returned by every stage of the pipeline.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "read_csv"
	Path string // file involved, if any
	Err  error
}

// NewError wraps err with a kind and operation name.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewPathError wraps err with a kind, operation name and file path.
func NewPathError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, pii.ErrDetection).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
