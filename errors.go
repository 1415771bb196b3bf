package xsdnorm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Band groups the errors this package can return into the four bands
// described by the ingestion contract: input-level, wiring-level,
// validation-level and coercion-level failures.
type Band int

const (
	// BandInput covers malformed schema or document bytes.
	BandInput Band = iota
	// BandWiring covers missing or conflicting schema acquisition.
	BandWiring
	// BandValidation covers documents that violate a committed schema.
	BandValidation
	// BandCoercion covers leaf values that fail their declared type parser.
	BandCoercion
)

func (b Band) String() string {
	switch b {
	case BandInput:
		return "input"
	case BandWiring:
		return "wiring"
	case BandValidation:
		return "validation"
	case BandCoercion:
		return "coercion"
	default:
		return "unknown"
	}
}

// Code enumerates the concrete error kinds surfaced to callers (§7).
type Code string

const (
	CodeInvalidSchema            Code = "InvalidSchema"
	CodeNamespaceConflict        Code = "NamespaceConflict"
	CodeUnsupportedSchema        Code = "UnsupportedSchema"
	CodeMissingSchema            Code = "MissingSchema"
	CodeMismatchedSchemaLocation Code = "MismatchedSchemaLocation"
	CodeHttpError                Code = "HttpError"
	CodeUnknownNamespace         Code = "UnknownNamespace"
	CodeUnknownElement           Code = "UnknownElement"
	CodeUnknownType              Code = "UnknownType"
	CodeUnexpectedAttribute      Code = "UnexpectedAttribute"
	CodeUnknownAttribute         Code = "UnknownAttribute"
	CodeUnexpectedChildren       Code = "UnexpectedChildren"
	CodeSchemaMismatch           Code = "SchemaMismatch"
	CodeCoercionError            Code = "CoercionError"
)

var codeBand = map[Code]Band{
	CodeInvalidSchema:            BandInput,
	CodeUnsupportedSchema:        BandInput,
	CodeMissingSchema:            BandWiring,
	CodeMismatchedSchemaLocation: BandWiring,
	CodeNamespaceConflict:        BandWiring,
	CodeHttpError:                BandWiring,
	CodeUnknownElement:           BandValidation,
	CodeUnknownAttribute:         BandValidation,
	CodeUnknownType:              BandValidation,
	CodeUnexpectedAttribute:      BandValidation,
	CodeUnexpectedChildren:       BandValidation,
	CodeSchemaMismatch:           BandValidation,
	CodeUnknownNamespace:         BandValidation,
	CodeCoercionError:            BandCoercion,
}

// SchemaError reports a failure at the input or wiring band: a malformed
// schema document, a namespace conflict, or an acquisition problem.
type SchemaError struct {
	Code    Code
	Message string
	// Residual, when set, is the offending node left over after
	// destructive compilation (§9 design notes).
	Residual string
	cause    error
}

func (e *SchemaError) Error() string {
	if e.Residual != "" {
		return fmt.Sprintf("%s: %s (residual: %s)", e.Code, e.Message, e.Residual)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SchemaError) Unwrap() error { return e.cause }

// Band reports which of the four error bands this error belongs to.
func (e *SchemaError) Band() Band { return codeBand[e.Code] }

func newSchemaError(code Code, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapSchemaError(code Code, cause error, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Code: code, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// ValidationError reports one validation-band failure found while
// normalizing a document. Validation is all-or-nothing per document
// (§7): the walk stops at the first error of any band and returns it
// alone; no failures are collected or aggregated, and coercion
// failures are reported as *CoercionError instead.
type ValidationError struct {
	Path   string // namespaced XPath of the offending node
	Code   Code
	Detail string
	// Allowed lists allowed alternatives, when the error concerns a
	// closed set (e.g. the children or attributes a type permits).
	Allowed []string
	cause   error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s: %s", e.Code, e.Path, e.Detail)
	if len(e.Allowed) > 0 {
		fmt.Fprintf(&b, " (allowed: %s)", strings.Join(e.Allowed, ", "))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.cause }

func (e *ValidationError) Band() Band { return codeBand[e.Code] }

func newValidationError(path string, code Code, detail string, allowed ...string) *ValidationError {
	return &ValidationError{Path: path, Code: code, Detail: detail, Allowed: allowed}
}

// WithPath sets the namespaced XPath if it has not already been set,
// so an error raised deep in the resolution helpers (§4.H) can be
// annotated with location once it bubbles up to the validator.
func (e *ValidationError) WithPath(path string) *ValidationError {
	if e.Path == "" {
		e.Path = path
	}
	return e
}

// CoercionError reports that a leaf value could not be parsed to its
// declared built-in type. Under a union type only the final,
// all-branches-failed error is surfaced (§7 band 4).
type CoercionError struct {
	Path     string
	TypeName string
	Value    string
	cause    error
}

func (e *CoercionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("cannot coerce %q to %s at %s: %v", e.Value, e.TypeName, e.Path, e.cause)
	}
	return fmt.Sprintf("cannot coerce %q to %s at %s", e.Value, e.TypeName, e.Path)
}

// WithPath sets the namespaced XPath if it has not already been set.
func (e *CoercionError) WithPath(path string) *CoercionError {
	if e.Path == "" {
		e.Path = path
	}
	return e
}

func (e *CoercionError) Unwrap() error { return e.cause }

func newCoercionError(typeName, value string, cause error) *CoercionError {
	return &CoercionError{TypeName: typeName, Value: value, cause: cause}
}

// HttpError wraps a non-2xx or transport failure encountered while
// fetching a remote schema, carrying the (uri, url) pair for context.
type HttpError struct {
	Namespace string
	URL       string
	Status    int
	cause     error
}

func (e *HttpError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s (namespace %s): HTTP %d", e.URL, e.Namespace, e.Status)
	}
	return fmt.Sprintf("fetch %s (namespace %s): %v", e.URL, e.Namespace, e.cause)
}

func (e *HttpError) Unwrap() error { return e.cause }

func newHttpError(namespace, url string, status int, cause error) *HttpError {
	return &HttpError{Namespace: namespace, URL: url, Status: status, cause: cause}
}

// attachPath annotates a *ValidationError or *CoercionError with a
// namespaced XPath if it does not already carry one; other error
// types pass through unchanged.
func attachPath(err error, path string) error {
	switch e := err.(type) {
	case *ValidationError:
		return e.WithPath(path)
	case *CoercionError:
		return e.WithPath(path)
	default:
		return err
	}
}
