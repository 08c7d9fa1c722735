package wasmvalid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the categories of validation failure a Validator can
// report, following the taxonomy a WebAssembly validator's error surface
// conventionally falls into: each is distinguishable without string
// matching, so a caller can branch on the kind of problem it hit rather
// than parsing the message.
type Kind int

const (
	// Malformed means the binary's encoding itself was ill-formed: a bad
	// LEB128, a truncated section, an unrecognized opcode.
	Malformed Kind = iota
	// OutOfBounds means an index referenced an entry past the end of its
	// index space.
	OutOfBounds
	// TypeMismatch means an operand, initializer, or declared type did not
	// match what the context required.
	TypeMismatch
	// LimitExceeded means a count or size ceiling (types, functions,
	// imports, type_size, and so on) was exceeded.
	LimitExceeded
	// FeatureDisabled means a construct required a proposal the configured
	// feature set does not enable.
	FeatureDisabled
	// MisplacedSection means sections appeared out of the order the binary
	// format requires, or a section repeated where at most one is allowed.
	MisplacedSection
	// DuplicateExport means two exports declared the same name.
	DuplicateExport
	// InvalidLimits means a table or memory's (min, max) pair was internally
	// inconsistent or exceeded its addressable ceiling.
	InvalidLimits
	// NonConstantOperator means a constant expression used an opcode outside
	// the closed set admissible in that context.
	NonConstantOperator
	// SharedMismatch means a shared and non-shared construct were mixed
	// where the shared-everything-threads proposal requires them to agree.
	SharedMismatch
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case OutOfBounds:
		return "out of bounds"
	case TypeMismatch:
		return "type mismatch"
	case LimitExceeded:
		return "limit exceeded"
	case FeatureDisabled:
		return "feature disabled"
	case MisplacedSection:
		return "misplaced section"
	case DuplicateExport:
		return "duplicate export"
	case InvalidLimits:
		return "invalid limits"
	case NonConstantOperator:
		return "non-constant operator"
	case SharedMismatch:
		return "shared mismatch"
	default:
		return "unknown"
	}
}

// ValidationError is the error type returned by Validator.Validate. Offset
// is the byte position within the module's binary where the problem was
// detected, used by callers that want to point a user at the exact spot in
// a hex dump or re-disassembly.
type ValidationError struct {
	Kind    Kind
	Offset  int
	Message string

	// FunctionIndex is set when the error originated from validating a
	// function body, so that parallel validation can report deterministic,
	// function-index-ordered errors regardless of which worker finished
	// first.
	FunctionIndex int
	hasFunctionIndex bool
}

func (e *ValidationError) Error() string {
	if e.hasFunctionIndex {
		return fmt.Sprintf("%s at offset %d (function %d): %s", e.Kind, e.Offset, e.FunctionIndex, e.Message)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Message)
}

// newError builds a ValidationError from a module-level offset.
func newError(kind Kind, offset int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// withFunctionIndex returns a copy of e annotated with the function it was
// found in.
func (e *ValidationError) withFunctionIndex(idx int) *ValidationError {
	cp := *e
	cp.FunctionIndex = idx
	cp.hasFunctionIndex = true
	return &cp
}

// offsetSuffix matches the "(offset N)" trailer internal packages append via
// fmtOffset/malformed, so it can be stripped back off into ValidationError's
// dedicated Offset field.
var offsetSuffix = regexp.MustCompile(`\s*\(offset (\d+)\)$`)

// wrapInternalError turns an internal package's plain error, carrying its
// message and an "(offset N)" trailer, into a ValidationError. Internal
// packages never construct ValidationError directly: they only know their
// own message text, not the taxonomy a caller branches on, so classification
// happens once, here, at the package boundary.
func wrapInternalError(err error) *ValidationError {
	if ve, ok := err.(*ValidationError); ok {
		return ve
	}
	msg := err.Error()
	offset := 0
	if m := offsetSuffix.FindStringSubmatch(msg); m != nil {
		offset, _ = strconv.Atoi(m[1])
		msg = msg[:len(msg)-len(m[0])]
	}
	return &ValidationError{Kind: classify(msg), Offset: offset, Message: msg}
}

// classify infers a Kind from an internal error's message text. Order
// matters: more specific substrings are checked before the general ones
// they could otherwise be mistaken for (e.g. a constant-expression type
// mismatch is TypeMismatch, not NonConstantOperator).
func classify(msg string) Kind {
	switch {
	case strings.Contains(msg, "misplaced section"):
		return MisplacedSection
	case strings.Contains(msg, "duplicate export"):
		return DuplicateExport
	case strings.Contains(msg, "shared mismatch"):
		return SharedMismatch
	case strings.Contains(msg, "type mismatch"):
		return TypeMismatch
	case strings.Contains(msg, "non-constant operator"),
		strings.Contains(msg, "cannot reference a mutable global"),
		strings.Contains(msg, "can only reference imported globals"),
		strings.Contains(msg, "empty constant expression"):
		return NonConstantOperator
	case strings.Contains(msg, "invalid limits"):
		return InvalidLimits
	case strings.Contains(msg, "feature") && strings.Contains(msg, "is disabled"):
		return FeatureDisabled
	case strings.Contains(msg, "out of range"):
		return OutOfBounds
	case strings.Contains(msg, "too many"),
		strings.Contains(msg, "type size") && strings.Contains(msg, "exceeds"):
		return LimitExceeded
	case strings.Contains(msg, "is not a subtype"),
		strings.Contains(msg, "is not a function type"),
		strings.Contains(msg, "must have type"),
		strings.Contains(msg, "inconsistent lengths"):
		return TypeMismatch
	default:
		return Malformed
	}
}
