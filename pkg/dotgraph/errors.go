package dotgraph

import "fmt"

// ParseError reports dot source that could not be parsed. It carries the
// offending input so callers can quarantine it.
type ParseError struct {
	// Input is the raw dot source.
	Input string
	// Err is the underlying parser error.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing dot source: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StructureError reports dot source that parsed but does not have the shape
// the LLVM tooling is expected to emit.
type StructureError struct {
	// Input is the raw dot source.
	Input  string
	Reason string
}

func (e *StructureError) Error() string { return e.Reason }

// FormatError reports a dot attribute whose value does not follow the LLVM
// conventions this package understands. It usually signals output from an
// LLVM version with a different dot format, which must not be silently
// ignored.
type FormatError struct {
	// Attr is the offending attribute value, verbatim.
	Attr   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: `%s`", e.Reason, e.Attr)
}
