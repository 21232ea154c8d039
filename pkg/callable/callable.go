// Package callable extracts method and constructor declarations from Java
// source using tree-sitter, with the static metrics the dataset needs.
package callable

// Kind distinguishes methods from constructors.
type Kind int

const (
	// Method is a regular method declaration.
	Method Kind = iota
	// Constructor is a constructor or compact record constructor.
	Constructor
)

// Declaration is one callable found in a source file. Lines are 1-based and
// inclusive and cover modifiers and annotations.
type Declaration struct {
	Name       string
	Signature  string
	Kind       Kind
	StartLine  int
	EndLine    int
	Parameters int
	Complexity int
}

// LOC returns the line span of the declaration as end minus start.
func (d Declaration) LOC() int {
	return d.EndLine - d.StartLine
}

// Overlaps reports whether the declaration intersects [start, end].
func (d Declaration) Overlaps(start, end int) bool {
	return max(d.StartLine, start) <= min(d.EndLine, end)
}

// Key returns the identity of a callable within a snapshot.
func Key(path, signature string) string {
	return path + "::" + signature
}

// Reason explains why a file produced no declarations.
type Reason string

const (
	// ReasonNone marks a successful parse.
	ReasonNone Reason = ""
	// ReasonSyntax marks content the grammar could not parse cleanly.
	ReasonSyntax Reason = "syntax_error"
	// ReasonParser marks an internal parser failure.
	ReasonParser Reason = "parser_error"
	// ReasonTooLarge marks content above the configured size limit.
	ReasonTooLarge Reason = "too_large"
	// ReasonUnreadable marks content that could not be loaded.
	ReasonUnreadable Reason = "unreadable"
)

// ParseResult is the outcome of parsing one file.
type ParseResult struct {
	Declarations []Declaration
	Reason       Reason
	Err          error
}

// OK reports whether parsing succeeded.
func (r ParseResult) OK() bool {
	return r.Reason == ReasonNone
}

// Failed builds a failed result.
func Failed(reason Reason, err error) ParseResult {
	return ParseResult{Reason: reason, Err: err}
}
