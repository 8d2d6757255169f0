// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is a user-facing failure: what felis was doing, on what, and
	// what to try next. Issue optionally links it to a catalogued explanation that
	// the CLI renders in verbose mode.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("discover mods").
	//		WithResource("./mods").
	//		WithIssue(issue.ModDirNotFoundId).
	//		WithSuggestion("Create the directory").
	//		Wrap(os.ErrNotExist).
	//		BuildError()
	ActionableError struct {
		Operation   string
		Resource    string
		Issue       Id
		Suggestions []string
		Cause       error
	}

	// ErrorContext assembles an ActionableError step by step.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithContext attaches operation and resource to err. A nil err stays nil.
func WrapWithContext(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Resource: resource, Cause: err}
}

// IssueOf returns the catalogued issue of the outermost ActionableError in err's
// tree that carries one.
func IssueOf(err error) (Id, bool) {
	for err != nil {
		var ae *ActionableError
		if !errors.As(err, &ae) {
			return 0, false
		}
		if ae.Issue != 0 {
			return ae.Issue, true
		}
		err = ae.Cause
	}
	return 0, false
}

// Error implements the error interface.
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message and a bullet per suggestion. Verbose output also
// lists the cause chain, one numbered line per error.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if e.HasSuggestions() {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}

	if chain := causeChain(e.Cause); verbose && len(chain) > 0 {
		b.WriteString("\n\nError chain:")
		for i, line := range chain {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, line)
		}
	}
	return b.String()
}

// HasSuggestions reports whether any suggestion is attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// causeChain flattens err depth first. Errors with several causes, such as an
// adapter resolution failure or a per-resource discovery error, contribute every
// branch in order.
func causeChain(err error) []string {
	if err == nil {
		return nil
	}
	out := []string{err.Error()}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, child := range u.Unwrap() {
			out = append(out, causeChain(child)...)
		}
	case interface{ Unwrap() error }:
		out = append(out, causeChain(u.Unwrap())...)
	}
	return out
}

// WithOperation sets the verb phrase, e.g. "load configuration".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource names the file, directory, mod or class involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithIssue links the error to a catalogued issue.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.Issue = id
	return c
}

// WithSuggestion appends a remediation hint.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, s)
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// Build returns the assembled error, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.err.Operation == "" {
		return nil
	}
	out := c.err
	return &out
}

// BuildError is Build as an error value; a missing operation yields a nil interface.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
