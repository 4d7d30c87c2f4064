// Package failure models how activity, child workflow and execution failures surface to
// orchestration code. Every invocation in package invoke returns a *Failure tagged with a
// Kind, so workflow code decides explicitly whether to compensate, translate or propagate.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-workflows/workflow"
)

type Kind int

const (
	// Transient failures are retried according to the invocation's retry policy.
	Transient Kind = iota

	// NonRetryable failures are business rejections and skip any remaining attempts.
	NonRetryable

	// Timeout failures are raised when an activity, child workflow or execution
	// exceeded its allotted time.
	Timeout

	// Canceled failures are delivered at the next suspension point after cancellation.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "Transient"
	case NonRetryable:
		return "NonRetryable"
	case Timeout:
		return "Timeout"
	case Canceled:
		return "Canceled"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{Transient, NonRetryable, Timeout, Canceled} {
		if k.String() == s {
			return k, true
		}
	}

	return Transient, false
}

// Failure is the typed outcome of a failed invocation.
type Failure struct {
	Kind Kind

	// Step names the orchestration step that failed, e.g. "validate-order".
	Step string

	// Type is the error type reported by the failed activity or workflow, e.g. "ValidationError".
	Type string

	Message string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	Cause error
}

var _ error = (*Failure)(nil)

func (f *Failure) Error() string {
	var b strings.Builder
	if f.Step != "" {
		b.WriteString(f.Step)
		b.WriteString(": ")
	}

	b.WriteString(strings.ToLower(f.Kind.String()))
	if f.Type != "" {
		b.WriteString(" ")
		b.WriteString(f.Type)
	}

	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}

	if f.Attempts > 1 {
		fmt.Fprintf(&b, " (after %d attempts)", f.Attempts)
	}

	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Retryable reports whether another attempt may succeed.
func (f *Failure) Retryable() bool {
	return f.Kind == Transient
}

func New(kind Kind, step, message string) *Failure {
	return &Failure{Kind: kind, Step: step, Message: message}
}

// KindOf returns the kind of the first Failure in err's chain, or classifies err if there is none.
func KindOf(err error) Kind {
	return Classify("", err).Kind
}

// Is reports whether err carries a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify maps an error returned by the engine (activity or sub-workflow futures, timers) to a
// Failure for the given step. Errors that already are failures keep their kind.
func Classify(step string, err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		if f.Step == "" && step != "" {
			c := *f
			c.Step = step
			return &c
		}

		return f
	}

	if errors.Is(err, workflow.Canceled) || errors.Is(err, context.Canceled) {
		return &Failure{Kind: Canceled, Step: step, Message: "canceled", Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: Timeout, Step: step, Message: err.Error(), Cause: err}
	}

	var perr *workflow.PanicError
	if errors.As(err, &perr) {
		return &Failure{Kind: Transient, Step: step, Type: "PanicError", Message: perr.Error(), Cause: err}
	}

	var werr *workflow.Error
	if errors.As(err, &werr) {
		return fromWorkflowError(step, werr)
	}

	return &Failure{Kind: Transient, Step: step, Message: err.Error(), Cause: err}
}

func fromWorkflowError(step string, werr *workflow.Error) *Failure {
	f := &Failure{
		Kind:    Transient,
		Step:    step,
		Type:    werr.Type,
		Message: werr.Message,
		Cause:   werr,
	}

	if kind, ok := kindFromType(werr.Type); ok {
		// Failure exported by a child workflow; report the innermost error type.
		f.Kind = kind
		f.Type = rootType(werr)
		return f
	}

	if werr.Permanent {
		f.Kind = NonRetryable
	}

	return f
}

func rootType(werr *workflow.Error) string {
	typ := ""
	for e := werr; e != nil; {
		if _, ok := kindFromType(e.Type); !ok && e.Type != "" {
			typ = e.Type
		}

		next, ok := e.Cause.(*workflow.Error)
		if !ok {
			break
		}
		e = next
	}

	return typ
}
