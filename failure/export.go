package failure

import (
	"errors"
	"strings"

	"github.com/cschleiden/go-workflows/workflow"
)

const typePrefix = "failure."

func kindFromType(typ string) (Kind, bool) {
	if !strings.HasPrefix(typ, typePrefix) {
		return Transient, false
	}

	return ParseKind(strings.TrimPrefix(typ, typePrefix))
}

// Export converts a failure returned from a workflow into the engine's serializable error, keeping
// the kind in the error type so a parent workflow or caller can classify it again. Errors that do
// not carry a Failure, like continue-as-new requests, are returned unchanged.
func Export(err error) error {
	var f *Failure
	if err == nil || !errors.As(err, &f) {
		return err
	}

	werr := &workflow.Error{
		Type:      typePrefix + f.Kind.String(),
		Message:   err.Error(),
		Permanent: f.Kind != Transient,
	}

	switch {
	case f.Cause != nil:
		var cause *workflow.Error
		if errors.As(f.Cause, &cause) {
			werr.Cause = cause
		} else {
			werr.Cause = workflow.NewError(f.Cause)
		}

	case f.Type != "":
		// Keep the type of failures raised by workflow code itself
		werr.Cause = &workflow.Error{Type: f.Type, Message: f.Message, Permanent: werr.Permanent}
	}

	return werr
}

// Link is one element of a failure chain, outermost first.
type Link struct {
	Kind    string `json:"kind,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// Chain flattens a persisted workflow error into the chain of failures that led to it.
func Chain(werr *workflow.Error) []Link {
	var links []Link
	for e := werr; e != nil; {
		l := Link{Type: e.Type, Message: e.Message}
		if kind, ok := kindFromType(e.Type); ok {
			l.Kind = kind.String()
			l.Type = ""
		}
		links = append(links, l)

		next, ok := e.Cause.(*workflow.Error)
		if !ok {
			break
		}
		e = next
	}

	return links
}
