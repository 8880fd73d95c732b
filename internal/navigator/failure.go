package navigator

import (
	"fmt"
	"strings"
)

// Reason classifies a fatal navigation outcome.
type Reason string

const (
	ReasonNavigationFailure      Reason = "NavigationFailure"
	ReasonNavigationTimeout      Reason = "NavigationTimeout"
	ReasonLoginFieldNotFound     Reason = "LoginFieldNotFound"
	ReasonLoginTimeout           Reason = "LoginTimeout"
	ReasonUnexpectedRedirectLoop Reason = "UnexpectedRedirectLoop"
)

// Failure is the typed error returned when the navigator reaches Failed.
type Failure struct {
	Reason Reason
	// State is the state the navigator was in when it failed.
	State State
	URL   string
	// Field names the unresolved login control for LoginFieldNotFound.
	Field   string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s in state %s", f.Reason, f.State)
	if f.URL != "" {
		fmt.Fprintf(&sb, " at %s", f.URL)
	}
	if f.Field != "" {
		fmt.Fprintf(&sb, " (field %s)", f.Field)
	}
	if f.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Message)
	}
	if f.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(f.Err.Error())
	}
	return sb.String()
}

func (f *Failure) Unwrap() error { return f.Err }
