package views

import (
	"fmt"

	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
)

// State is the lifecycle of a list view
type State int

const (
	StateLoading State = iota
	StateEmpty
	StateError
	StateSuccess
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateError:
		return "error"
	case StateSuccess:
		return "success"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Variant is the style of a notice
type Variant int

const (
	VariantDefault Variant = iota
	VariantDestructive
)

// Notice is a transient notification
type Notice struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// ErrStale is returned for a result that arrived after its view moved on
// to other filters or was closed.
var ErrStale = apperrors.New(apperrors.ErrCodeStale, "result superseded", nil)

// Result is the outcome of loading one page of a list view. Redirect is set
// when the view must not be shown; the caller should navigate there instead.
type Result[T any] struct {
	State    State
	Page     *paging.Page[T]
	Err      error
	Redirect *guard.Decision
	Stale    bool
}

// RedirectError is returned by a mutation that was refused because the
// session is missing, of the wrong role, or expired on the server.
type RedirectError struct {
	Decision guard.Decision
	Err      error
}

func (e *RedirectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("redirect to %s: %v", e.Decision.RedirectTo, e.Err)
	}
	return fmt.Sprintf("redirect to %s", e.Decision.RedirectTo)
}

func (e *RedirectError) Unwrap() error {
	return e.Err
}
