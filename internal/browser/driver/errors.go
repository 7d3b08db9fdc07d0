// internal/browser/driver/errors.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failure. The set is closed: drivers map every protocol
// error onto one of these, and anything unrecognised is KindUnknown.
type Kind uint8

const (
	KindUnknown Kind = iota
	// Transient page states.
	KindNoSuchElement
	KindStaleElement
	KindNoSuchFrame
	KindNoSuchAlert
	// Hard failures.
	KindNotInteractable
	KindTimeout
	KindSelectionNotFound
	KindInvalidArgument
	KindNoSuchWindow
	KindScript

	kindCount
)

var kindNames = [...]string{
	KindUnknown:           "unknown error",
	KindNoSuchElement:     "no such element",
	KindStaleElement:      "stale element reference",
	KindNoSuchFrame:       "no such frame",
	KindNoSuchAlert:       "no such alert",
	KindNotInteractable:   "element not interactable",
	KindTimeout:           "timeout",
	KindSelectionNotFound: "selection not found",
	KindInvalidArgument:   "invalid argument",
	KindNoSuchWindow:      "no such window",
	KindScript:            "javascript error",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindSet is a set of Kinds.
type KindSet uint32

// NewKindSet returns the set holding kinds.
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool { return s&(1<<k) != 0 }

// With returns the union of s and kinds.
func (s KindSet) With(kinds ...Kind) KindSet { return s | NewKindSet(kinds...) }

// Without returns s minus kinds.
func (s KindSet) Without(kinds ...Kind) KindSet { return s &^ NewKindSet(kinds...) }

// Kinds lists the members in declaration order.
func (s KindSet) Kinds() []Kind {
	var out []Kind
	for k := Kind(0); k < kindCount; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s KindSet) String() string {
	names := make([]string, 0, kindCount)
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// TransientKinds are the characteristic states of a page that is still
// rendering: the element, frame or prompt is not there yet, or was replaced.
var TransientKinds = NewKindSet(KindNoSuchElement, KindStaleElement, KindNoSuchFrame, KindNoSuchAlert)

// Error is the typed failure returned by drivers and by the interaction
// layer. Locator, Stage and Elapsed are filled in when known.
type Error struct {
	Kind    Kind
	Op      string
	Locator string
	Stage   string
	Elapsed time.Duration
	Err     error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrNoSuchElement     = &Error{Kind: KindNoSuchElement}
	ErrStaleElement      = &Error{Kind: KindStaleElement}
	ErrNoSuchFrame       = &Error{Kind: KindNoSuchFrame}
	ErrNoSuchAlert       = &Error{Kind: KindNoSuchAlert}
	ErrNotInteractable   = &Error{Kind: KindNotInteractable}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrSelectionNotFound = &Error{Kind: KindSelectionNotFound}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrNoSuchWindow      = &Error{Kind: KindNoSuchWindow}
	ErrScript            = &Error{Kind: KindScript}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Stage != "" {
		fmt.Fprintf(&b, " (stage %s)", e.Stage)
	}
	if e.Locator != "" {
		fmt.Fprintf(&b, " for %s", e.Locator)
	}
	if e.Elapsed > 0 {
		fmt.Fprintf(&b, " after %v", e.Elapsed.Round(time.Millisecond))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error target of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is one of the TransientKinds.
func IsTransient(err error) bool {
	return err != nil && TransientKinds.Has(KindOf(err))
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// protocolMessages maps substrings of W3C error codes and of the messages
// browsers attach to them onto Kinds. Order matters: the first match wins.
var protocolMessages = []struct {
	needle string
	kind   Kind
}{
	{"stale element reference", KindStaleElement},
	{"element is not attached", KindStaleElement},
	{"no node with given id", KindStaleElement},
	{"could not find node with given id", KindStaleElement},
	{"node is detached", KindStaleElement},
	{"could not find object with given id", KindStaleElement},
	{"no such element", KindNoSuchElement},
	{"unable to locate element", KindNoSuchElement},
	{"no such frame", KindNoSuchFrame},
	{"no such alert", KindNoSuchAlert},
	{"no alert open", KindNoSuchAlert},
	{"no dialog is showing", KindNoSuchAlert},
	{"element click intercepted", KindNotInteractable},
	{"element not interactable", KindNotInteractable},
	{"not clickable at point", KindNotInteractable},
	{"element not visible", KindNotInteractable},
	{"no such window", KindNoSuchWindow},
	{"no such execution context", KindNoSuchWindow},
	{"invalid argument", KindInvalidArgument},
	{"invalid selector", KindInvalidArgument},
	{"is not a valid selector", KindInvalidArgument},
	{"is not a valid xpath expression", KindInvalidArgument},
	{"javascript error", KindScript},
}

// Classify wraps err as an *Error for op. Errors that already carry a Kind
// are returned unchanged; context errors are returned unchanged so callers
// can test them with errors.Is.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: classifyMessage(err.Error()), Op: op, Err: err}
}

func classifyMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	for _, m := range protocolMessages {
		if strings.Contains(msg, m.needle) {
			return m.kind
		}
	}
	return KindUnknown
}
