// internal/browser/driver/driver.go
// Package driver defines the capability interface the interaction layer
// consumes from a remote browser. Implementations (CDP, WebDriver, the
// in-memory fake) translate these calls into their own protocol and report
// failures as *Error values carrying a Kind, so the poller can tell transient
// page states from hard failures.
//
// A Driver is not safe for concurrent use. One browsing session drives one
// Driver from one goroutine; independent sessions use independent Drivers.
package driver

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/xkilldash9x/webready/api/schemas"
)

// Element is an opaque reference to a located element. It is not stable
// across re-queries: the node it points at can be replaced at any time, in
// which case operations on it fail with KindStaleElement.
type Element interface {
	// ID returns the driver-specific identity of the reference, for logging.
	ID() string
}

// Finder locates elements in the current browsing context.
type Finder interface {
	// FindAll returns every element matching loc, possibly none. An empty
	// result is not an error.
	FindAll(ctx context.Context, loc schemas.Locator) ([]Element, error)
}

// ElementReader reads element state.
type ElementReader interface {
	IsDisplayed(ctx context.Context, el Element) (bool, error)
	IsEnabled(ctx context.Context, el Element) (bool, error)
	IsSelected(ctx context.Context, el Element) (bool, error)
	Text(ctx context.Context, el Element) (string, error)
	Attribute(ctx context.Context, el Element, name string) (string, error)
}

// ElementActor performs native interactions on an element.
type ElementActor interface {
	// SendKeys types keys into el. keys may contain the WebDriver key
	// codepoints declared in this package (KeyControl, KeyDelete, ...).
	SendKeys(ctx context.Context, el Element, keys string) error
	Clear(ctx context.Context, el Element) error
	Click(ctx context.Context, el Element) error
}

// ScriptExecutor runs JavaScript in the current browsing context. The
// script body sees its arguments through `arguments`; Element arguments are
// passed as live DOM nodes. The JSON encoded return value is returned.
type ScriptExecutor interface {
	ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error)
}

// WindowManager lists and switches top-level browsing contexts.
type WindowManager interface {
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	// Close closes the current window.
	Close(ctx context.Context) error
	// Quit ends the whole browser session.
	Quit(ctx context.Context) error
}

// FrameSwitcher changes the browsing context to a child or parent frame.
type FrameSwitcher interface {
	SwitchToFrame(ctx context.Context, frame Frame) error
	SwitchToDefaultContent(ctx context.Context) error
	SwitchToParentFrame(ctx context.Context) error
}

// Navigator loads and reports page URLs.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
}

// Alert is an open user prompt (alert, confirm, prompt).
type Alert interface {
	Text(ctx context.Context) (string, error)
	Accept(ctx context.Context) error
	Dismiss(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// AlertProvider exposes the currently open user prompt.
type AlertProvider interface {
	// Alert fails with KindNoSuchAlert when no prompt is open.
	Alert(ctx context.Context) (Alert, error)
}

// Driver is the full capability set of a browser session.
type Driver interface {
	Finder
	ElementReader
	ElementActor
	ScriptExecutor
	WindowManager
	FrameSwitcher
	Navigator
	AlertProvider
}

// Frame selects a child frame by locator, index or name/id. Exactly one of
// the selectors is used, in that order of precedence.
type Frame struct {
	Locator schemas.Locator
	Index   int
	Name    string
}

// FrameByLocator selects the frame element matched by loc.
func FrameByLocator(loc schemas.Locator) Frame { return Frame{Locator: loc, Index: -1} }

// FrameByIndex selects the index-th frame of the current document, from 0.
func FrameByIndex(index int) Frame { return Frame{Index: index} }

// FrameByName selects the frame whose name or id attribute equals name.
func FrameByName(name string) Frame { return Frame{Name: name, Index: -1} }

func (f Frame) String() string {
	switch {
	case !f.Locator.IsZero():
		return "frame(" + f.Locator.String() + ")"
	case f.Name != "":
		return "frame(name=" + f.Name + ")"
	default:
		return "frame(index=" + strconv.Itoa(f.Index) + ")"
	}
}
