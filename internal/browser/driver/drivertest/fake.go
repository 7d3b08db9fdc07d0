// internal/browser/driver/drivertest/fake.go
// Package drivertest provides an in-memory driver.Driver for tests. Page
// state is described with Nodes whose visibility, enablement and click
// behaviour can change over time, so readiness logic can be exercised
// deterministically without a browser.
package drivertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/scripts"
)

// Node is one element of the fake page. Durations are measured from the
// moment the node is added to the Fake.
type Node struct {
	Locator schemas.Locator

	Text  string
	Attrs map[string]string
	// Value is what typed keys produced so far.
	Value string

	Hidden   bool
	Disabled bool
	Selected bool
	// Toggle makes a native click flip Selected, like a checkbox.
	Toggle bool

	AppearAfter    time.Duration
	DisplayedAfter time.Duration
	EnabledAfter   time.Duration

	// ClickErrors are returned, in order, by successive native clicks.
	ClickErrors []error
	// ScriptClickErr is returned by the synthetic click.
	ScriptClickErr error

	// Options makes the node a <select>.
	Options      []scripts.Option
	Multiple     bool
	OptionsAfter time.Duration

	// Counters.
	Clicks       int
	ScriptClicks int
	DoubleClicks int
	Scrolls      int
	LastScroll   string
	Keys         []string

	added time.Time
	gen   int
}

// Replace simulates the page swapping the node's DOM element: handles
// obtained before the call become stale.
func (n *Node) Replace() { n.gen++ }

func (n *Node) present(now time.Time) bool { return now.Sub(n.added) >= n.AppearAfter }

// SelectedValues lists the values of the selected options.
func (n *Node) SelectedValues() []string {
	var out []string
	for _, o := range n.Options {
		if o.Selected {
			out = append(out, o.Value)
		}
	}
	return out
}

type element struct {
	node *Node
	gen  int
	id   string
}

func (e *element) ID() string { return e.id }

// FrameNode is a child frame of the fake page.
type FrameNode struct {
	Name        string
	Locator     schemas.Locator
	AppearAfter time.Duration
	added       time.Time
}

// Prompt is a fake user prompt.
type Prompt struct {
	Message     string
	AppearAfter time.Duration
	Input       string
	Accepted    bool
	Dismissed   bool
	added       time.Time
}

// Fake is an in-memory driver.Driver. It is safe for concurrent use so tests
// can inspect it while a session runs.
type Fake struct {
	mu sync.Mutex

	nodes  []*Node
	frames []*FrameNode
	prompt *Prompt

	windows []string
	current int
	path    []string
	url     string
	quit    bool
	nextID  int

	calls []string

	// ScriptHandler answers scripts the fake does not recognise.
	ScriptHandler func(script string, args []interface{}) (interface{}, error)
}

var _ driver.Driver = (*Fake)(nil)

// New returns a fake with one window and an empty page.
func New() *Fake {
	return &Fake{windows: []string{"window-0"}, url: "about:blank"}
}

// Add places nodes on the page and returns the first.
func (f *Fake) Add(nodes ...*Node) *Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, n := range nodes {
		n.added = now
		if n.Attrs == nil {
			n.Attrs = map[string]string{}
		}
		f.nodes = append(f.nodes, n)
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Remove takes n off the page. Existing handles become stale.
func (f *Fake) Remove(n *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.nodes {
		if m == n {
			f.nodes = append(f.nodes[:i], f.nodes[i+1:]...)
			n.gen++
			return
		}
	}
}

// AddFrame adds a child frame.
func (f *Fake) AddFrame(fr *FrameNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr.added = time.Now()
	f.frames = append(f.frames, fr)
}

// OpenPrompt opens a user prompt, visible after p.AppearAfter.
func (f *Fake) OpenPrompt(p *Prompt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.added = time.Now()
	f.prompt = p
}

// OpenWindow adds a window handle.
func (f *Fake) OpenWindow(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, handle)
}

// Calls returns the names of the driver methods invoked so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts invocations of method.
func (f *Fake) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// CurrentWindow returns the handle of the current window.
func (f *Fake) CurrentWindow() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current < 0 || f.current >= len(f.windows) {
		return ""
	}
	return f.windows[f.current]
}

// FramePath returns the names of the frames entered, outermost first.
func (f *Fake) FramePath() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.path...)
}

// Quitted reports whether Quit was called.
func (f *Fake) Quitted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quit
}

func (f *Fake) record(method string) { f.calls = append(f.calls, method) }

func (f *Fake) resolve(op string, el driver.Element) (*Node, error) {
	e, ok := el.(*element)
	if !ok || e == nil {
		return nil, driver.Errorf(driver.KindInvalidArgument, op, "foreign element %v", el)
	}
	for _, n := range f.nodes {
		if n == e.node && n.gen == e.gen {
			return n, nil
		}
	}
	return nil, driver.Errorf(driver.KindStaleElement, op, "stale element reference: %s", e.id)
}

// --- Finder ---

func (f *Fake) FindAll(_ context.Context, loc schemas.Locator) ([]driver.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindAll")
	if err := loc.Validate(); err != nil {
		return nil, driver.Errorf(driver.KindInvalidArgument, "find", "invalid selector: %v", err)
	}
	now := time.Now()
	var out []driver.Element
	for _, n := range f.nodes {
		if n.Locator == loc && n.present(now) {
			f.nextID++
			out = append(out, &element{node: n, gen: n.gen, id: fmt.Sprintf("el-%d", f.nextID)})
		}
	}
	return out, nil
}

// --- ElementReader ---

func (f *Fake) IsDisplayed(_ context.Context, el driver.Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IsDisplayed")
	n, err := f.resolve("is displayed", el)
	if err != nil {
		return false, err
	}
	return !n.Hidden && time.Since(n.added) >= n.DisplayedAfter, nil
}

func (f *Fake) IsEnabled(_ context.Context, el driver.Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IsEnabled")
	n, err := f.resolve("is enabled", el)
	if err != nil {
		return false, err
	}
	return !n.Disabled && time.Since(n.added) >= n.EnabledAfter, nil
}

func (f *Fake) IsSelected(_ context.Context, el driver.Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IsSelected")
	n, err := f.resolve("is selected", el)
	if err != nil {
		return false, err
	}
	return n.Selected, nil
}

func (f *Fake) Text(_ context.Context, el driver.Element) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Text")
	n, err := f.resolve("text", el)
	if err != nil {
		return "", err
	}
	return n.Text, nil
}

func (f *Fake) Attribute(_ context.Context, el driver.Element, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Attribute")
	n, err := f.resolve("attribute", el)
	if err != nil {
		return "", err
	}
	if name == "value" {
		return n.Value, nil
	}
	return n.Attrs[name], nil
}

// --- ElementActor ---

func (f *Fake) SendKeys(_ context.Context, el driver.Element, keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendKeys")
	n, err := f.resolve("send keys", el)
	if err != nil {
		return err
	}
	n.Keys = append(n.Keys, keys)
	n.Value = typeKeys(n.Value, keys)
	return nil
}

// typeKeys applies keys to value the way a text input would: Ctrl+A selects
// everything, Delete/Backspace then erase the selection, other WebDriver
// codepoints are ignored.
func typeKeys(value, keys string) string {
	var ctrl, all bool
	var b strings.Builder
	b.WriteString(value)
	for _, r := range keys {
		k := string(r)
		switch {
		case k == driver.KeyControl || k == driver.KeyMeta:
			ctrl = true
		case k == driver.KeyNull:
			ctrl = false
		case ctrl && (k == "a" || k == "A"):
			all = true
		case k == driver.KeyDelete || k == driver.KeyBackspace:
			if all {
				b.Reset()
				all = false
				continue
			}
			if k == driver.KeyBackspace {
				s := []rune(b.String())
				if len(s) > 0 {
					b.Reset()
					b.WriteString(string(s[:len(s)-1]))
				}
			}
		case r >= 0xe000 && r <= 0xf8ff:
			// Unhandled key codepoint.
		default:
			if all {
				b.Reset()
				all = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (f *Fake) Clear(_ context.Context, el driver.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Clear")
	n, err := f.resolve("clear", el)
	if err != nil {
		return err
	}
	n.Value = ""
	return nil
}

func (f *Fake) Click(_ context.Context, el driver.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Click")
	n, err := f.resolve("click", el)
	if err != nil {
		return err
	}
	if len(n.ClickErrors) > 0 {
		err := n.ClickErrors[0]
		n.ClickErrors = n.ClickErrors[1:]
		if err != nil {
			return err
		}
	}
	n.Clicks++
	if n.Toggle {
		n.Selected = !n.Selected
	}
	return nil
}

// --- ScriptExecutor ---

func (f *Fake) ExecuteScript(_ context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ExecuteScript")

	target := func(op string) (*Node, error) {
		if len(args) == 0 {
			return nil, driver.Errorf(driver.KindScript, op, "javascript error: arguments[0] is undefined")
		}
		el, _ := args[0].(driver.Element)
		return f.resolve(op, el)
	}

	switch {
	case strings.HasPrefix(script, scripts.ScrollIntoViewPrefix):
		n, err := target("scroll into view")
		if err != nil {
			return nil, err
		}
		n.Scrolls++
		n.LastScroll = script
		return json.RawMessage("null"), nil

	case script == scripts.DispatchClick:
		n, err := target("dispatch click")
		if err != nil {
			return nil, err
		}
		if n.ScriptClickErr != nil {
			return nil, n.ScriptClickErr
		}
		n.ScriptClicks++
		if n.Toggle {
			n.Selected = !n.Selected
		}
		return json.RawMessage("null"), nil

	case script == scripts.DispatchDoubleClick:
		n, err := target("dispatch dblclick")
		if err != nil {
			return nil, err
		}
		n.DoubleClicks++
		return json.RawMessage("null"), nil

	case script == scripts.ListOptions:
		n, err := target("list options")
		if err != nil {
			return nil, err
		}
		if n.Options == nil {
			return json.RawMessage("null"), nil
		}
		state := scripts.SelectState{Multiple: n.Multiple, Options: []scripts.Option{}}
		if time.Since(n.added) >= n.OptionsAfter {
			state.Options = n.Options
		}
		return json.Marshal(state)

	case script == scripts.SelectOptions:
		n, err := target("select options")
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, driver.Errorf(driver.KindScript, "select options", "javascript error: missing indexes")
		}
		indexes, ok := args[1].([]int)
		if !ok {
			return nil, driver.Errorf(driver.KindScript, "select options", "javascript error: indexes are %T", args[1])
		}
		changed := 0
		if !n.Multiple {
			for i := range n.Options {
				n.Options[i].Selected = false
			}
		}
		for _, i := range indexes {
			if i >= 0 && i < len(n.Options) && !n.Options[i].Selected {
				n.Options[i].Selected = true
				changed++
			}
		}
		return json.Marshal(changed)
	}

	if f.ScriptHandler != nil {
		v, err := f.ScriptHandler(script, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
	return json.RawMessage("null"), nil
}

// --- WindowManager ---

func (f *Fake) WindowHandles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WindowHandles")
	return append([]string(nil), f.windows...), nil
}

func (f *Fake) SwitchToWindow(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SwitchToWindow")
	for i, h := range f.windows {
		if h == handle {
			f.current = i
			f.path = nil
			return nil
		}
	}
	return driver.Errorf(driver.KindNoSuchWindow, "switch to window", "no such window: %s", handle)
}

func (f *Fake) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Close")
	if f.current < 0 || f.current >= len(f.windows) {
		return driver.Errorf(driver.KindNoSuchWindow, "close", "no such window")
	}
	f.windows = append(f.windows[:f.current], f.windows[f.current+1:]...)
	// Like WebDriver, the session has no current window until a switch.
	f.current = -1
	return nil
}

func (f *Fake) Quit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Quit")
	f.quit = true
	f.windows = nil
	return nil
}

// --- FrameSwitcher ---

func (f *Fake) SwitchToFrame(_ context.Context, frame driver.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SwitchToFrame")
	now := time.Now()
	var visible []*FrameNode
	for _, fr := range f.frames {
		if now.Sub(fr.added) >= fr.AppearAfter {
			visible = append(visible, fr)
		}
	}
	for i, fr := range visible {
		match := false
		switch {
		case !frame.Locator.IsZero():
			match = fr.Locator == frame.Locator
		case frame.Name != "":
			match = fr.Name == frame.Name
		default:
			match = i == frame.Index
		}
		if match {
			f.path = append(f.path, fr.Name)
			return nil
		}
	}
	return driver.Errorf(driver.KindNoSuchFrame, "switch to frame", "no such frame: %s", frame)
}

func (f *Fake) SwitchToDefaultContent(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SwitchToDefaultContent")
	f.path = nil
	return nil
}

func (f *Fake) SwitchToParentFrame(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SwitchToParentFrame")
	if len(f.path) > 0 {
		f.path = f.path[:len(f.path)-1]
	}
	return nil
}

// --- Navigator ---

func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Navigate")
	f.url = url
	f.path = nil
	return nil
}

func (f *Fake) CurrentURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CurrentURL")
	return f.url, nil
}

// --- AlertProvider ---

func (f *Fake) Alert(context.Context) (driver.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Alert")
	p := f.prompt
	if p == nil || p.Accepted || p.Dismissed || time.Since(p.added) < p.AppearAfter {
		return nil, driver.Errorf(driver.KindNoSuchAlert, "alert", "no such alert")
	}
	return &alert{f: f, p: p}, nil
}

type alert struct {
	f *Fake
	p *Prompt
}

func (a *alert) open(op string) error {
	if a.p.Accepted || a.p.Dismissed {
		return driver.Errorf(driver.KindNoSuchAlert, op, "no such alert")
	}
	return nil
}

func (a *alert) Text(context.Context) (string, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if err := a.open("alert text"); err != nil {
		return "", err
	}
	return a.p.Message, nil
}

func (a *alert) Accept(context.Context) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if err := a.open("accept alert"); err != nil {
		return err
	}
	a.p.Accepted = true
	return nil
}

func (a *alert) Dismiss(context.Context) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if err := a.open("dismiss alert"); err != nil {
		return err
	}
	a.p.Dismissed = true
	return nil
}

func (a *alert) SendKeys(_ context.Context, text string) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if err := a.open("alert send keys"); err != nil {
		return err
	}
	a.p.Input = text
	return nil
}
