// internal/browser/driver/cdp/elements.go
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// element is a remote object id for a DOM element in one tab.
type element struct {
	obj runtime.RemoteObjectID
	tab target.ID
}

func (e element) ID() string { return string(e.obj) }

// attached rejects a detached node with a message the classifier maps to
// a stale element.
const attached = `if (!this.isConnected) { throw new Error('stale element reference: element is not attached to the page document'); }`

const (
	jsFind = `function(by, value) {
  if (by === 'css') { return Array.prototype.slice.call(this.querySelectorAll(value)); }
  var r = this.evaluate(value, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null), out = [];
  for (var i = 0; i < r.snapshotLength; i++) {
    var n = r.snapshotItem(i);
    if (n.nodeType === 1) { out.push(n); }
  }
  return out;
}`

	jsDisplayed = `function() {` + attached + `
  var el = this, win = el.ownerDocument.defaultView;
  if (el.tagName === 'OPTION' || el.tagName === 'OPTGROUP') {
    var sel = el.closest('select');
    if (sel) { el = sel; }
  }
  if (el.tagName === 'INPUT' && el.type === 'hidden') { return false; }
  for (var n = el; n && n.nodeType === 1; n = n.parentElement) {
    var s = win.getComputedStyle(n);
    if (s.display === 'none' || parseFloat(s.opacity) === 0) { return false; }
    if (n === el && (s.visibility === 'hidden' || s.visibility === 'collapse')) { return false; }
  }
  var r = el.getBoundingClientRect();
  return el.getClientRects().length > 0 && (r.width > 0 || r.height > 0);
}`

	jsEnabled  = `function() {` + attached + ` return !this.matches(':disabled'); }`
	jsSelected = `function() {` + attached + ` return !!(this.checked || this.selected); }`
	jsText     = `function() {` + attached + `
  var t = this.innerText !== undefined ? this.innerText : this.textContent;
  return (t || '').trim();
}`
	jsAttribute = `function(name) {` + attached + `
  var v = this.getAttribute(name);
  if (v === null && name in this) { v = this[name]; }
  return v === null || v === undefined ? null : String(v);
}`

	jsClear = `function() {` + attached + `
  if (this.isContentEditable) { this.innerHTML = ''; return; }
  if (!('value' in this)) { throw new Error('element not interactable: element is not editable'); }
  if (this.disabled || this.readOnly) { throw new Error('element not interactable: element is disabled or read-only'); }
  this.focus();
  this.value = '';
  this.dispatchEvent(new Event('input', {bubbles: true}));
  this.dispatchEvent(new Event('change', {bubbles: true}));
}`

	// jsFocus prepares an element for typing. It reports "file" for file
	// inputs, which take paths instead of keystrokes.
	jsFocus = `function() {` + attached + `
  if (this.tagName === 'INPUT' && this.type === 'file') { return 'file'; }
  if (this.disabled || this.readOnly) { throw new Error('element not interactable: element is disabled or read-only'); }
  if (this.ownerDocument.activeElement !== this) {
    this.focus();
    if (typeof this.setSelectionRange === 'function') {
      try { var n = this.value.length; this.setSelectionRange(n, n); } catch (e) {}
    }
  }
  return 'text';
}`

	// jsClickPoint scrolls the element into view if needed and returns the
	// viewport point of its centre, after checking nothing covers it.
	jsClickPoint = `function() {` + attached + `
  var el = this, win = el.ownerDocument.defaultView;
  var rects = el.getClientRects();
  if (!rects.length) { throw new Error('element not interactable: element has no size and location'); }
  var r = rects[0];
  if (r.top < 0 || r.left < 0 || r.bottom > win.innerHeight || r.right > win.innerWidth) {
    el.scrollIntoView({block: 'center', inline: 'center'});
    r = el.getClientRects()[0];
  }
  var x = r.left + r.width / 2, y = r.top + r.height / 2;
  var hit = el.ownerDocument.elementFromPoint(x, y);
  if (!hit || (hit !== el && !el.contains(hit))) {
    throw new Error('element click intercepted: element is not clickable at point (' + Math.round(x) + ', ' + Math.round(y) + ')' +
      (hit ? '. Other element would receive the click: <' + hit.tagName.toLowerCase() + '>' : ''));
  }
  for (var w = win; w.frameElement; w = w.parent) {
    var fr = w.frameElement.getBoundingClientRect(), cs = w.parent.getComputedStyle(w.frameElement);
    x += fr.left + parseFloat(cs.borderLeftWidth) + parseFloat(cs.paddingLeft);
    y += fr.top + parseFloat(cs.borderTopWidth) + parseFloat(cs.paddingTop);
  }
  return {x: x, y: y};
}`

	jsContentDocument = `function() {
  if (!this.isConnected) { throw new Error('no such frame: frame element is not attached to the page document'); }
  var doc = null;
  try { doc = this.contentDocument; } catch (e) {}
  if (!doc) { throw new Error('no such frame: frame document is not accessible'); }
  return doc;
}`

	jsFrameByIndexOrName = `function(index, name) {
  var frames = this.querySelectorAll('iframe, frame');
  if (name) {
    for (var i = 0; i < frames.length; i++) {
      if (frames[i].name === name || frames[i].id === name) { return frames[i]; }
    }
    throw new Error('no such frame: ' + name);
  }
  if (index < 0 || index >= frames.length) { throw new Error('no such frame: index ' + index); }
  return frames[index];
}`
)

// callArgs turns Go values into Runtime.callFunctionOn arguments. Elements
// are passed by object id, everything else by JSON value.
func callArgs(tab target.ID, args []interface{}) ([]*runtime.CallArgument, error) {
	out := make([]*runtime.CallArgument, 0, len(args))
	for i, a := range args {
		if e, ok := a.(element); ok {
			if e.tab != tab {
				return nil, driver.Errorf(driver.KindStaleElement, "call", "stale element reference: argument %d belongs to another tab", i)
			}
			out = append(out, &runtime.CallArgument{ObjectID: e.obj})
			continue
		}
		b, err := jsonAPI.Marshal(a)
		if err != nil {
			return nil, driver.Errorf(driver.KindInvalidArgument, "call", "argument %d: %v", i, err)
		}
		out = append(out, &runtime.CallArgument{Value: b})
	}
	return out, nil
}

// exceptionError reports a thrown exception so the classifier sees the
// message the page code produced.
func exceptionError(exc *runtime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
		if i := strings.IndexByte(msg, '\n'); i > 0 {
			msg = msg[:i]
		}
	}
	return fmt.Errorf("javascript error: %s", msg)
}

// callOn runs fn with this bound to obj in the current tab. With byValue
// the result is JSON, otherwise a remote object.
func (d *Driver) callOn(ctx context.Context, op string, obj runtime.RemoteObjectID, fn string, byValue bool, args ...interface{}) (*runtime.RemoteObject, error) {
	if d.current == nil {
		return nil, driver.Errorf(driver.KindNoSuchWindow, op, "no such window: the current tab was closed")
	}
	cargs, err := callArgs(d.current.id, args)
	if err != nil {
		return nil, err
	}
	var res *runtime.RemoteObject
	err = d.run(ctx, op, chromedp.ActionFunc(func(ctx context.Context) error {
		r, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj).
			WithArguments(cargs).
			WithReturnByValue(byValue).
			WithObjectGroup(objectGroup).
			WithAwaitPromise(true).
			WithUserGesture(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		res = r
		return nil
	}))
	return res, err
}

// callValue runs fn on the element and decodes its JSON result into out.
func (d *Driver) callValue(ctx context.Context, op string, el driver.Element, fn string, out interface{}, args ...interface{}) error {
	e, err := d.unwrap(op, el)
	if err != nil {
		return err
	}
	res, err := d.callOn(ctx, op, e.obj, fn, true, args...)
	if err != nil {
		return err
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	if err := jsonAPI.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", op, err)
	}
	return nil
}

func (d *Driver) unwrap(op string, el driver.Element) (element, error) {
	e, ok := el.(element)
	if !ok || e.obj == "" {
		return element{}, driver.Errorf(driver.KindInvalidArgument, op, "element %v does not belong to this driver", el)
	}
	if d.current == nil || e.tab != d.current.id {
		return element{}, driver.Errorf(driver.KindStaleElement, op, "stale element reference: element belongs to another tab")
	}
	return e, nil
}

// document returns the document of the current browsing context.
func (d *Driver) document(ctx context.Context, op string) (runtime.RemoteObjectID, error) {
	if d.current == nil {
		return "", driver.Errorf(driver.KindNoSuchWindow, op, "no such window: the current tab was closed")
	}
	frames := d.frames(d.current)
	if len(frames) == 0 {
		var obj runtime.RemoteObjectID
		err := d.run(ctx, op, chromedp.ActionFunc(func(ctx context.Context) error {
			r, exc, err := runtime.Evaluate("document").WithObjectGroup(objectGroup).Do(ctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return exceptionError(exc)
			}
			obj = r.ObjectID
			return nil
		}))
		return obj, err
	}
	res, err := d.callOn(ctx, op, frames[len(frames)-1], jsContentDocument, false)
	if err != nil {
		return "", err
	}
	return res.ObjectID, nil
}

// --- Finder ---

func (d *Driver) FindAll(ctx context.Context, loc schemas.Locator) ([]driver.Element, error) {
	if err := loc.Validate(); err != nil {
		return nil, driver.Errorf(driver.KindInvalidArgument, "find", "invalid selector: %v", err)
	}
	by, value := "css", ""
	if sel, ok := loc.CSSSelector(); ok {
		value = sel
	} else {
		by, value = "xpath", loc.XPathExpr()
	}

	doc, err := d.document(ctx, "find")
	if err != nil {
		return nil, err
	}
	arr, err := d.callOn(ctx, "find", doc, jsFind, false, by, value)
	if err != nil {
		return nil, err
	}

	var props []*runtime.PropertyDescriptor
	err = d.run(ctx, "find", chromedp.ActionFunc(func(ctx context.Context) error {
		var exc *runtime.ExceptionDetails
		var err error
		props, _, _, exc, err = runtime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
		if err == nil && exc != nil {
			err = exceptionError(exc)
		}
		return err
	}))
	if err != nil {
		return nil, err
	}
	return indexedElements(d.current.id, props), nil
}

// indexedElements picks the array slots out of an array's own properties,
// in index order.
func indexedElements(tab target.ID, props []*runtime.PropertyDescriptor) []driver.Element {
	type slot struct {
		i   int
		obj runtime.RemoteObjectID
	}
	var slots []slot
	for _, p := range props {
		i, err := strconv.Atoi(p.Name)
		if err != nil || p.Value == nil || p.Value.ObjectID == "" {
			continue
		}
		slots = append(slots, slot{i, p.Value.ObjectID})
	}
	sort.Slice(slots, func(a, b int) bool { return slots[a].i < slots[b].i })
	out := make([]driver.Element, len(slots))
	for k, s := range slots {
		out[k] = element{obj: s.obj, tab: tab}
	}
	return out
}

// --- ElementReader ---

func (d *Driver) IsDisplayed(ctx context.Context, el driver.Element) (bool, error) {
	var v bool
	err := d.callValue(ctx, "is displayed", el, jsDisplayed, &v)
	return v, err
}

func (d *Driver) IsEnabled(ctx context.Context, el driver.Element) (bool, error) {
	var v bool
	err := d.callValue(ctx, "is enabled", el, jsEnabled, &v)
	return v, err
}

func (d *Driver) IsSelected(ctx context.Context, el driver.Element) (bool, error) {
	var v bool
	err := d.callValue(ctx, "is selected", el, jsSelected, &v)
	return v, err
}

func (d *Driver) Text(ctx context.Context, el driver.Element) (string, error) {
	var v string
	err := d.callValue(ctx, "text", el, jsText, &v)
	return v, err
}

func (d *Driver) Attribute(ctx context.Context, el driver.Element, name string) (string, error) {
	var v *string
	if err := d.callValue(ctx, "attribute", el, jsAttribute, &v, name); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// --- ElementActor ---

func (d *Driver) Clear(ctx context.Context, el driver.Element) error {
	return d.callValue(ctx, "clear", el, jsClear, nil)
}

// Click presses and releases the left button over the element's centre.
func (d *Driver) Click(ctx context.Context, el driver.Element) error {
	var pt struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := d.callValue(ctx, "click", el, jsClickPoint, &pt); err != nil {
		return err
	}
	return d.run(ctx, "click",
		input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y),
		input.DispatchMouseEvent(input.MousePressed, pt.X, pt.Y).WithButton(input.Left).WithButtons(1).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, pt.X, pt.Y).WithButton(input.Left).WithClickCount(1),
	)
}

// SendKeys types keys into the element. For a file input, keys is a
// newline separated list of paths to attach.
func (d *Driver) SendKeys(ctx context.Context, el driver.Element, keys string) error {
	var kind string
	if err := d.callValue(ctx, "send keys", el, jsFocus, &kind); err != nil {
		return err
	}
	if kind == "file" {
		e, _ := d.unwrap("send keys", el)
		files := strings.Split(keys, "\n")
		return d.run(ctx, "send keys", dom.SetFileInputFiles(files).WithObjectID(e.obj))
	}
	events := keyEvents(keys)
	actions := make([]chromedp.Action, len(events))
	for i, ev := range events {
		actions[i] = ev
	}
	return d.run(ctx, "send keys", actions...)
}

// --- ScriptExecutor ---

// ExecuteScript runs script as a function body bound to the current
// document, with args available through `arguments`.
func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	doc, err := d.document(ctx, "execute script")
	if err != nil {
		return nil, err
	}
	res, err := d.callOn(ctx, "execute script", doc, "function() {\n"+script+"\n}", true, args...)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(res.Value), nil
}

// --- FrameSwitcher ---

func (d *Driver) SwitchToFrame(ctx context.Context, frame driver.Frame) error {
	const op = "switch to frame"
	var frameEl runtime.RemoteObjectID
	if !frame.Locator.IsZero() {
		els, err := d.FindAll(ctx, frame.Locator)
		if err != nil {
			return err
		}
		if len(els) == 0 {
			return driver.Errorf(driver.KindNoSuchFrame, op, "no such frame: %s", frame)
		}
		frameEl = els[0].(element).obj
	} else {
		doc, err := d.document(ctx, op)
		if err != nil {
			return err
		}
		res, err := d.callOn(ctx, op, doc, jsFrameByIndexOrName, false, frame.Index, frame.Name)
		if err != nil {
			return err
		}
		frameEl = res.ObjectID
	}

	// Entering requires an accessible document.
	if _, err := d.callOn(ctx, op, frameEl, jsContentDocument, false); err != nil {
		if driver.KindOf(err) == driver.KindScript {
			return driver.Errorf(driver.KindNoSuchFrame, op, "no such frame: %s: %v", frame, err)
		}
		return err
	}
	d.setFrames(d.current, append(d.frames(d.current), frameEl))
	return nil
}

func (d *Driver) SwitchToDefaultContent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.current == nil {
		return driver.Errorf(driver.KindNoSuchWindow, "switch to default content", "no such window: the current tab was closed")
	}
	d.setFrames(d.current, nil)
	return nil
}

func (d *Driver) SwitchToParentFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.current == nil {
		return driver.Errorf(driver.KindNoSuchWindow, "switch to parent frame", "no such window: the current tab was closed")
	}
	frames := d.frames(d.current)
	if len(frames) > 0 {
		d.setFrames(d.current, frames[:len(frames)-1])
	}
	return nil
}
