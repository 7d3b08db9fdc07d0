// internal/browser/scripts/scripts.go
// Package scripts holds the JavaScript bodies the interaction layer injects
// through driver.ScriptExecutor. Every body reads its inputs from
// `arguments`, so it runs unchanged on any driver.
package scripts

import (
	"encoding/json"
	"fmt"

	"github.com/xkilldash9x/webready/api/schemas"
)

// DispatchClick fires a synthetic click on arguments[0].
const DispatchClick = `var evObj = new MouseEvent('click', {bubbles: true, cancelable: true, view: window});arguments[0].dispatchEvent(evObj);`

// DispatchDoubleClick fires a synthetic dblclick on arguments[0].
const DispatchDoubleClick = `var evObj = new MouseEvent('dblclick', {bubbles: true, cancelable: true, view: window});arguments[0].dispatchEvent(evObj);`

// ScrollIntoViewPrefix starts every script produced by ScrollIntoView.
const ScrollIntoViewPrefix = `arguments[0].scrollIntoView(`

// ScrollIntoView scrolls arguments[0] into the viewport with opts.
func ScrollIntoView(opts schemas.ScrollOptions) string {
	return fmt.Sprintf(`%s{behavior: %s, block: %s, inline: %s});`,
		ScrollIntoViewPrefix, quote(opts.Behavior), quote(opts.Block), quote(opts.Inline))
}

// ListOptions returns the options of the <select> in arguments[0] as an
// array of Option.
const ListOptions = `var sel = arguments[0];
if (!sel || !sel.options) { return null; }
return {
  multiple: !!sel.multiple,
  options: Array.prototype.map.call(sel.options, function(o) {
    return {text: o.text, value: o.value, index: o.index, selected: o.selected, disabled: o.disabled};
  })
};`

// SelectOptions selects, in the <select> of arguments[0], the options whose
// indexes are listed in arguments[1], then fires input and change. It
// returns the number of options whose state changed.
const SelectOptions = `var sel = arguments[0], wanted = arguments[1], changed = 0;
for (var i = 0; i < wanted.length; i++) {
  var o = sel.options[wanted[i]];
  if (o && !o.selected) { o.selected = true; changed++; }
}
if (changed > 0) {
  sel.dispatchEvent(new Event('input', {bubbles: true}));
  sel.dispatchEvent(new Event('change', {bubbles: true}));
}
return changed;`

// Option is one entry of a <select> as reported by ListOptions.
type Option struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	Index    int    `json:"index"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
}

// SelectState is the decoded result of ListOptions.
type SelectState struct {
	Multiple bool     `json:"multiple"`
	Options  []Option `json:"options"`
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
