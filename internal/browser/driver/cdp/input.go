// internal/browser/driver/cdp/input.go
package cdp

import (
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/webready/internal/browser/driver"
)

// modifierKeys maps the WebDriver modifier codepoints to their CDP flag and
// DOM key description.
var modifierKeys = map[rune]struct {
	flag      input.Modifier
	key, code string
	vk        int64
}{
	[]rune(driver.KeyShift)[0]:   {input.ModifierShift, "Shift", "ShiftLeft", 16},
	[]rune(driver.KeyControl)[0]: {input.ModifierCtrl, "Control", "ControlLeft", 17},
	[]rune(driver.KeyAlt)[0]:     {input.ModifierAlt, "Alt", "AltLeft", 18},
	[]rune(driver.KeyMeta)[0]:    {input.ModifierMeta, "Meta", "MetaLeft", 91},
}

// namedKeys maps the remaining WebDriver key codepoints onto the runes kb
// knows them by.
var namedKeys = map[rune]rune{
	[]rune(driver.KeyBackspace)[0]: '\b',
	[]rune(driver.KeyTab)[0]:       '\t',
	[]rune(driver.KeyEnter)[0]:     '\r',
	[]rune(driver.KeyEscape)[0]:    0x1b,
	[]rune(driver.KeyDelete)[0]:    0x7f,
}

// editingCommands are the editor commands Chrome needs alongside a
// Ctrl/Meta shortcut, since synthesized shortcuts are not bound by default
// on every platform.
var editingCommands = map[string]string{
	"a": "selectAll",
	"c": "copy",
	"v": "paste",
	"x": "cut",
	"z": "undo",
}

var nullKey = []rune(driver.KeyNull)[0]

// keyEvents converts a WebDriver key sequence into CDP key events.
// Modifiers stay held until KeyNull or the end of the sequence.
func keyEvents(keys string) []*input.DispatchKeyEventParams {
	var (
		events []*input.DispatchKeyEventParams
		held   []rune
		mods   input.Modifier
	)
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			m := modifierKeys[held[i]]
			mods &^= m.flag
			events = append(events, &input.DispatchKeyEventParams{
				Type: input.KeyUp, Key: m.key, Code: m.code,
				WindowsVirtualKeyCode: m.vk, NativeVirtualKeyCode: m.vk, Modifiers: mods,
			})
		}
		held = held[:0]
	}

	for _, r := range keys {
		if r == nullKey {
			release()
			continue
		}
		if m, ok := modifierKeys[r]; ok {
			if mods&m.flag == 0 {
				mods |= m.flag
				held = append(held, r)
				events = append(events, &input.DispatchKeyEventParams{
					Type: input.KeyRawDown, Key: m.key, Code: m.code,
					WindowsVirtualKeyCode: m.vk, NativeVirtualKeyCode: m.vk, Modifiers: mods,
				})
			}
			continue
		}
		if named, ok := namedKeys[r]; ok {
			r = named
		}
		shortcut := mods&(input.ModifierCtrl|input.ModifierMeta|input.ModifierAlt) != 0
		for _, ev := range kb.Encode(r) {
			if shortcut && ev.Type == input.KeyChar {
				continue
			}
			ev.Modifiers |= mods
			if shortcut && ev.Type == input.KeyDown {
				ev.Type = input.KeyRawDown
				if cmd, ok := editingCommands[ev.Key]; ok && mods&(input.ModifierCtrl|input.ModifierMeta) != 0 {
					ev.Commands = []string{cmd}
				}
			}
			events = append(events, ev)
		}
	}
	release()
	return events
}
