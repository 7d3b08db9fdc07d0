// internal/browser/driver/keys.go
package driver

import "strings"

// WebDriver key codepoints (W3C WebDriver, section "Keyboard actions").
// Drivers that do not speak WebDriver translate these themselves.
const (
	KeyNull      = "\ue000"
	KeyBackspace = "\ue003"
	KeyTab       = "\ue004"
	KeyEnter     = "\ue007"
	KeyShift     = "\ue008"
	KeyControl   = "\ue009"
	KeyAlt       = "\ue00a"
	KeyEscape    = "\ue00c"
	KeyDelete    = "\ue017"
	KeyMeta      = "\ue03d"
)

// Chord presses keys together: modifiers stay held until the trailing
// KeyNull releases them.
func Chord(keys ...string) string {
	return strings.Join(keys, "") + KeyNull
}

// IsModifier reports whether key is a modifier codepoint.
func IsModifier(key string) bool {
	switch key {
	case KeyShift, KeyControl, KeyAlt, KeyMeta:
		return true
	}
	return false
}
