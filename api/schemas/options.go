// api/schemas/options.go
package schemas

import "fmt"

// Scroll behaviour and alignment values accepted by Element.scrollIntoView.
const (
	ScrollBehaviorAuto    = "auto"
	ScrollBehaviorSmooth  = "smooth"
	ScrollBehaviorInstant = "instant"

	ScrollAlignStart   = "start"
	ScrollAlignCenter  = "center"
	ScrollAlignEnd     = "end"
	ScrollAlignNearest = "nearest"
)

// ScrollOptions is the behavior/block/inline triple passed to
// Element.scrollIntoView when an element is brought into the viewport.
type ScrollOptions struct {
	Behavior string `json:"behavior" yaml:"behavior" mapstructure:"behavior"`
	Block    string `json:"block" yaml:"block" mapstructure:"block"`
	Inline   string `json:"inline" yaml:"inline" mapstructure:"inline"`
}

// DefaultScrollOptions centers the element without animation.
func DefaultScrollOptions() ScrollOptions {
	return ScrollOptions{
		Behavior: ScrollBehaviorAuto,
		Block:    ScrollAlignCenter,
		Inline:   ScrollAlignCenter,
	}
}

// Validate checks each field against the scrollIntoView grammar.
func (o ScrollOptions) Validate() error {
	switch o.Behavior {
	case ScrollBehaviorAuto, ScrollBehaviorSmooth, ScrollBehaviorInstant:
	default:
		return fmt.Errorf("invalid scroll behavior %q", o.Behavior)
	}
	for name, v := range map[string]string{"block": o.Block, "inline": o.Inline} {
		switch v {
		case ScrollAlignStart, ScrollAlignCenter, ScrollAlignEnd, ScrollAlignNearest:
		default:
			return fmt.Errorf("invalid scroll %s alignment %q", name, v)
		}
	}
	return nil
}

// ClearPolicy decides whether Set clears a text field before typing.
type ClearPolicy int

const (
	// ClearNever appends to whatever the field already holds.
	ClearNever ClearPolicy = iota
	// ClearAlways clears the field before every Set.
	ClearAlways
	// ClearOnce clears before the next Set and then reverts to ClearNever.
	ClearOnce
)

func (p ClearPolicy) String() string {
	switch p {
	case ClearNever:
		return "never"
	case ClearAlways:
		return "always"
	case ClearOnce:
		return "once"
	default:
		return fmt.Sprintf("ClearPolicy(%d)", int(p))
	}
}

// ParseClearPolicy maps the configuration spelling to a ClearPolicy.
func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch s {
	case "", "never":
		return ClearNever, nil
	case "always":
		return ClearAlways, nil
	case "once":
		return ClearOnce, nil
	default:
		return ClearNever, fmt.Errorf("unknown clear policy %q (supported: never, always, once)", s)
	}
}
