// api/schemas/locator.go
package schemas

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy names the way a Locator's Value is interpreted when the browser
// is queried.
type Strategy string

const (
	ByCSS             Strategy = "css"
	ByID              Strategy = "id"
	ByName            Strategy = "name"
	ByXPath           Strategy = "xpath"
	ByClassName       Strategy = "class"
	ByTagName         Strategy = "tag"
	ByLinkText        Strategy = "link"
	ByPartialLinkText Strategy = "partial_link"
)

// W3C WebDriver location strategies.
const (
	W3CCSSSelector     = "css selector"
	W3CLinkText        = "link text"
	W3CPartialLinkText = "partial link text"
	W3CTagName         = "tag name"
	W3CXPath           = "xpath"
)

// Locator is an immutable query descriptor used to find zero or more
// elements in the current browsing context. It is only ever used to
// re-query; element handles are never cached against it.
//
// The zero Locator is "absent": actions given an absent locator do nothing.
type Locator struct {
	By    Strategy `json:"by" yaml:"by" mapstructure:"by"`
	Value string   `json:"value" yaml:"value" mapstructure:"value"`
}

// CSS, ID, Name, XPath, ClassName, TagName, LinkText and PartialLinkText
// build locators for the corresponding strategy.
func CSS(selector string) Locator         { return Locator{By: ByCSS, Value: selector} }
func ID(id string) Locator                { return Locator{By: ByID, Value: id} }
func Name(name string) Locator            { return Locator{By: ByName, Value: name} }
func XPath(expr string) Locator           { return Locator{By: ByXPath, Value: expr} }
func ClassName(class string) Locator      { return Locator{By: ByClassName, Value: class} }
func TagName(tag string) Locator          { return Locator{By: ByTagName, Value: tag} }
func LinkText(text string) Locator        { return Locator{By: ByLinkText, Value: text} }
func PartialLinkText(text string) Locator { return Locator{By: ByPartialLinkText, Value: text} }

// IsZero reports whether the locator is absent.
func (l Locator) IsZero() bool {
	return l.By == "" || l.Value == ""
}

// String renders the locator in the same "by=value" form ParseLocator accepts.
func (l Locator) String() string {
	if l.IsZero() {
		return "<absent>"
	}
	return string(l.By) + "=" + l.Value
}

// Validate checks that the strategy is known.
func (l Locator) Validate() error {
	switch l.By {
	case ByCSS, ByID, ByName, ByXPath, ByClassName, ByTagName, ByLinkText, ByPartialLinkText:
		return nil
	default:
		return fmt.Errorf("unknown locator strategy %q", l.By)
	}
}

// ParseLocator parses the "by=value" short form, e.g. "css=#login" or
// "xpath=//button[@type='submit']". A string without a known prefix is
// treated as a CSS selector.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}
	if idx := strings.Index(s, "="); idx > 0 {
		by := Strategy(strings.ToLower(strings.TrimSpace(s[:idx])))
		loc := Locator{By: by, Value: s[idx+1:]}
		if loc.Validate() == nil {
			if loc.Value == "" {
				return Locator{}, fmt.Errorf("locator %q has an empty value", s)
			}
			return loc, nil
		}
	}
	return CSS(s), nil
}

// CSSSelector returns an equivalent CSS selector for strategies that have
// one. ok is false for XPath and link-text strategies.
func (l Locator) CSSSelector() (sel string, ok bool) {
	switch l.By {
	case ByCSS:
		return l.Value, true
	case ByID:
		return fmt.Sprintf(`[id=%s]`, cssString(l.Value)), true
	case ByName:
		return fmt.Sprintf(`[name=%s]`, cssString(l.Value)), true
	case ByClassName:
		return "." + cssIdent(l.Value), true
	case ByTagName:
		return l.Value, true
	default:
		return "", false
	}
}

// XPathExpr returns an XPath expression equivalent to the locator.
func (l Locator) XPathExpr() string {
	switch l.By {
	case ByXPath:
		return l.Value
	case ByID:
		return fmt.Sprintf(`//*[@id=%s]`, xpathLiteral(l.Value))
	case ByName:
		return fmt.Sprintf(`//*[@name=%s]`, xpathLiteral(l.Value))
	case ByClassName:
		return fmt.Sprintf(`//*[contains(concat(' ', normalize-space(@class), ' '), %s)]`, xpathLiteral(" "+l.Value+" "))
	case ByTagName:
		return "//" + l.Value
	case ByLinkText:
		return fmt.Sprintf(`//a[normalize-space(.)=%s]`, xpathLiteral(strings.TrimSpace(l.Value)))
	case ByPartialLinkText:
		return fmt.Sprintf(`//a[contains(., %s)]`, xpathLiteral(l.Value))
	default:
		// CSS has no general XPath form; callers check CSSSelector first.
		return ""
	}
}

// W3C translates the locator into a W3C WebDriver (using, value) pair.
// id, name and class are expressed as CSS since the W3C protocol dropped
// those strategies.
func (l Locator) W3C() (using, value string) {
	switch l.By {
	case ByXPath:
		return W3CXPath, l.Value
	case ByLinkText:
		return W3CLinkText, l.Value
	case ByPartialLinkText:
		return W3CPartialLinkText, l.Value
	case ByTagName:
		return W3CTagName, l.Value
	default:
		sel, _ := l.CSSSelector()
		return W3CCSSSelector, sel
	}
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

func cssIdent(s string) string {
	var b strings.Builder
	for i, c := range s {
		switch {
		case c == '-' || c == '_' || c >= 0x80,
			c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				fmt.Fprintf(&b, `\3%c `, c)
			} else {
				b.WriteRune(c)
			}
		default:
			b.WriteByte('\\')
			b.WriteRune(c)
		}
	}
	return b.String()
}

// xpathLiteral quotes s as an XPath 1.0 string literal, falling back to
// concat() when s contains both quote characters.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, `'`+p+`'`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// UnmarshalYAML accepts either the "by=value" short form or a mapping with
// by and value keys.
func (l *Locator) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		loc, err := ParseLocator(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*l = loc
		return nil
	}
	var raw struct {
		By    Strategy `yaml:"by"`
		Value string   `yaml:"value"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	loc := Locator{By: Strategy(strings.ToLower(string(raw.By))), Value: raw.Value}
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*l = loc
	return nil
}
