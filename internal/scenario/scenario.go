// internal/scenario/scenario.go
// Package scenario reads declarative browser scenarios from YAML and runs
// them step by step against a session.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/webready/api/schemas"
)

// Action names a step kind.
type Action string

const (
	ActionNavigate        Action = "navigate"
	ActionClick           Action = "click"
	ActionDoubleClick     Action = "double_click"
	ActionSet             Action = "set"
	ActionClear           Action = "clear"
	ActionSelect          Action = "select"
	ActionSelectText      Action = "select_text"
	ActionSelectValue     Action = "select_value"
	ActionSelectIndex     Action = "select_index"
	ActionUpload          Action = "upload"
	ActionWaitPresent     Action = "wait_present"
	ActionWaitAbsent      Action = "wait_absent"
	ActionExpectText      Action = "expect_text"
	ActionExpectAttribute Action = "expect_attribute"
	ActionSwitchTab       Action = "switch_tab"
	ActionCloseTab        Action = "close_tab"
	ActionSwitchFrame     Action = "switch_frame"
	ActionDefaultContent  Action = "default_content"
	ActionParentFrame     Action = "parent_frame"
	ActionAcceptAlert     Action = "accept_alert"
	ActionDismissAlert    Action = "dismiss_alert"
	ActionScrollOptions   Action = "scroll_options"
	ActionClearPolicy     Action = "clear_policy"
	ActionExecute         Action = "execute"
)

// Scenario is one YAML document: an optional start URL and its steps.
type Scenario struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url,omitempty"`
	Steps []Step `yaml:"steps"`

	// Source is the file the scenario was read from, if any.
	Source string `yaml:"-"`
}

// Step is one action and its arguments. Which fields apply depends on
// Action.
type Step struct {
	Action  Action          `yaml:"action"`
	Locator schemas.Locator `yaml:"locator,omitempty"`

	Text     Texts    `yaml:"text,omitempty"`
	Value    string   `yaml:"value,omitempty"`
	Index    *int     `yaml:"index,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	Path     string   `yaml:"path,omitempty"`
	URL      string   `yaml:"url,omitempty"`
	Selected *bool    `yaml:"selected,omitempty"`
	Expect   string   `yaml:"expect,omitempty"`
	Policy   string   `yaml:"policy,omitempty"`

	Script string        `yaml:"script,omitempty"`
	Args   []interface{} `yaml:"args,omitempty"`

	Scroll *schemas.ScrollOptions `yaml:"scroll,omitempty"`

	// Soft waits report instead of failing when the timeout elapses.
	Soft bool `yaml:"soft,omitempty"`
	// Timeout overrides the session's wait timeout for this step.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Texts is one or more strings; YAML may give a single scalar.
type Texts []string

func (t *Texts) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = Texts{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*t = list
	return nil
}

// Parse reads one or more scenarios from r. Documents are separated by
// "---". Unknown fields are rejected.
func Parse(r io.Reader) ([]*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []*Scenario
	for {
		var sc Scenario
		err := dec.Decode(&sc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse scenario %d: %w", len(out)+1, err)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid scenario %q: %w", sc.Name, err)
		}
		out = append(out, &sc)
	}
	if len(out) == 0 {
		return nil, errors.New("no scenario found")
	}
	return out, nil
}

// ParseFile reads the scenarios in path.
func ParseFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scs, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, sc := range scs {
		sc.Source = path
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("%s#%d", path, i+1)
		}
	}
	return scs, nil
}

// Validate checks that every step names a known action and carries the
// arguments that action needs.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 && sc.URL == "" {
		return errors.New("scenario has no url and no steps")
	}
	for i, st := range sc.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
		}
	}
	return nil
}

// Validate checks the step's arguments against its action.
func (st Step) Validate() error {
	needLocator := func() error {
		if st.Locator.IsZero() {
			return errors.New("locator is required")
		}
		return nil
	}
	switch st.Action {
	case ActionNavigate:
		if st.URL == "" {
			return errors.New("url is required")
		}
	case ActionClick, ActionDoubleClick, ActionClear, ActionSet, ActionSelectValue,
		ActionWaitPresent, ActionWaitAbsent, ActionExpectText:
		return needLocator()
	case ActionSelect:
		if st.Selected == nil {
			return errors.New("selected is required")
		}
		return needLocator()
	case ActionSelectText:
		if len(st.Text) != 1 {
			return errors.New("exactly one text is required")
		}
		return needLocator()
	case ActionSelectIndex:
		if st.Index == nil {
			return errors.New("index is required")
		}
		return needLocator()
	case ActionUpload:
		if st.Path == "" {
			return errors.New("path is required")
		}
		return needLocator()
	case ActionExpectAttribute:
		if st.Name == "" {
			return errors.New("name is required")
		}
		return needLocator()
	case ActionSwitchTab:
		if st.Index == nil {
			return errors.New("index is required")
		}
	case ActionSwitchFrame:
		if st.Locator.IsZero() && st.Name == "" && st.Index == nil {
			return errors.New("one of locator, name or index is required")
		}
	case ActionCloseTab, ActionDefaultContent, ActionParentFrame, ActionAcceptAlert, ActionDismissAlert:
	case ActionScrollOptions:
		if st.Scroll == nil {
			return errors.New("scroll is required")
		}
	case ActionClearPolicy:
		if _, err := schemas.ParseClearPolicy(st.Policy); err != nil {
			return err
		}
	case ActionExecute:
		if st.Script == "" {
			return errors.New("script is required")
		}
	case "":
		return errors.New("action is required")
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}
