// internal/browser/session/selectbox.go
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/scripts"
	"github.com/xkilldash9x/webready/internal/browser/wait"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// optionMatcher picks options of a <select>.
type optionMatcher struct {
	desc  string
	match func(o scripts.Option) bool
}

// SelectByVisibleText selects the option whose trimmed text equals text.
func (s *Session) SelectByVisibleText(ctx context.Context, loc schemas.Locator, text string) error {
	if loc.IsZero() || text == "" {
		return nil
	}
	want := strings.TrimSpace(text)
	return s.selectOptions(ctx, "select by visible text", loc, optionMatcher{
		desc:  fmt.Sprintf("text %q", want),
		match: func(o scripts.Option) bool { return strings.TrimSpace(o.Text) == want },
	})
}

// SelectByValue selects the option whose value attribute equals value.
func (s *Session) SelectByValue(ctx context.Context, loc schemas.Locator, value string) error {
	if loc.IsZero() || value == "" {
		return nil
	}
	return s.selectOptions(ctx, "select by value", loc, optionMatcher{
		desc:  fmt.Sprintf("value %q", value),
		match: func(o scripts.Option) bool { return o.Value == value },
	})
}

// SelectByIndex selects the option at index, counting from 0.
func (s *Session) SelectByIndex(ctx context.Context, loc schemas.Locator, index int) error {
	if loc.IsZero() || index < 0 {
		return nil
	}
	return s.selectOptions(ctx, "select by index", loc, optionMatcher{
		desc:  "index " + strconv.Itoa(index),
		match: func(o scripts.Option) bool { return o.Index == index },
	})
}

// SelectedOptions returns the options of the <select> matched by loc.
func (s *Session) SelectedOptions(ctx context.Context, loc schemas.Locator) ([]scripts.Option, error) {
	if loc.IsZero() {
		return nil, nil
	}
	start := time.Now()
	el, err := s.acquire(ctx, "selected options", loc, PresenceOnly)
	if err != nil {
		return nil, err
	}
	state, err := s.listOptions(ctx, el)
	if err != nil {
		return nil, s.stageError("selected options", "", loc, start, err)
	}
	var out []scripts.Option
	for _, o := range state.Options {
		if o.Selected {
			out = append(out, o)
		}
	}
	return out, nil
}

type selectTarget struct {
	el      driver.Element
	state   scripts.SelectState
	indexes []int
}

// selectOptions waits, tolerating a soft timeout, for the wanted option to
// exist and then selects it. An option that never shows up is a hard
// KindSelectionNotFound failure.
func (s *Session) selectOptions(ctx context.Context, op string, loc schemas.Locator, m optionMatcher) error {
	start := time.Now()
	if _, err := s.acquire(ctx, op, loc, FullReadiness); err != nil {
		return err
	}

	target, err := wait.Until(ctx, s.waitCfg.Soft(), func(ctx context.Context) (selectTarget, bool, error) {
		el, err := s.first(ctx, loc)
		if err != nil {
			return selectTarget{}, false, err
		}
		state, err := s.listOptions(ctx, el)
		if err != nil {
			return selectTarget{}, false, err
		}
		t := selectTarget{el: el, state: state}
		for _, o := range state.Options {
			if m.match(o) {
				t.indexes = append(t.indexes, o.Index)
				if !state.Multiple {
					break
				}
			}
		}
		return t, len(t.indexes) > 0, nil
	})
	if err != nil {
		return s.stageError(op, "", loc, start, err)
	}
	if len(target.indexes) == 0 {
		return &driver.Error{
			Kind:    driver.KindSelectionNotFound,
			Op:      op,
			Locator: loc.String(),
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("no option with %s among %d options", m.desc, len(target.state.Options)),
		}
	}
	for _, i := range target.indexes {
		if o := target.state.Options[indexOf(target.state.Options, i)]; o.Disabled {
			return &driver.Error{
				Kind:    driver.KindNotInteractable,
				Op:      op,
				Locator: loc.String(),
				Err:     fmt.Errorf("option with %s is disabled", m.desc),
			}
		}
	}

	raw, err := s.drv.ExecuteScript(ctx, scripts.SelectOptions, target.el, target.indexes)
	if err != nil {
		return s.stageError(op, "", loc, start, driver.Classify("select options", err))
	}
	var changed int
	if err := jsonAPI.Unmarshal(raw, &changed); err != nil {
		return s.stageError(op, "", loc, start, driver.Errorf(driver.KindScript, "select options", "decoding result %s: %v", raw, err))
	}
	s.logger.Debug("Options selected.", zap.Stringer("locator", loc), zap.String("option", m.desc), zap.Int("changed", changed))
	return nil
}

// listOptions reads the options of el, failing with KindInvalidArgument
// when el is not a <select>.
func (s *Session) listOptions(ctx context.Context, el driver.Element) (scripts.SelectState, error) {
	raw, err := s.drv.ExecuteScript(ctx, scripts.ListOptions, el)
	if err != nil {
		return scripts.SelectState{}, driver.Classify("list options", err)
	}
	var state *scripts.SelectState
	if err := jsonAPI.Unmarshal(raw, &state); err != nil {
		return scripts.SelectState{}, driver.Errorf(driver.KindScript, "list options", "decoding result: %v", err)
	}
	if state == nil {
		return scripts.SelectState{}, driver.Errorf(driver.KindInvalidArgument, "list options", "element %s is not a <select>", el.ID())
	}
	return *state, nil
}

func indexOf(opts []scripts.Option, index int) int {
	for i, o := range opts {
		if o.Index == index {
			return i
		}
	}
	return 0
}
