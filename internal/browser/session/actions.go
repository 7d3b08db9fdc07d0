// internal/browser/session/actions.go
package session

import (
	"context"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/scripts"
	"github.com/xkilldash9x/webready/internal/browser/wait"
	"github.com/xkilldash9x/webready/internal/observability"
)

// Actions treat a zero Locator (and an empty value where one is required)
// as "nothing to act on": they return nil without calling the driver.

// clearKeys selects the whole field content and deletes it.
var clearKeys = driver.Chord(driver.KeyControl, "a") + driver.KeyDelete

// Click clicks the interactable element matched by loc. When the browser
// rejects the native click as not interactable (covered, zero sized), a
// synthetic click event is dispatched once on a freshly resolved element.
func (s *Session) Click(ctx context.Context, loc schemas.Locator) error {
	if loc.IsZero() {
		return nil
	}
	el, err := s.acquire(ctx, "click", loc, FullReadiness)
	if err != nil {
		return err
	}
	return s.clickWithFallback(ctx, "click", loc, el)
}

func (s *Session) clickWithFallback(ctx context.Context, op string, loc schemas.Locator, el driver.Element) error {
	start := time.Now()
	err := driver.Classify("click", s.drv.Click(ctx, el))
	if err == nil {
		return nil
	}
	if driver.KindOf(err) != driver.KindNotInteractable {
		return s.stageError(op, "", loc, start, err)
	}

	s.logger.Info("Native click rejected; dispatching synthetic click.",
		zap.Stringer("locator", loc), zap.Error(err))
	if ferr := s.syntheticClick(ctx, loc); ferr != nil {
		observability.RecordClickFallback(false)
		return &driver.Error{
			Kind:    driver.KindNotInteractable,
			Op:      op,
			Locator: loc.String(),
			Elapsed: time.Since(start),
			Err:     ferr,
		}
	}
	observability.RecordClickFallback(true)
	return nil
}

// syntheticClick re-resolves loc without the readiness pipeline and fires
// a click event on it.
func (s *Session) syntheticClick(ctx context.Context, loc schemas.Locator) error {
	el, err := s.first(ctx, loc)
	if err != nil {
		return err
	}
	_, err = s.drv.ExecuteScript(ctx, scripts.DispatchClick, el)
	return driver.Classify("dispatch click", err)
}

// DoubleClick dispatches a synthetic dblclick on the interactable element.
func (s *Session) DoubleClick(ctx context.Context, loc schemas.Locator) error {
	if loc.IsZero() {
		return nil
	}
	start := time.Now()
	el, err := s.acquire(ctx, "double click", loc, FullReadiness)
	if err != nil {
		return err
	}
	if _, err := s.drv.ExecuteScript(ctx, scripts.DispatchDoubleClick, el); err != nil {
		return s.stageError("double click", "", loc, start, driver.Classify("dispatch dblclick", err))
	}
	return nil
}

// Clear empties a text field: select all, delete, then a native clear.
func (s *Session) Clear(ctx context.Context, loc schemas.Locator) error {
	if loc.IsZero() {
		return nil
	}
	start := time.Now()
	el, err := s.acquire(ctx, "clear", loc, FullReadiness)
	if err != nil {
		return err
	}
	if err := s.drv.SendKeys(ctx, el, clearKeys); err != nil {
		return s.stageError("clear", "", loc, start, driver.Classify("send keys", err))
	}
	if err := s.drv.Clear(ctx, el); err != nil {
		return s.stageError("clear", "", loc, start, driver.Classify("clear", err))
	}
	return nil
}

// Set types text into the element. With no text (or only empty strings) it
// is Clear. The clear policy decides whether existing content is cleared
// first; otherwise the text is appended.
func (s *Session) Set(ctx context.Context, loc schemas.Locator, text ...string) error {
	if loc.IsZero() {
		return nil
	}
	keys := strings.Join(text, "")
	if keys == "" {
		return s.Clear(ctx, loc)
	}

	clearFirst := s.clear != schemas.ClearNever
	if s.clear == schemas.ClearOnce {
		s.clear = schemas.ClearNever
	}
	if clearFirst {
		if err := s.Clear(ctx, loc); err != nil {
			return err
		}
	}

	start := time.Now()
	el, err := s.acquire(ctx, "set", loc, FullReadiness)
	if err != nil {
		return err
	}
	if err := s.drv.SendKeys(ctx, el, keys); err != nil {
		return s.stageError("set", "", loc, start, driver.Classify("send keys", err))
	}
	return nil
}

// Select brings a checkbox or radio button to the wanted selected state,
// clicking only when the current state differs.
func (s *Session) Select(ctx context.Context, loc schemas.Locator, selected bool) error {
	if loc.IsZero() {
		return nil
	}
	start := time.Now()
	el, err := s.acquire(ctx, "select", loc, FullReadiness)
	if err != nil {
		return err
	}
	current, err := s.drv.IsSelected(ctx, el)
	if err != nil {
		return s.stageError("select", "", loc, start, driver.Classify("is selected", err))
	}
	if current == selected {
		return nil
	}
	return s.clickWithFallback(ctx, "select", loc, el)
}

// Upload sends a file path to a file input. A leading ~ is expanded; the
// file is not checked for existence. File inputs are often styled away, so
// only presence and enablement are required.
func (s *Session) Upload(ctx context.Context, loc schemas.Locator, path string) error {
	if loc.IsZero() || path == "" {
		return nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return &driver.Error{Kind: driver.KindInvalidArgument, Op: "upload", Locator: loc.String(), Err: err}
	}
	start := time.Now()
	el, err := s.acquire(ctx, "upload", loc, Readiness{Enabled: true})
	if err != nil {
		return err
	}
	if err := s.drv.SendKeys(ctx, el, expanded); err != nil {
		return s.stageError("upload", "", loc, start, driver.Classify("send keys", err))
	}
	return nil
}

// GetText returns the rendered text of the element. Only presence is
// required.
func (s *Session) GetText(ctx context.Context, loc schemas.Locator) (string, error) {
	if loc.IsZero() {
		return "", nil
	}
	start := time.Now()
	el, err := s.acquire(ctx, "get text", loc, PresenceOnly)
	if err != nil {
		return "", err
	}
	text, err := s.drv.Text(ctx, el)
	if err != nil {
		return "", s.stageError("get text", "", loc, start, driver.Classify("text", err))
	}
	return text, nil
}

// GetAttribute returns an attribute (or property) of the element. Only
// presence is required.
func (s *Session) GetAttribute(ctx context.Context, loc schemas.Locator, name string) (string, error) {
	if loc.IsZero() || name == "" {
		return "", nil
	}
	start := time.Now()
	el, err := s.acquire(ctx, "get attribute", loc, PresenceOnly)
	if err != nil {
		return "", err
	}
	v, err := s.drv.Attribute(ctx, el, name)
	if err != nil {
		return "", s.stageError("get attribute", "", loc, start, driver.Classify("attribute", err))
	}
	return v, nil
}

// Count returns how many elements match loc right now, without waiting.
func (s *Session) Count(ctx context.Context, loc schemas.Locator) (int, error) {
	if loc.IsZero() {
		return 0, nil
	}
	els, err := s.drv.FindAll(ctx, loc)
	if err != nil {
		return 0, driver.Classify("count", err)
	}
	return len(els), nil
}

// IsPresent reports whether loc matches at least one element right now.
func (s *Session) IsPresent(ctx context.Context, loc schemas.Locator) (bool, error) {
	n, err := s.Count(ctx, loc)
	return n > 0, err
}

// IsAbsent reports whether loc matches nothing right now.
func (s *Session) IsAbsent(ctx context.Context, loc schemas.Locator) (bool, error) {
	n, err := s.Count(ctx, loc)
	return n == 0, err
}

// WaitToBePresent waits until loc matches an element, failing with
// KindNoSuchElement on timeout.
func (s *Session) WaitToBePresent(ctx context.Context, loc schemas.Locator) error {
	if loc.IsZero() {
		return nil
	}
	_, err := s.acquire(ctx, "wait to be present", loc, PresenceOnly)
	return err
}

// WaitToBePresentSoft waits like WaitToBePresent but answers false instead
// of failing on timeout.
func (s *Session) WaitToBePresentSoft(ctx context.Context, loc schemas.Locator) (bool, error) {
	if loc.IsZero() {
		return false, nil
	}
	return s.waitPresence(ctx, "wait to be present", loc, true, s.waitCfg.Soft())
}

// WaitToBeAbsent waits until loc matches nothing, failing with KindTimeout
// (stage "absent") on timeout.
func (s *Session) WaitToBeAbsent(ctx context.Context, loc schemas.Locator) error {
	if loc.IsZero() {
		return nil
	}
	_, err := s.waitPresence(ctx, "wait to be absent", loc, false, s.waitCfg)
	return err
}

// WaitToBeAbsentSoft waits like WaitToBeAbsent but answers false instead of
// failing on timeout.
func (s *Session) WaitToBeAbsentSoft(ctx context.Context, loc schemas.Locator) (bool, error) {
	if loc.IsZero() {
		return true, nil
	}
	return s.waitPresence(ctx, "wait to be absent", loc, false, s.waitCfg.Soft())
}

// waitPresence polls until the presence of loc equals want and returns
// whether it did.
func (s *Session) waitPresence(ctx context.Context, op string, loc schemas.Locator, want bool, cfg wait.Config) (bool, error) {
	start := time.Now()
	ok, err := wait.True(ctx, cfg, func(ctx context.Context) (bool, error) {
		n, err := s.Count(ctx, loc)
		return (n > 0) == want, err
	})
	if err != nil {
		stage := StagePresent
		if !want {
			stage = StageAbsent
		}
		return false, s.stageError(op, stage, loc, start, err)
	}
	return ok, nil
}
