// internal/browser/session/readiness.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/scripts"
	"github.com/xkilldash9x/webready/internal/browser/wait"
)

// Readiness selects the stages run after PRESENT.
type Readiness struct {
	Visible bool
	Enabled bool
	Scroll  bool
}

var (
	// FullReadiness yields an interactable element.
	FullReadiness = Readiness{Visible: true, Enabled: true, Scroll: true}
	// PresenceOnly stops after PRESENT, for reads that do not need the
	// element to be visible.
	PresenceOnly = Readiness{}
)

// Pipeline stage names, as reported in driver.Error.Stage.
const (
	StagePresent = "present"
	StageVisible = "visible"
	StageEnabled = "enabled"
	StageInView  = "in_view"
	StageAbsent  = "absent"
)

// Element acquires the first element matching loc through the stages of r.
// The handle is only valid for the caller's next action.
func (s *Session) Element(ctx context.Context, loc schemas.Locator, r Readiness) (driver.Element, error) {
	return s.acquire(ctx, "element", loc, r)
}

// ElementWhenReady acquires an interactable element.
func (s *Session) ElementWhenReady(ctx context.Context, loc schemas.Locator) (driver.Element, error) {
	return s.acquire(ctx, "element", loc, FullReadiness)
}

// ElementWhenPresent acquires an element that is merely attached to the DOM.
func (s *Session) ElementWhenPresent(ctx context.Context, loc schemas.Locator) (driver.Element, error) {
	return s.acquire(ctx, "element", loc, PresenceOnly)
}

func (s *Session) acquire(ctx context.Context, op string, loc schemas.Locator, r Readiness) (driver.Element, error) {
	if err := loc.Validate(); err != nil {
		return nil, &driver.Error{Kind: driver.KindInvalidArgument, Op: op, Locator: loc.String(), Err: err}
	}
	cfg := s.waitCfg
	start := time.Now()
	log := s.logger.With(zap.String("op", op), zap.Stringer("locator", loc))

	el, err := wait.Until(ctx, cfg, func(ctx context.Context) (driver.Element, bool, error) {
		el, err := s.first(ctx, loc)
		return el, err == nil, err
	})
	if err != nil {
		return nil, s.stageError(op, StagePresent, loc, start, err)
	}

	if r.Visible {
		el, err = wait.Until(ctx, cfg, func(ctx context.Context) (driver.Element, bool, error) {
			el, err := s.first(ctx, loc)
			if err != nil {
				return nil, false, err
			}
			ok, err := s.drv.IsDisplayed(ctx, el)
			return el, ok, driver.Classify("is displayed", err)
		})
		if err != nil {
			return nil, s.stageError(op, StageVisible, loc, start, err)
		}
	}

	if r.Enabled {
		el, err = wait.Until(ctx, cfg, func(ctx context.Context) (driver.Element, bool, error) {
			el, err := s.first(ctx, loc)
			if err != nil {
				return nil, false, err
			}
			if r.Visible {
				// Final check: the returned handle must report both states.
				ok, err := s.drv.IsDisplayed(ctx, el)
				if err != nil || !ok {
					return nil, false, driver.Classify("is displayed", err)
				}
			}
			ok, err := s.drv.IsEnabled(ctx, el)
			return el, ok, driver.Classify("is enabled", err)
		})
		if err != nil {
			return nil, s.stageError(op, StageEnabled, loc, start, err)
		}
	}

	if r.Scroll {
		if err := s.scrollIntoView(ctx, el, s.scroll); err != nil {
			if ctx.Err() != nil {
				return nil, s.stageError(op, StageInView, loc, start, err)
			}
			log.Warn("Scroll into view failed; continuing.", zap.Error(err))
		}
	}

	log.Debug("Element ready.", zap.Duration("elapsed", time.Since(start)), zap.String("element", el.ID()))
	return el, nil
}

// first resolves loc to its first matching element, failing with
// KindNoSuchElement when nothing matches.
func (s *Session) first(ctx context.Context, loc schemas.Locator) (driver.Element, error) {
	els, err := s.drv.FindAll(ctx, loc)
	if err != nil {
		return nil, driver.Classify("find", err)
	}
	if len(els) == 0 {
		return nil, &driver.Error{Kind: driver.KindNoSuchElement, Op: "find", Locator: loc.String()}
	}
	return els[0], nil
}

func (s *Session) scrollIntoView(ctx context.Context, el driver.Element, opts schemas.ScrollOptions) error {
	_, err := s.drv.ExecuteScript(ctx, scripts.ScrollIntoView(opts), el)
	return driver.Classify("scroll into view", err)
}

// stageError turns a failed poll into the error reported for the stage:
// a PRESENT timeout is "no such element", later timeouts keep KindTimeout.
// Every typed error is annotated with the locator, stage and elapsed time.
func (s *Session) stageError(op, stage string, loc schemas.Locator, start time.Time, err error) error {
	elapsed := time.Since(start)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if driver.KindOf(err) == driver.KindUnknown {
			return fmt.Errorf("%s %s (stage %s): %w", op, loc, stage, err)
		}
	}

	var de *driver.Error
	if !errors.As(err, &de) {
		return &driver.Error{Kind: driver.KindUnknown, Op: op, Locator: loc.String(), Stage: stage, Elapsed: elapsed, Err: err}
	}
	if de.Kind == driver.KindTimeout {
		if stage == StagePresent {
			return &driver.Error{Kind: driver.KindNoSuchElement, Op: op, Locator: loc.String(), Stage: stage, Elapsed: de.Elapsed, Err: err}
		}
		return &driver.Error{Kind: driver.KindTimeout, Op: op, Locator: loc.String(), Stage: stage, Elapsed: elapsed, Err: de.Err}
	}
	return &driver.Error{Kind: de.Kind, Op: op, Locator: loc.String(), Stage: stage, Elapsed: elapsed, Err: err}
}
