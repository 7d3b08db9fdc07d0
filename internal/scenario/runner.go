// internal/scenario/runner.go
package scenario

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/session"
	"github.com/xkilldash9x/webready/internal/browser/wait"
	"github.com/xkilldash9x/webready/internal/observability"
)

// StepError reports the step that stopped a scenario. Index is 1-based.
type StepError struct {
	Index  int
	Action Action
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result summarises a finished scenario.
type Result struct {
	Name    string
	Source  string
	Steps   int
	Elapsed time.Duration
	// SoftTimeouts counts soft waits whose condition never held.
	SoftTimeouts int
}

// Runner executes scenarios against one session, one at a time.
type Runner struct {
	session *session.Session
	logger  *zap.Logger
}

func NewRunner(s *session.Session, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{session: s, logger: logger.Named("scenario")}
}

// Run navigates to sc.URL when set and then executes the steps in order.
// The first failing step stops the scenario; its error is a *StepError.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	start := time.Now()
	res := &Result{Name: sc.Name, Source: sc.Source}
	logger := r.logger.With(zap.String("scenario", sc.Name), zap.String("session_id", r.session.ID()))
	logger.Info("Running scenario.", zap.Int("steps", len(sc.Steps)))

	if sc.URL != "" {
		if err := r.session.Navigate(ctx, sc.URL); err != nil {
			res.Elapsed = time.Since(start)
			return res, &StepError{Index: 0, Action: ActionNavigate, Err: err}
		}
	}

	for i, st := range sc.Steps {
		stepStart := time.Now()
		soft, err := r.step(ctx, st)
		observability.RecordScenarioStep(string(st.Action), err == nil)
		if err != nil {
			res.Elapsed = time.Since(start)
			logger.Warn("Step failed.", zap.Int("step", i+1), zap.String("action", string(st.Action)), zap.Error(err))
			return res, &StepError{Index: i + 1, Action: st.Action, Err: err}
		}
		if soft {
			res.SoftTimeouts++
			logger.Info("Soft wait timed out.", zap.Int("step", i+1), zap.String("locator", st.Locator.String()))
		}
		res.Steps++
		logger.Debug("Step done.", zap.Int("step", i+1), zap.String("action", string(st.Action)),
			zap.Duration("elapsed", time.Since(stepStart)))
	}

	res.Elapsed = time.Since(start)
	logger.Info("Scenario passed.", zap.Duration("elapsed", res.Elapsed), zap.Int("soft_timeouts", res.SoftTimeouts))
	return res, nil
}

// step executes one step. softMiss is set when a soft wait gave up.
func (r *Runner) step(ctx context.Context, st Step) (softMiss bool, err error) {
	s := r.session
	if st.Timeout > 0 {
		saved := s.WaitConfig()
		s.SetTimeout(st.Timeout)
		defer s.SetWaitConfig(saved)
	}

	switch st.Action {
	case ActionNavigate:
		return false, s.Navigate(ctx, st.URL)
	case ActionClick:
		return false, s.Click(ctx, st.Locator)
	case ActionDoubleClick:
		return false, s.DoubleClick(ctx, st.Locator)
	case ActionSet:
		return false, s.Set(ctx, st.Locator, st.Text...)
	case ActionClear:
		return false, s.Clear(ctx, st.Locator)
	case ActionSelect:
		return false, s.Select(ctx, st.Locator, *st.Selected)
	case ActionSelectText:
		return false, s.SelectByVisibleText(ctx, st.Locator, st.Text[0])
	case ActionSelectValue:
		return false, s.SelectByValue(ctx, st.Locator, st.Value)
	case ActionSelectIndex:
		return false, s.SelectByIndex(ctx, st.Locator, *st.Index)
	case ActionUpload:
		return false, s.Upload(ctx, st.Locator, st.Path)

	case ActionWaitPresent:
		if st.Soft {
			ok, err := s.WaitToBePresentSoft(ctx, st.Locator)
			return err == nil && !ok, err
		}
		return false, s.WaitToBePresent(ctx, st.Locator)
	case ActionWaitAbsent:
		if st.Soft {
			ok, err := s.WaitToBeAbsentSoft(ctx, st.Locator)
			return err == nil && !ok, err
		}
		return false, s.WaitToBeAbsent(ctx, st.Locator)

	case ActionExpectText:
		return false, r.expect(ctx, st, "text", func(ctx context.Context) (string, error) {
			return s.GetText(ctx, st.Locator)
		})
	case ActionExpectAttribute:
		return false, r.expect(ctx, st, "attribute "+st.Name, func(ctx context.Context) (string, error) {
			return s.GetAttribute(ctx, st.Locator, st.Name)
		})

	case ActionSwitchTab:
		return false, s.SwitchToTab(ctx, *st.Index)
	case ActionCloseTab:
		return false, s.CloseTab(ctx)
	case ActionSwitchFrame:
		return false, s.SwitchToFrame(ctx, frameOf(st))
	case ActionDefaultContent:
		return false, s.SwitchToDefaultContent(ctx)
	case ActionParentFrame:
		return false, s.SwitchToParentFrame(ctx)

	case ActionAcceptAlert, ActionDismissAlert:
		return false, r.handleAlert(ctx, st)

	case ActionScrollOptions:
		return false, s.SetScrollOptions(*st.Scroll)
	case ActionClearPolicy:
		p, err := schemas.ParseClearPolicy(st.Policy)
		if err != nil {
			return false, err
		}
		s.UseClearPolicy(p)
		return false, nil

	case ActionExecute:
		raw, err := s.ExecuteScript(ctx, st.Script, st.Args...)
		if err != nil {
			return false, err
		}
		r.logger.Debug("Script returned.", zap.ByteString("result", raw))
		return false, nil
	}
	return false, fmt.Errorf("unknown action %q", st.Action)
}

// expect polls read until it returns st.Expect. The session's wait config
// bounds the poll; a mismatch after the timeout fails with the last value.
func (r *Runner) expect(ctx context.Context, st Step, what string, read func(context.Context) (string, error)) error {
	start := time.Now()
	cfg := r.session.WaitConfig().Soft()
	got, err := wait.Until(ctx, cfg, func(ctx context.Context) (string, bool, error) {
		v, err := read(ctx)
		return v, err == nil && v == st.Expect, err
	})
	if err != nil {
		return err
	}
	if got != st.Expect {
		return &driver.Error{
			Kind:    driver.KindTimeout,
			Op:      "expect " + what,
			Locator: st.Locator.String(),
			Stage:   "expectation",
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("want %q, got %q", st.Expect, got),
		}
	}
	return nil
}

// handleAlert waits for the prompt, types the step's text into it when
// given, and accepts or dismisses it.
func (r *Runner) handleAlert(ctx context.Context, st Step) error {
	a, err := r.session.Alert(ctx)
	if err != nil {
		return err
	}
	if st.Expect != "" {
		msg, err := a.Text(ctx)
		if err != nil {
			return err
		}
		if msg != st.Expect {
			return fmt.Errorf("alert text: want %q, got %q", st.Expect, msg)
		}
	}
	if st.Action == ActionDismissAlert {
		return a.Dismiss(ctx)
	}
	if len(st.Text) > 0 {
		if err := a.SendKeys(ctx, st.Text[0]); err != nil {
			return err
		}
	}
	return a.Accept(ctx)
}

func frameOf(st Step) driver.Frame {
	switch {
	case !st.Locator.IsZero():
		return driver.FrameByLocator(st.Locator)
	case st.Name != "":
		return driver.FrameByName(st.Name)
	default:
		return driver.FrameByIndex(*st.Index)
	}
}
