// internal/browser/session/browser.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/wait"
)

// Navigate loads url in the current window.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating session.", zap.String("url", url))
	if err := s.drv.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, driver.Classify("navigate", err))
	}
	return nil
}

// CurrentURL returns the URL of the current window.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	u, err := s.drv.CurrentURL(ctx)
	return u, driver.Classify("current url", err)
}

// SwitchToTab waits until at least index+1 windows exist and switches to
// the index-th, counting from 0 in the driver's handle order.
func (s *Session) SwitchToTab(ctx context.Context, index int) error {
	if index < 0 {
		return nil
	}
	start := time.Now()
	handles, err := wait.Until(ctx, s.waitCfg, func(ctx context.Context) ([]string, bool, error) {
		hs, err := s.drv.WindowHandles(ctx)
		return hs, err == nil && index < len(hs), driver.Classify("window handles", err)
	})
	if err != nil {
		return s.browserError("switch to tab", start, err)
	}
	s.logger.Debug("Switching tab.", zap.Int("index", index), zap.String("handle", handles[index]))
	if err := s.drv.SwitchToWindow(ctx, handles[index]); err != nil {
		return s.browserError("switch to tab", start, driver.Classify("switch to window", err))
	}
	return nil
}

// SwitchToFirstTab switches to the first window.
func (s *Session) SwitchToFirstTab(ctx context.Context) error { return s.SwitchToTab(ctx, 0) }

// CloseTab closes the current window. Switch to another tab before acting
// again.
func (s *Session) CloseTab(ctx context.Context) error {
	return driver.Classify("close", s.drv.Close(ctx))
}

// Quit ends the browser session.
func (s *Session) Quit(ctx context.Context) error {
	s.logger.Info("Quitting session.")
	return driver.Classify("quit", s.drv.Quit(ctx))
}

// SwitchToFrame waits for the frame to be available and switches into it.
func (s *Session) SwitchToFrame(ctx context.Context, frame driver.Frame) error {
	if frame.Locator.IsZero() && frame.Name == "" && frame.Index < 0 {
		return nil
	}
	start := time.Now()
	_, err := wait.True(ctx, s.waitCfg.Ignoring(driver.KindNoSuchFrame), func(ctx context.Context) (bool, error) {
		if err := s.drv.SwitchToFrame(ctx, frame); err != nil {
			return false, driver.Classify("switch to frame", err)
		}
		return true, nil
	})
	if err != nil {
		return s.browserError("switch to "+frame.String(), start, err)
	}
	return nil
}

// SwitchToDefaultContent leaves all frames.
func (s *Session) SwitchToDefaultContent(ctx context.Context) error {
	return driver.Classify("switch to default content", s.drv.SwitchToDefaultContent(ctx))
}

// SwitchToParentFrame leaves the current frame.
func (s *Session) SwitchToParentFrame(ctx context.Context) error {
	return driver.Classify("switch to parent frame", s.drv.SwitchToParentFrame(ctx))
}

// Alert waits for a user prompt to open and returns it.
func (s *Session) Alert(ctx context.Context) (driver.Alert, error) {
	start := time.Now()
	a, err := wait.Until(ctx, s.waitCfg.Ignoring(driver.KindNoSuchAlert), func(ctx context.Context) (driver.Alert, bool, error) {
		a, err := s.drv.Alert(ctx)
		if err != nil {
			return nil, false, driver.Classify("alert", err)
		}
		return a, true, nil
	})
	if err != nil {
		return nil, s.browserError("alert", start, err)
	}
	return a, nil
}

// ExecuteScript runs script in the current browsing context.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	raw, err := s.drv.ExecuteScript(ctx, script, args...)
	return raw, driver.Classify("execute script", err)
}

// ScrollIntoView scrolls el into the viewport with opts. Empty option
// fields fall back to the session's scroll options.
func (s *Session) ScrollIntoView(ctx context.Context, el driver.Element, opts schemas.ScrollOptions) error {
	if el == nil {
		return nil
	}
	if opts.Behavior == "" {
		opts.Behavior = s.scroll.Behavior
	}
	if opts.Block == "" {
		opts.Block = s.scroll.Block
	}
	if opts.Inline == "" {
		opts.Inline = s.scroll.Inline
	}
	if err := opts.Validate(); err != nil {
		return &driver.Error{Kind: driver.KindInvalidArgument, Op: "scroll into view", Err: err}
	}
	return s.scrollIntoView(ctx, el, opts)
}

// browserError annotates a failed browser-level poll with the elapsed time.
func (s *Session) browserError(op string, start time.Time, err error) error {
	if de, ok := err.(*driver.Error); ok {
		cp := *de
		cp.Op = op
		if cp.Elapsed == 0 {
			cp.Elapsed = time.Since(start)
		}
		return &cp
	}
	return fmt.Errorf("%s: %w", op, err)
}
