// internal/browser/session/session.go
// Package session turns a driver.Driver into a test-author facing API.
// Every action first acquires its element through the readiness pipeline
// (present, visible, enabled, scrolled into view), re-resolving the locator
// at each stage, then performs the action with targeted fallbacks.
//
// A Session holds all mutable per-session state (poll configuration, scroll
// options, clear policy). It does no locking: like the Driver it wraps, it is
// driven from one goroutine. Independent sessions share nothing and may run
// in parallel.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/wait"
	"github.com/xkilldash9x/webready/internal/config"
)

// Session is one browsing session.
type Session struct {
	id     string
	drv    driver.Driver
	logger *zap.Logger

	waitCfg wait.Config
	scroll  schemas.ScrollOptions
	clear   schemas.ClearPolicy
}

// NewSession wraps drv. A nil cfg selects the built-in defaults; a nil
// logger discards logs.
func NewSession(drv driver.Driver, cfg config.Interface, logger *zap.Logger) (*Session, error) {
	if drv == nil {
		return nil, fmt.Errorf("session requires a driver")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New().String()
	s := &Session{
		id:      id,
		drv:     drv,
		logger:  logger.Named("session").With(zap.String("session_id", id)),
		waitCfg: wait.DefaultConfig(),
		scroll:  schemas.DefaultScrollOptions(),
		clear:   schemas.ClearNever,
	}

	if cfg != nil {
		w := cfg.Wait()
		s.waitCfg = s.waitCfg.WithInterval(w.Interval).WithTimeout(w.Timeout)
		if err := s.SetScrollOptions(cfg.Scroll()); err != nil {
			return nil, err
		}
		policy, err := schemas.ParseClearPolicy(cfg.Input().ClearPolicy)
		if err != nil {
			return nil, err
		}
		s.clear = policy
	}

	s.logger.Debug("Session created.", zap.Stringer("wait", s.waitCfg))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Driver exposes the underlying driver for operations the session does not wrap.
func (s *Session) Driver() driver.Driver { return s.drv }

// WaitConfig returns the poll configuration used by every readiness stage.
func (s *Session) WaitConfig() wait.Config { return s.waitCfg }

// SetWaitConfig replaces the poll configuration. Polls already running
// keep the configuration they started with.
func (s *Session) SetWaitConfig(cfg wait.Config) { s.waitCfg = cfg }

// SetTimeout changes only the poll timeout.
func (s *Session) SetTimeout(d time.Duration) { s.waitCfg = s.waitCfg.WithTimeout(d) }

// ScrollOptions returns the options used by the IN_VIEW stage.
func (s *Session) ScrollOptions() schemas.ScrollOptions { return s.scroll }

// SetScrollOptions validates and stores opts. Empty fields take defaults.
func (s *Session) SetScrollOptions(opts schemas.ScrollOptions) error {
	def := schemas.DefaultScrollOptions()
	if opts.Behavior == "" {
		opts.Behavior = def.Behavior
	}
	if opts.Block == "" {
		opts.Block = def.Block
	}
	if opts.Inline == "" {
		opts.Inline = def.Inline
	}
	if err := opts.Validate(); err != nil {
		return &driver.Error{Kind: driver.KindInvalidArgument, Op: "set scroll options", Err: err}
	}
	s.scroll = opts
	return nil
}

// ClearPolicy returns the current clear policy.
func (s *Session) ClearPolicy() schemas.ClearPolicy { return s.clear }

// SetClearPolicy makes Set clear the field first on every call (always) or
// never.
func (s *Session) SetClearPolicy(always bool) {
	if always {
		s.clear = schemas.ClearAlways
		return
	}
	s.clear = schemas.ClearNever
}

// ClearNextSet makes the next Set clear the field first, after which the
// policy reverts to never.
func (s *Session) ClearNextSet() { s.clear = schemas.ClearOnce }

// UseClearPolicy sets the policy directly.
func (s *Session) UseClearPolicy(p schemas.ClearPolicy) { s.clear = p }
