// internal/browser/session/session_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/driver/drivertest"
	"github.com/xkilldash9x/webready/internal/browser/wait"
	"github.com/xkilldash9x/webready/internal/config"
	"github.com/xkilldash9x/webready/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// quickWait keeps failing polls short.
var quickWait = wait.DefaultConfig().WithInterval(10 * time.Millisecond).WithTimeout(300 * time.Millisecond)

func newTestSession(t *testing.T, drv driver.Driver) *Session {
	t.Helper()
	s, err := NewSession(drv, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.SetWaitConfig(quickWait)
	return s
}

func TestNewSession(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewSession(drivertest.New(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, wait.DefaultConfig(), s.WaitConfig())
		assert.Equal(t, schemas.DefaultScrollOptions(), s.ScrollOptions())
		assert.Equal(t, schemas.ClearNever, s.ClearPolicy())
		assert.NotEmpty(t, s.ID())
	})

	t.Run("from config", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		cfg.On("Wait").Return(config.WaitConfig{Interval: 20 * time.Millisecond, Timeout: 2 * time.Second})
		cfg.On("Scroll").Return(schemas.ScrollOptions{Behavior: "smooth", Block: "start"})
		cfg.On("Input").Return(config.InputConfig{ClearPolicy: "always"})

		s, err := NewSession(drivertest.New(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, 20*time.Millisecond, s.WaitConfig().Interval)
		assert.Equal(t, 2*time.Second, s.WaitConfig().Timeout)
		assert.Equal(t, driver.TransientKinds, s.WaitConfig().Ignored)
		assert.Equal(t, schemas.ScrollOptions{Behavior: "smooth", Block: "start", Inline: "center"}, s.ScrollOptions())
		assert.Equal(t, schemas.ClearAlways, s.ClearPolicy())
		cfg.AssertExpectations(t)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		cfg.On("Wait").Return(config.WaitConfig{Interval: time.Millisecond, Timeout: time.Second})
		cfg.On("Scroll").Return(schemas.ScrollOptions{Block: "middle"})

		_, err := NewSession(drivertest.New(), cfg, nil)
		assert.ErrorIs(t, err, driver.ErrInvalidArgument)
	})

	t.Run("requires a driver", func(t *testing.T) {
		_, err := NewSession(nil, nil, nil)
		assert.Error(t, err)
	})
}

// -- Readiness Pipeline --

func TestElement_FullReadiness(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.New()
	node := fake.Add(&drivertest.Node{
		Locator:        schemas.CSS("#submit"),
		AppearAfter:    30 * time.Millisecond,
		DisplayedAfter: 60 * time.Millisecond,
		EnabledAfter:   90 * time.Millisecond,
	})
	s := newTestSession(t, fake)

	el, err := s.ElementWhenReady(ctx, schemas.CSS("#submit"))
	require.NoError(t, err)

	displayed, err := fake.IsDisplayed(ctx, el)
	require.NoError(t, err)
	enabled, err := fake.IsEnabled(ctx, el)
	require.NoError(t, err)
	assert.True(t, displayed)
	assert.True(t, enabled)
	assert.Equal(t, 1, node.Scrolls)
	assert.Contains(t, node.LastScroll, `{behavior: "auto", block: "center", inline: "center"}`)
}

func TestElement_PresenceOnlySkipsLaterStages(t *testing.T) {
	fake := drivertest.New()
	node := fake.Add(&drivertest.Node{Locator: schemas.ID("hidden"), Hidden: true, Disabled: true})
	s := newTestSession(t, fake)

	el, err := s.ElementWhenPresent(context.Background(), schemas.ID("hidden"))
	require.NoError(t, err)
	assert.NotNil(t, el)
	assert.Zero(t, node.Scrolls)
	assert.Zero(t, fake.CallCount("IsDisplayed"))
	assert.Zero(t, fake.CallCount("IsEnabled"))
}

func TestElement_ReResolvesReplacedElement(t *testing.T) {
	fake := drivertest.New()
	old := fake.Add(&drivertest.Node{Locator: schemas.CSS(".row"), DisplayedAfter: time.Hour})
	replacement := &drivertest.Node{Locator: schemas.CSS(".row")}
	swap := time.AfterFunc(50*time.Millisecond, func() {
		fake.Remove(old)
		fake.Add(replacement)
	})
	defer swap.Stop()
	s := newTestSession(t, fake)

	_, err := s.ElementWhenReady(context.Background(), schemas.CSS(".row"))
	require.NoError(t, err)
	assert.Equal(t, 1, replacement.Scrolls, "the fresh element is the one handed out")
	assert.Zero(t, old.Scrolls)
}

func TestElement_StageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("present", func(t *testing.T) {
		s := newTestSession(t, drivertest.New())
		_, err := s.ElementWhenReady(ctx, schemas.CSS("#missing"))

		require.Error(t, err)
		assert.ErrorIs(t, err, driver.ErrNoSuchElement)
		var de *driver.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, StagePresent, de.Stage)
		assert.Equal(t, "css=#missing", de.Locator)
		assert.GreaterOrEqual(t, de.Elapsed, quickWait.Timeout)
	})

	t.Run("visible", func(t *testing.T) {
		fake := drivertest.New()
		fake.Add(&drivertest.Node{Locator: schemas.ID("x"), Hidden: true})
		fake.Add(&drivertest.Node{Locator: schemas.ID("y"), Disabled: true})
		s := newTestSession(t, fake)

		_, err := s.ElementWhenReady(ctx, schemas.ID("x"))
		assert.ErrorIs(t, err, driver.ErrTimeout)
		var de *driver.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, StageVisible, de.Stage)
		assert.Zero(t, fake.CallCount("IsEnabled"), "later stages are never attempted")

		_, err = s.ElementWhenReady(ctx, schemas.ID("y"))
		require.ErrorAs(t, err, &de)
		assert.Equal(t, StageEnabled, de.Stage)
		assert.Equal(t, driver.KindTimeout, de.Kind)
	})

	t.Run("hard driver failure aborts", func(t *testing.T) {
		m := new(mocks.MockDriver)
		m.On("FindAll", mock.Anything, schemas.CSS("a")).Return(nil, errors.New("invalid session id"))
		s := newTestSession(t, m)

		start := time.Now()
		_, err := s.ElementWhenReady(ctx, schemas.CSS("a"))
		require.Error(t, err)
		assert.Less(t, time.Since(start), quickWait.Timeout)
		m.AssertNumberOfCalls(t, "FindAll", 1)
	})
}

func TestElement_ScrollFailureIsNotFatal(t *testing.T) {
	el := mocks.MockElement("el-1")
	m := new(mocks.MockDriver)
	m.On("FindAll", mock.Anything, schemas.CSS("b")).Return([]driver.Element{el}, nil)
	m.On("IsDisplayed", mock.Anything, el).Return(true, nil)
	m.On("IsEnabled", mock.Anything, el).Return(true, nil)
	m.On("ExecuteScript", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("javascript error: scrollIntoView is not a function"))
	s := newTestSession(t, m)

	got, err := s.ElementWhenReady(context.Background(), schemas.CSS("b"))
	require.NoError(t, err)
	assert.Equal(t, el, got)
	m.AssertExpectations(t)
}

// -- Absent-argument leniency --

func TestZeroArguments_AreNoOps(t *testing.T) {
	ctx := context.Background()
	m := new(mocks.MockDriver) // any call fails the test
	s := newTestSession(t, m)
	var none schemas.Locator
	loc := schemas.CSS("#x")

	assert.NoError(t, s.Click(ctx, none))
	assert.NoError(t, s.DoubleClick(ctx, none))
	assert.NoError(t, s.Clear(ctx, none))
	assert.NoError(t, s.Set(ctx, none, "text"))
	assert.NoError(t, s.Select(ctx, none, true))
	assert.NoError(t, s.SelectByVisibleText(ctx, none, "a"))
	assert.NoError(t, s.SelectByVisibleText(ctx, loc, ""))
	assert.NoError(t, s.SelectByValue(ctx, loc, ""))
	assert.NoError(t, s.SelectByIndex(ctx, loc, -1))
	assert.NoError(t, s.Upload(ctx, none, "/tmp/f"))
	assert.NoError(t, s.Upload(ctx, loc, ""))
	text, err := s.GetText(ctx, none)
	assert.NoError(t, err)
	assert.Empty(t, text)
	attr, err := s.GetAttribute(ctx, loc, "")
	assert.NoError(t, err)
	assert.Empty(t, attr)
	n, err := s.Count(ctx, none)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, s.WaitToBePresent(ctx, none))
	assert.NoError(t, s.WaitToBeAbsent(ctx, none))
	present, err := s.WaitToBePresentSoft(ctx, none)
	assert.NoError(t, err)
	assert.False(t, present)
	absent, err := s.WaitToBeAbsentSoft(ctx, none)
	assert.NoError(t, err)
	assert.True(t, absent)
	assert.NoError(t, s.SwitchToFrame(ctx, driver.FrameByName("")))
	assert.NoError(t, s.ScrollIntoView(ctx, nil, schemas.ScrollOptions{}))

	assert.Empty(t, m.Calls, "the driver must not be touched")
}
