// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Wait() config.WaitConfig {
	args := m.Called()
	return args.Get(0).(config.WaitConfig)
}

func (m *MockConfig) Scroll() schemas.ScrollOptions {
	args := m.Called()
	return args.Get(0).(schemas.ScrollOptions)
}

func (m *MockConfig) Input() config.InputConfig {
	args := m.Called()
	return args.Get(0).(config.InputConfig)
}

func (m *MockConfig) Driver() config.DriverConfig {
	args := m.Called()
	return args.Get(0).(config.DriverConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	args := m.Called()
	return args.Get(0).(config.MetricsConfig)
}

// --- Setters ---

func (m *MockConfig) SetWaitTimeout(d time.Duration)  { m.Called(d) }
func (m *MockConfig) SetWaitInterval(d time.Duration) { m.Called(d) }
func (m *MockConfig) SetDriverKind(kind string)       { m.Called(kind) }
func (m *MockConfig) SetDriverHeadless(b bool)        { m.Called(b) }

// -- Driver Mock --

// MockElement is a driver.Element with a fixed id.
type MockElement string

func (e MockElement) ID() string { return string(e) }

// MockDriver mocks driver.Driver. Unexpected calls fail the test, which is
// how "the driver was not touched" is asserted.
type MockDriver struct {
	mock.Mock
}

var _ driver.Driver = (*MockDriver)(nil)

func (m *MockDriver) FindAll(ctx context.Context, loc schemas.Locator) ([]driver.Element, error) {
	args := m.Called(ctx, loc)
	els, _ := args.Get(0).([]driver.Element)
	return els, args.Error(1)
}

func (m *MockDriver) IsDisplayed(ctx context.Context, el driver.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsEnabled(ctx context.Context, el driver.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsSelected(ctx context.Context, el driver.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) Text(ctx context.Context, el driver.Element) (string, error) {
	args := m.Called(ctx, el)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Attribute(ctx context.Context, el driver.Element, name string) (string, error) {
	args := m.Called(ctx, el, name)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) SendKeys(ctx context.Context, el driver.Element, keys string) error {
	return m.Called(ctx, el, keys).Error(0)
}

func (m *MockDriver) Clear(ctx context.Context, el driver.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockDriver) Click(ctx context.Context, el driver.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockDriver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	ret := m.Called(ctx, script, args)
	raw, _ := ret.Get(0).(json.RawMessage)
	return raw, ret.Error(1)
}

func (m *MockDriver) WindowHandles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	hs, _ := args.Get(0).([]string)
	return hs, args.Error(1)
}

func (m *MockDriver) SwitchToWindow(ctx context.Context, handle string) error {
	return m.Called(ctx, handle).Error(0)
}

func (m *MockDriver) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockDriver) Quit(ctx context.Context) error  { return m.Called(ctx).Error(0) }

func (m *MockDriver) SwitchToFrame(ctx context.Context, frame driver.Frame) error {
	return m.Called(ctx, frame).Error(0)
}

func (m *MockDriver) SwitchToDefaultContent(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) SwitchToParentFrame(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Alert(ctx context.Context) (driver.Alert, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(driver.Alert)
	return a, args.Error(1)
}
