// internal/scenario/runner_test.go
package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/driver/drivertest"
	"github.com/xkilldash9x/webready/internal/browser/scripts"
	"github.com/xkilldash9x/webready/internal/browser/session"
	"github.com/xkilldash9x/webready/internal/browser/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quickWait = wait.DefaultConfig().WithInterval(10 * time.Millisecond).WithTimeout(300 * time.Millisecond)

func newRunner(t *testing.T, fake *drivertest.Fake) (*Runner, *session.Session) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	s, err := session.NewSession(fake, nil, logger)
	require.NoError(t, err)
	s.SetWaitConfig(quickWait)
	return NewRunner(s, logger), s
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	scs, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, scs, 1)
	return scs[0]
}

func TestRunner_FormFlow(t *testing.T) {
	fake := drivertest.New()
	user := fake.Add(&drivertest.Node{Locator: schemas.ID("user"), Value: "old"})
	submit := fake.Add(&drivertest.Node{Locator: schemas.CSS("button.submit"), EnabledAfter: 50 * time.Millisecond})
	lang := fake.Add(&drivertest.Node{
		Locator: schemas.ID("lang"),
		Options: []scripts.Option{{Value: "en", Text: "English"}, {Value: "de", Text: "Deutsch"}},
	})
	fake.Add(&drivertest.Node{Locator: schemas.ID("banner"), Text: "Welcome", AppearAfter: 80 * time.Millisecond})
	fake.AddFrame(&drivertest.FrameNode{Name: "editor"})

	r, _ := newRunner(t, fake)
	sc := mustParse(t, `
name: form
url: http://app.test/form
steps:
  - action: clear_policy
    policy: once
  - action: set
    locator: id=user
    text: alice
  - action: expect_attribute
    locator: id=user
    name: value
    expect: alice
  - action: select_text
    locator: id=lang
    text: Deutsch
  - action: click
    locator: css=button.submit
  - action: expect_text
    locator: id=banner
    expect: Welcome
  - action: switch_frame
    name: editor
`)
	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Steps)
	assert.Zero(t, res.SoftTimeouts)

	assert.Equal(t, "alice", user.Value)
	assert.Equal(t, 1, submit.Clicks, "the click waited for the button to become enabled")
	assert.Equal(t, []string{"de"}, lang.SelectedValues())
	assert.Equal(t, []string{"editor"}, fake.FramePath())
	url, err := fake.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://app.test/form", url)
}

func TestRunner_StopsAtFailingStep(t *testing.T) {
	fake := drivertest.New()
	btn := fake.Add(&drivertest.Node{Locator: schemas.ID("ok")})
	r, _ := newRunner(t, fake)
	sc := mustParse(t, `
name: broken
steps:
  - action: click
    locator: id=ok
  - action: click
    locator: id=missing
  - action: click
    locator: id=ok
`)
	res, err := r.Run(context.Background(), sc)
	require.Error(t, err)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Index)
	assert.Equal(t, ActionClick, se.Action)
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)
	assert.Contains(t, err.Error(), "step 2 (click)")
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, 1, btn.Clicks, "steps after the failure do not run")
}

func TestRunner_ExpectationMismatch(t *testing.T) {
	fake := drivertest.New()
	fake.Add(&drivertest.Node{Locator: schemas.ID("status"), Text: "pending"})
	r, _ := newRunner(t, fake)
	sc := mustParse(t, `
name: status
steps:
  - action: expect_text
    locator: id=status
    expect: done
`)
	_, err := r.Run(context.Background(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.Contains(t, err.Error(), `want "done", got "pending"`)
	assert.Contains(t, err.Error(), "stage expectation")
}

func TestRunner_SoftWaitsAndTimeoutOverride(t *testing.T) {
	fake := drivertest.New()
	fake.Add(&drivertest.Node{Locator: schemas.ID("spinner")})
	r, s := newRunner(t, fake)
	sc := mustParse(t, `
name: soft
steps:
  - action: wait_absent
    locator: id=spinner
    soft: true
    timeout: 50ms
  - action: wait_present
    locator: id=spinner
`)
	start := time.Now()
	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SoftTimeouts)
	assert.Equal(t, 2, res.Steps)
	assert.Less(t, time.Since(start), quickWait.Timeout, "the step timeout replaced the session timeout")
	assert.Equal(t, quickWait, s.WaitConfig(), "the session timeout is restored after the step")
}

func TestRunner_AlertsAndTabs(t *testing.T) {
	fake := drivertest.New()
	fake.OpenWindow("window-1")
	prompt := &drivertest.Prompt{Message: "Name?", AppearAfter: 30 * time.Millisecond}
	fake.OpenPrompt(prompt)
	r, _ := newRunner(t, fake)
	sc := mustParse(t, `
name: dialogs
steps:
  - action: accept_alert
    expect: Name?
    text: bob
  - action: switch_tab
    index: 1
  - action: close_tab
  - action: switch_tab
    index: 0
`)
	_, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, prompt.Accepted)
	assert.Equal(t, "bob", prompt.Input)
	assert.Equal(t, "window-0", fake.CurrentWindow())

	fake.OpenPrompt(&drivertest.Prompt{Message: "Delete?"})
	_, err = r.Run(context.Background(), mustParse(t, `
name: wrong prompt
steps:
  - action: dismiss_alert
    expect: Save?
`))
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ActionDismissAlert, se.Action)
	assert.Contains(t, err.Error(), `want "Save?", got "Delete?"`)
}

func TestRunner_CancelledContext(t *testing.T) {
	fake := drivertest.New()
	r, _ := newRunner(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, mustParse(t, "name: c\nsteps:\n  - action: wait_present\n    locator: id=x\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
