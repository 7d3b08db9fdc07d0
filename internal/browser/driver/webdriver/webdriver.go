// internal/browser/driver/webdriver/webdriver.go
// Package webdriver implements driver.Driver on top of a WebDriver remote
// end (chromedriver, geckodriver, a Selenium grid) using agouti.
//
// agouti calls are not context aware: a context is checked before every
// command, but a command already sent runs to completion.
package webdriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sclevine/agouti"
	"github.com/sclevine/agouti/api"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
)

// w3cElementKey identifies an element reference in W3C payloads.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Options configures Open.
type Options struct {
	// URL of the remote end. Empty starts a local chromedriver.
	URL          string
	Browser      string
	Headless     bool
	Args         []string
	Capabilities map[string]interface{}
}

// Driver is a driver.Driver speaking the WebDriver wire protocol.
type Driver struct {
	sess   *api.Session
	page   *agouti.Page
	local  *agouti.WebDriver
	logger *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// Open creates a browser session on the remote end described by opts.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	browser := opts.Browser
	if browser == "" {
		browser = "chrome"
	}

	caps := agouti.NewCapabilities().Browser(browser)
	for k, v := range opts.Capabilities {
		caps[k] = v
	}
	args := append([]string(nil), opts.Args...)
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	options := []agouti.Option{agouti.Desired(caps)}
	if len(args) > 0 {
		options = append(options, agouti.ChromeOptions("args", args))
	}

	d := &Driver{logger: logger.Named("webdriver")}
	var err error
	if opts.URL == "" {
		d.local = agouti.ChromeDriver(options...)
		if err := d.local.Start(); err != nil {
			return nil, fmt.Errorf("failed to start chromedriver: %w", err)
		}
		d.page, err = d.local.NewPage(agouti.Browser(browser))
	} else {
		d.page, err = agouti.NewPage(opts.URL, options...)
	}
	if err != nil {
		d.stopLocal()
		return nil, fmt.Errorf("failed to open webdriver session: %w", err)
	}
	d.sess = d.page.Session()
	d.logger.Info("WebDriver session opened.", zap.String("url", opts.URL), zap.String("browser", browser))
	return d, nil
}

// New wraps an existing session, e.g. one created with api.New.
func New(sess *api.Session, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{sess: sess, logger: logger.Named("webdriver")}
}

func (d *Driver) stopLocal() {
	if d.local == nil {
		return
	}
	if err := d.local.Stop(); err != nil {
		d.logger.Warn("Failed to stop chromedriver.", zap.Error(err))
	}
}

// do runs a command unless ctx is already done, classifying its error.
func (d *Driver) do(ctx context.Context, op string, cmd func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return driver.Classify(op, cmd())
}

type element struct {
	el *api.Element
}

func (e element) ID() string { return e.el.ID }

func (d *Driver) unwrap(op string, el driver.Element) (*api.Element, error) {
	e, ok := el.(element)
	if !ok || e.el == nil {
		return nil, driver.Errorf(driver.KindInvalidArgument, op, "element %v does not belong to this driver", el)
	}
	return e.el, nil
}

// selector translates a Locator into a WebDriver location strategy.
func selector(loc schemas.Locator) api.Selector {
	using, value := loc.W3C()
	return api.Selector{Using: using, Value: value}
}

// --- Finder ---

func (d *Driver) FindAll(ctx context.Context, loc schemas.Locator) ([]driver.Element, error) {
	if err := loc.Validate(); err != nil {
		return nil, driver.Errorf(driver.KindInvalidArgument, "find", "invalid selector: %v", err)
	}
	var found []*api.Element
	err := d.do(ctx, "find", func() (err error) {
		found, err = d.sess.GetElements(selector(loc))
		return err
	})
	if err != nil {
		// Some remote ends report an empty match as an error.
		if driver.KindOf(err) == driver.KindNoSuchElement {
			return nil, nil
		}
		return nil, err
	}
	out := make([]driver.Element, 0, len(found))
	for _, el := range found {
		out = append(out, element{el: el})
	}
	return out, nil
}

// --- ElementReader ---

func (d *Driver) readBool(ctx context.Context, op string, el driver.Element, read func(*api.Element) (bool, error)) (bool, error) {
	e, err := d.unwrap(op, el)
	if err != nil {
		return false, err
	}
	var v bool
	err = d.do(ctx, op, func() (err error) {
		v, err = read(e)
		return err
	})
	return v, err
}

func (d *Driver) IsDisplayed(ctx context.Context, el driver.Element) (bool, error) {
	return d.readBool(ctx, "is displayed", el, (*api.Element).IsDisplayed)
}

func (d *Driver) IsEnabled(ctx context.Context, el driver.Element) (bool, error) {
	return d.readBool(ctx, "is enabled", el, (*api.Element).IsEnabled)
}

func (d *Driver) IsSelected(ctx context.Context, el driver.Element) (bool, error) {
	return d.readBool(ctx, "is selected", el, (*api.Element).IsSelected)
}

func (d *Driver) Text(ctx context.Context, el driver.Element) (string, error) {
	e, err := d.unwrap("text", el)
	if err != nil {
		return "", err
	}
	var text string
	err = d.do(ctx, "text", func() (err error) {
		text, err = e.GetText()
		return err
	})
	return text, err
}

func (d *Driver) Attribute(ctx context.Context, el driver.Element, name string) (string, error) {
	e, err := d.unwrap("attribute", el)
	if err != nil {
		return "", err
	}
	var v string
	err = d.do(ctx, "attribute", func() (err error) {
		v, err = e.GetAttribute(name)
		return err
	})
	return v, err
}

// --- ElementActor ---

func (d *Driver) SendKeys(ctx context.Context, el driver.Element, keys string) error {
	e, err := d.unwrap("send keys", el)
	if err != nil {
		return err
	}
	return d.do(ctx, "send keys", func() error { return e.Value(keys) })
}

func (d *Driver) Clear(ctx context.Context, el driver.Element) error {
	e, err := d.unwrap("clear", el)
	if err != nil {
		return err
	}
	return d.do(ctx, "clear", e.Clear)
}

func (d *Driver) Click(ctx context.Context, el driver.Element) error {
	e, err := d.unwrap("click", el)
	if err != nil {
		return err
	}
	return d.do(ctx, "click", e.Click)
}

// --- ScriptExecutor ---

// scriptArgs replaces element handles with wire element references, which
// the remote end turns back into DOM nodes.
func scriptArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if e, ok := a.(element); ok {
			out[i] = map[string]string{"ELEMENT": e.el.ID, w3cElementKey: e.el.ID}
			continue
		}
		out[i] = a
	}
	return out
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	err := d.do(ctx, "execute script", func() error {
		return d.sess.Execute(script, scriptArgs(args), &result)
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return result, nil
}

// --- WindowManager ---

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	var windows []*api.Window
	err := d.do(ctx, "window handles", func() (err error) {
		windows, err = d.sess.GetWindows()
		return err
	})
	if err != nil {
		return nil, err
	}
	handles := make([]string, 0, len(windows))
	for _, w := range windows {
		handles = append(handles, w.ID)
	}
	return handles, nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	return d.do(ctx, "switch to window", func() error {
		return d.sess.SetWindow(&api.Window{ID: handle, Session: d.sess})
	})
}

func (d *Driver) Close(ctx context.Context) error {
	return d.do(ctx, "close", d.sess.DeleteWindow)
}

// Quit deletes the session and stops a locally started chromedriver.
func (d *Driver) Quit(ctx context.Context) error {
	var err error
	if d.page != nil {
		err = d.do(ctx, "quit", d.page.Destroy)
	} else {
		err = d.do(ctx, "quit", d.sess.Delete)
	}
	d.stopLocal()
	return err
}

// --- FrameSwitcher ---

func (d *Driver) SwitchToFrame(ctx context.Context, frame driver.Frame) error {
	if !frame.Locator.IsZero() {
		els, err := d.FindAll(ctx, frame.Locator)
		if err != nil {
			return err
		}
		if len(els) == 0 {
			return driver.Errorf(driver.KindNoSuchFrame, "switch to frame", "no such frame: %s", frame)
		}
		e, _ := d.unwrap("switch to frame", els[0])
		return d.do(ctx, "switch to frame", func() error { return d.sess.Frame(e) })
	}

	// Index and name/id go to the remote end as the frame id.
	var id interface{} = frame.Index
	if frame.Name != "" {
		id = frame.Name
	}
	body := struct {
		ID interface{} `json:"id"`
	}{id}
	return d.do(ctx, "switch to frame", func() error {
		return d.sess.Send("POST", "frame", body, nil)
	})
}

func (d *Driver) SwitchToDefaultContent(ctx context.Context) error {
	return d.do(ctx, "switch to default content", func() error { return d.sess.Frame(nil) })
}

func (d *Driver) SwitchToParentFrame(ctx context.Context) error {
	return d.do(ctx, "switch to parent frame", d.sess.FrameParent)
}

// --- Navigator ---

func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.do(ctx, "navigate", func() error { return d.sess.SetURL(url) })
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := d.do(ctx, "current url", func() (err error) {
		u, err = d.sess.GetURL()
		return err
	})
	return u, err
}

// --- AlertProvider ---

func (d *Driver) Alert(ctx context.Context) (driver.Alert, error) {
	// Reading the text doubles as the presence probe.
	if _, err := (&alert{d: d}).Text(ctx); err != nil {
		return nil, err
	}
	return &alert{d: d}, nil
}

type alert struct {
	d *Driver
}

func (a *alert) Text(ctx context.Context) (string, error) {
	var text string
	err := a.d.do(ctx, "alert text", func() (err error) {
		text, err = a.d.sess.GetAlertText()
		return err
	})
	return text, err
}

func (a *alert) Accept(ctx context.Context) error {
	return a.d.do(ctx, "accept alert", a.d.sess.AcceptAlert)
}

func (a *alert) Dismiss(ctx context.Context) error {
	return a.d.do(ctx, "dismiss alert", a.d.sess.DismissAlert)
}

func (a *alert) SendKeys(ctx context.Context, text string) error {
	return a.d.do(ctx, "alert send keys", func() error { return a.d.sess.SetAlertText(text) })
}
