// internal/browser/driver/cdp/dialog.go
package cdp

import (
	"context"

	"github.com/chromedp/cdproto/page"

	"github.com/xkilldash9x/webready/internal/browser/driver"
)

// Alert returns the user prompt open in the current tab. Prompts are
// tracked from Page.javascriptDialogOpening events.
func (d *Driver) Alert(ctx context.Context) (driver.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := d.current
	if t == nil {
		return nil, driver.Errorf(driver.KindNoSuchWindow, "alert", "no such window: the current tab was closed")
	}
	d.mu.Lock()
	open := t.dialog
	d.mu.Unlock()
	if open == nil {
		return nil, driver.Errorf(driver.KindNoSuchAlert, "alert", "no such alert")
	}
	return &dialog{d: d, t: t, ev: open}, nil
}

type dialog struct {
	d      *Driver
	t      *tab
	ev     *page.EventJavascriptDialogOpening
	prompt *string
}

// stillOpen fails once the prompt has been handled or replaced.
func (a *dialog) stillOpen(op string) error {
	a.d.mu.Lock()
	defer a.d.mu.Unlock()
	if a.t.dialog != a.ev {
		return driver.Errorf(driver.KindNoSuchAlert, op, "no such alert")
	}
	return nil
}

func (a *dialog) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := a.stillOpen("alert text"); err != nil {
		return "", err
	}
	return a.ev.Message, nil
}

// SendKeys records text for a prompt(); it is submitted on Accept.
func (a *dialog) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.stillOpen("alert send keys"); err != nil {
		return err
	}
	if a.ev.Type != page.DialogTypePrompt {
		return driver.Errorf(driver.KindNotInteractable, "alert send keys", "element not interactable: user prompt of type %s does not take input", a.ev.Type)
	}
	a.prompt = &text
	return nil
}

func (a *dialog) Accept(ctx context.Context) error  { return a.handle(ctx, "accept alert", true) }
func (a *dialog) Dismiss(ctx context.Context) error { return a.handle(ctx, "dismiss alert", false) }

func (a *dialog) handle(ctx context.Context, op string, accept bool) error {
	if err := a.stillOpen(op); err != nil {
		return err
	}
	params := page.HandleJavaScriptDialog(accept)
	if accept && a.prompt != nil {
		params = params.WithPromptText(*a.prompt)
	}
	if err := a.d.run(ctx, op, params); err != nil {
		return err
	}
	a.d.mu.Lock()
	if a.t.dialog == a.ev {
		a.t.dialog = nil
	}
	a.d.mu.Unlock()
	return nil
}
