// internal/browser/driver/cdp/cdp.go
// Package cdp implements driver.Driver over the Chrome DevTools Protocol
// with chromedp. Element handles are remote object ids resolved in the
// document of the current frame; reads and DOM writes go through
// Runtime.callFunctionOn, clicks and typing through Input events.
//
// Frames are entered through their contentDocument, so only same-origin
// frames can be switched into.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/internal/browser/driver"
)

// objectGroup holds every remote object the driver creates so a navigation
// can release them in one call.
const objectGroup = "webready"

// Options configures Launch.
type Options struct {
	// RemoteURL attaches to a running browser (ws:// or http:// DevTools
	// endpoint) instead of starting one.
	RemoteURL   string
	ExecPath    string
	Headless    bool
	UserDataDir string
	// Args are extra command line switches, "--name" or "--name=value".
	Args []string
}

// tab is one page target and the frame path selected in it.
type tab struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
	first  bool
	// frames holds the frame elements entered, outermost first.
	frames []runtime.RemoteObjectID
	// dialog is the open user prompt, if any. Guarded by Driver.mu.
	dialog *page.EventJavascriptDialogOpening
}

// Driver is a driver.Driver for one Chrome browser.
type Driver struct {
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu      sync.Mutex
	tabs    map[target.ID]*tab
	order   []target.ID
	current *tab
}

var _ driver.Driver = (*Driver)(nil)

// allocatorOptions builds the exec allocator flags for opts.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		}
	}
	return allocOpts
}

// Launch starts (or attaches to) a browser and opens its first tab. ctx
// bounds the launch only; the browser lives until Quit.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	}
	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The first Run allocates the browser and is bound to browserCtx itself;
	// ctx may only abort it.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stopped := stop()
	if err != nil || !stopped {
		browserCancel()
		allocCancel()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	d := &Driver{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          make(map[target.ID]*tab),
	}
	first := &tab{
		id:     chromedp.FromContext(browserCtx).Target.TargetID,
		ctx:    browserCtx,
		cancel: browserCancel,
		first:  true,
	}
	d.adopt(first)
	d.current = first
	logger.Info("Browser launched.", zap.String("target", string(first.id)), zap.Bool("remote", opts.RemoteURL != ""))
	return d, nil
}

// adopt registers t, keeping its position if the handle is already known.
func (d *Driver) adopt(t *tab) {
	d.mu.Lock()
	d.tabs[t.id] = t
	if !slices.Contains(d.order, t.id) {
		d.order = append(d.order, t.id)
	}
	d.mu.Unlock()

	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			d.mu.Lock()
			t.dialog = e
			d.mu.Unlock()
		case *page.EventJavascriptDialogClosed:
			d.mu.Lock()
			t.dialog = nil
			d.mu.Unlock()
		case *page.EventFrameNavigated:
			// A new top-level document invalidates every frame handle.
			if e.Frame != nil && e.Frame.ParentID == "" {
				d.setFrames(t, nil)
			}
		}
	})
}

func (d *Driver) frames(t *tab) []runtime.RemoteObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(t.frames)
}

func (d *Driver) setFrames(t *tab, frames []runtime.RemoteObjectID) {
	d.mu.Lock()
	t.frames = frames
	d.mu.Unlock()
}

// run executes actions against the current tab, bounded by ctx.
func (d *Driver) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.current == nil {
		return driver.Errorf(driver.KindNoSuchWindow, op, "no such window: the current tab was closed")
	}
	cctx, cancel := combineContext(d.current.ctx, ctx)
	defer cancel()
	err := chromedp.Run(cctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return driver.Classify(op, err)
}

// runBrowser executes fn against the browser endpoint rather than a tab.
func (d *Driver) runBrowser(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cctx, cancel := combineContext(d.browserCtx, ctx)
	defer cancel()
	c := chromedp.FromContext(d.browserCtx)
	err := fn(cdpproto.WithExecutor(cctx, c.Browser))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return driver.Classify(op, err)
}

// --- WindowManager ---

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	var infos []*target.Info
	err := d.runBrowser(ctx, "window handles", func(ctx context.Context) (err error) {
		infos, err = target.GetTargets().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	live := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		if info.Type == "page" && info.Subtype == "" {
			live[info.TargetID] = true
		}
	}

	d.mu.Lock()
	// Known tabs keep their position; new ones are appended in the order
	// the browser reports them.
	known := make(map[target.ID]bool, len(d.order))
	order := d.order[:0]
	var gone []*tab
	for _, id := range d.order {
		known[id] = true
		if live[id] {
			order = append(order, id)
		} else if t, ok := d.tabs[id]; ok {
			delete(d.tabs, id)
			gone = append(gone, t)
		}
	}
	for _, info := range infos {
		if live[info.TargetID] && !known[info.TargetID] {
			order = append(order, info.TargetID)
		}
	}
	d.order = order
	d.mu.Unlock()

	for _, t := range gone {
		if !t.first {
			t.cancel()
		}
	}

	handles := make([]string, len(order))
	for i, id := range order {
		handles[i] = string(id)
	}
	return handles, nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := target.ID(handle)
	d.mu.Lock()
	t, ok := d.tabs[id]
	d.mu.Unlock()
	if !ok {
		var err error
		if t, err = d.attach(ctx, id); err != nil {
			return err
		}
	}
	d.current = t
	return d.runBrowser(ctx, "switch to window", func(ctx context.Context) error {
		return target.ActivateTarget(id).Do(ctx)
	})
}

// attach opens a chromedp context on an existing page target.
func (d *Driver) attach(ctx context.Context, id target.ID) (*tab, error) {
	tctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tctx)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, driver.Classify("switch to window", fmt.Errorf("no such window: %s: %w", id, err))
	}
	t := &tab{id: id, ctx: tctx, cancel: cancel}
	d.adopt(t)
	return t, nil
}

// Close closes the current tab. The driver has no current tab until the
// next SwitchToWindow.
func (d *Driver) Close(ctx context.Context) error {
	t := d.current
	if t == nil {
		return driver.Errorf(driver.KindNoSuchWindow, "close", "no such window: the current tab was closed")
	}
	var err error
	if t.first {
		// Cancelling the first tab's context would stop the browser.
		err = d.runBrowser(ctx, "close", func(ctx context.Context) error {
			return target.CloseTarget(t.id).Do(ctx)
		})
	} else {
		t.cancel()
	}
	d.mu.Lock()
	delete(d.tabs, t.id)
	for i, id := range d.order {
		if id == t.id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	d.current = nil
	return err
}

// Quit closes every tab and stops the browser.
func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	var others []*tab
	for _, t := range d.tabs {
		if !t.first {
			others = append(others, t)
		}
	}
	d.tabs = map[target.ID]*tab{}
	d.order = nil
	d.mu.Unlock()

	for _, t := range others {
		t.cancel()
	}
	d.current = nil

	// chromedp.Cancel blocks until the browser exits; cancelling the
	// allocator kills the process if ctx runs out first.
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(d.browserCtx) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		d.logger.Warn("Browser did not stop in time, killing it.")
		d.allocCancel()
		<-done
		err = ctx.Err()
	}
	d.browserCancel()
	d.allocCancel()
	d.logger.Info("Browser stopped.")
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to stop browser: %w", err)
	}
	return nil
}

// --- Navigator ---

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if d.current != nil {
		d.setFrames(d.current, nil)
	}
	return d.run(ctx, "navigate",
		chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.ReleaseObjectGroup(objectGroup).Do(ctx)
		}),
		chromedp.Navigate(url),
	)
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := d.run(ctx, "current url", chromedp.Location(&u))
	return u, err
}

// Attach connects to a browser already listening on a DevTools endpoint.
func Attach(ctx context.Context, remoteURL string, logger *zap.Logger) (*Driver, error) {
	return Launch(ctx, Options{RemoteURL: remoteURL}, logger)
}
