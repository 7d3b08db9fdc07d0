// internal/browser/driver/cdp/browser_test.go
package cdp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webready/api/schemas"
	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/session"
	"github.com/xkilldash9x/webready/internal/browser/wait"
)

const browserTestTimeout = 60 * time.Second

var testPages = map[string]string{
	"/form": `<!doctype html><html><body>
<input id="name" type="text" value="prefilled">
<button id="go" disabled onclick="document.getElementById('out').textContent = 'hello ' + document.getElementById('name').value">Go</button>
<div id="out"></div>
<div id="later"></div>
<select id="color"><option value="r">Red</option><option value="g">Green</option><option value="b" disabled>Blue</option></select>
<div style="display:none"><span id="hidden">secret</span></div>
<iframe id="child" src="/frame"></iframe>
<script>
setTimeout(function() { document.getElementById('go').disabled = false; }, 200);
setTimeout(function() { document.getElementById('later').innerHTML = '<a id="link" href="#">late</a>'; }, 300);
</script>
</body></html>`,
	"/frame": `<!doctype html><html><body><p id="inner">inside the frame</p><button id="fbtn" onclick="this.textContent='pressed'">press</button></body></html>`,
	"/alert": `<!doctype html><html><body><script>setTimeout(function() { document.title = confirm('Proceed?') ? 'yes' : 'no'; }, 100);</script></body></html>`,
	"/second": `<!doctype html><html><head><title>second</title></head><body><p id="tab">second tab</p></body></html>`,
}

// findChrome returns a Chrome binary or skips the test.
func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in -short mode")
	}
	if p := os.Getenv("WEBREADY_CHROME"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome or Chromium binary found; set WEBREADY_CHROME")
	return ""
}

type fixture struct {
	ctx     context.Context
	drv     *Driver
	session *session.Session
	baseURL string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	execPath := findChrome(t)
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)).With(zap.String("test", t.Name()))

	ctx, cancel := context.WithTimeout(context.Background(), browserTestTimeout)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := testPages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	drv, err := Launch(ctx, Options{
		ExecPath:    execPath,
		Headless:    true,
		UserDataDir: t.TempDir(),
		Args:        []string{"--no-sandbox"},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, drv.Quit(shutdownCtx))
	})

	s, err := session.NewSession(drv, nil, logger)
	require.NoError(t, err)
	s.SetWaitConfig(wait.DefaultConfig().WithTimeout(5 * time.Second))
	return &fixture{ctx: ctx, drv: drv, session: s, baseURL: srv.URL}
}

func TestBrowser_ReadinessAndInput(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.ctx, f.session
	require.NoError(t, s.Navigate(ctx, f.baseURL+"/form"))

	require.NoError(t, s.Set(ctx, schemas.ID("name"), "world"), "clear policy 'never' appends")
	value, err := s.GetAttribute(ctx, schemas.ID("name"), "value")
	require.NoError(t, err)
	assert.Equal(t, "prefilledworld", value)

	s.ClearNextSet()
	require.NoError(t, s.Set(ctx, schemas.ID("name"), "world"))
	value, err = s.GetAttribute(ctx, schemas.ID("name"), "value")
	require.NoError(t, err)
	assert.Equal(t, "world", value)

	// The button is disabled for the first 200ms.
	require.NoError(t, s.Click(ctx, schemas.ID("go")))
	text, err := s.GetText(ctx, schemas.ID("out"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	require.NoError(t, s.WaitToBePresent(ctx, schemas.LinkText("late")))
	n, err := s.Count(ctx, schemas.XPath("//select/option"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	els, err := f.drv.FindAll(ctx, schemas.ID("hidden"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	displayed, err := f.drv.IsDisplayed(ctx, els[0])
	require.NoError(t, err)
	assert.False(t, displayed)

	_, err = f.drv.FindAll(ctx, schemas.CSS("a["))
	assert.ErrorIs(t, err, driver.ErrInvalidArgument)
}

func TestBrowser_Select(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.ctx, f.session
	require.NoError(t, s.Navigate(ctx, f.baseURL+"/form"))

	require.NoError(t, s.SelectByVisibleText(ctx, schemas.ID("color"), "Green"))
	opts, err := s.SelectedOptions(ctx, schemas.ID("color"))
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, "g", opts[0].Value)

	err = s.SelectByValue(ctx, schemas.ID("color"), "b")
	assert.ErrorIs(t, err, driver.ErrNotInteractable)
	err = s.SelectByValue(ctx, schemas.ID("color"), "purple")
	assert.ErrorIs(t, err, driver.ErrSelectionNotFound)
}

func TestBrowser_StaleAfterReplacement(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	require.NoError(t, f.session.Navigate(ctx, f.baseURL+"/form"))

	els, err := f.drv.FindAll(ctx, schemas.ID("out"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	_, err = f.drv.ExecuteScript(ctx, `var o = document.getElementById('out'); o.replaceWith(o.cloneNode(true));`)
	require.NoError(t, err)

	_, err = f.drv.Text(ctx, els[0])
	assert.ErrorIs(t, err, driver.ErrStaleElement)
}

func TestBrowser_Frames(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.ctx, f.session
	require.NoError(t, s.Navigate(ctx, f.baseURL+"/form"))

	require.NoError(t, s.SwitchToFrame(ctx, driver.FrameByName("child")))
	text, err := s.GetText(ctx, schemas.ID("inner"))
	require.NoError(t, err)
	assert.Equal(t, "inside the frame", text)

	require.NoError(t, s.Click(ctx, schemas.ID("fbtn")), "clicks land inside the frame")
	text, err = s.GetText(ctx, schemas.ID("fbtn"))
	require.NoError(t, err)
	assert.Equal(t, "pressed", text)

	require.NoError(t, s.SwitchToDefaultContent(ctx))
	present, err := s.IsPresent(ctx, schemas.ID("inner"))
	require.NoError(t, err)
	assert.False(t, present)

	err = s.SwitchToFrame(ctx, driver.FrameByIndex(4))
	assert.ErrorIs(t, err, driver.ErrNoSuchFrame)
}

func TestBrowser_Alert(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.ctx, f.session
	require.NoError(t, s.Navigate(ctx, f.baseURL+"/alert"))

	a, err := s.Alert(ctx)
	require.NoError(t, err)
	msg, err := a.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Proceed?", msg)
	require.NoError(t, a.Accept(ctx))

	title, err := s.ExecuteScript(ctx, "return document.title;")
	require.NoError(t, err)
	assert.Equal(t, `"yes"`, string(title))
}

func TestBrowser_Tabs(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.ctx, f.session
	require.NoError(t, s.Navigate(ctx, f.baseURL+"/form"))

	_, err := s.ExecuteScript(ctx, "window.open(arguments[0]);", f.baseURL+"/second")
	require.NoError(t, err)
	require.NoError(t, s.SwitchToTab(ctx, 1))
	require.NoError(t, s.WaitToBePresent(ctx, schemas.ID("tab")))
	u, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "/second"))

	require.NoError(t, s.CloseTab(ctx))
	require.NoError(t, s.SwitchToFirstTab(ctx))
	u, err = s.CurrentURL(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "/form"))
}
