package seleniumhelpers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tebeka/selenium"
)

// Option configures a Fixture.
type Option func(*Fixture)

// WithSettings supplies the framework-level settings consulted when an
// environment variable is unset.
func WithSettings(s Settings) Option {
	return func(f *Fixture) {
		f.settings = s
	}
}

// WithDriverFunc replaces SelectDriver as the way the fixture obtains its
// session.
func WithDriverFunc(fn func(Config) (*Driver, error)) Option {
	return func(f *Fixture) {
		f.newDriver = fn
	}
}

// Fixture owns a live HTTP server and one browser session for a group of
// tests. Create it with Start; it is released by the test cleanup or by an
// explicit Close, after which it must not be used.
type Fixture struct {
	settings  Settings
	newDriver func(Config) (*Driver, error)

	server *httptest.Server
	proxy  *liveServerProxy
	driver *Driver
	url    string

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// Start serves handler on a local live server and opens a browser session
// for it. The fixture is closed when tb and its subtests complete.
//
// If SKIP_SELENIUMTESTS resolves to true, tb is skipped before any server
// or browser is started. Configuration and driver errors fail tb
// immediately.
func Start(tb testing.TB, handler http.Handler, opts ...Option) *Fixture {
	tb.Helper()
	f := &Fixture{newDriver: SelectDriver}
	for _, opt := range opts {
		opt(f)
	}
	if SkipRequested(f.settings) {
		tb.Skip("Selenium tests have been disabled using SKIP_SELENIUMTESTS=true.")
	}
	cfg, err := LoadConfig(f.settings)
	if err != nil {
		tb.Fatalf("Loading selenium configuration: %v", err)
	}
	if err := f.start(cfg, handler); err != nil {
		tb.Fatalf("Starting selenium fixture: %v", err)
	}
	tb.Cleanup(func() {
		if err := f.Close(); err != nil {
			tb.Errorf("Closing selenium fixture: %v", err)
		}
	})
	return f
}

func (f *Fixture) start(cfg Config, handler http.Handler) error {
	f.server = httptest.NewServer(handler)
	f.url = f.server.URL
	if cfg.LiveServerProxy != "" {
		p, err := startLiveServerProxy(cfg.LiveServerProxy, f.server.URL)
		if err != nil {
			f.server.Close()
			return err
		}
		f.proxy = p
		f.url = ProxiedLiveServerURL
		cfg.Proxy = p.Capability()
	}

	d, err := f.newDriver(cfg)
	if err != nil {
		f.shutdownServer()
		return err
	}
	f.driver = d
	log.Debug().Str("browser", cfg.Browser).Str("url", f.url).Msg("selenium fixture started")
	return nil
}

func (f *Fixture) shutdownServer() error {
	var err error
	if f.proxy != nil {
		err = f.proxy.Close()
	}
	f.server.Close()
	return err
}

// Close stops the live server and quits the browser session. It is safe to
// call more than once.
func (f *Fixture) Close() error {
	f.closeOnce.Do(func() {
		f.closed = true
		err := f.shutdownServer()
		if f.driver != nil {
			if qerr := f.driver.Quit(); qerr != nil {
				err = qerr
			}
		}
		f.closeErr = err
	})
	return f.closeErr
}

// URL is the base URL under which the browser reaches the live server.
func (f *Fixture) URL() string {
	return f.url
}

// Driver returns the browser session.
func (f *Fixture) Driver() *Driver {
	return f.driver
}

// Config resolves the configuration again. Environment changes made since
// Start are visible.
func (f *Fixture) Config() (Config, error) {
	return LoadConfig(f.settings)
}

func (f *Fixture) session(t testing.TB) *Driver {
	t.Helper()
	if f.closed {
		t.Fatal("selenium fixture used after Close")
	}
	return f.driver
}

// GetPath navigates the browser to path on the live server.
func (f *Fixture) GetPath(t testing.TB, path string) {
	t.Helper()
	u := f.url + path
	if err := f.session(t).Get(u); err != nil {
		t.Fatalf("Get(%q) returned error: %v", u, err)
	}
}

// ExecuteScript runs script in the page with args available as arguments[i].
func (f *Fixture) ExecuteScript(t testing.TB, script string, args ...interface{}) interface{} {
	t.Helper()
	if args == nil {
		args = []interface{}{}
	}
	res, err := f.session(t).ExecuteScript(script, args)
	if err != nil {
		t.Fatalf("ExecuteScript(%q) returned error: %v", script, err)
	}
	return res
}

// InnerHTML returns the innerHTML of el.
func (f *Fixture) InnerHTML(t testing.TB, el selenium.WebElement) string {
	t.Helper()
	res := f.ExecuteScript(t, "return arguments[0].innerHTML", el)
	s, ok := res.(string)
	if !ok {
		t.Fatalf("innerHTML returned %T, want string", res)
	}
	return s
}

type waitOptions struct {
	timeout    time.Duration
	timeoutSet bool
	message string
	scope   Finder
}

// WaitOption adjusts a single wait.
type WaitOption func(*waitOptions)

// Timeout overrides SELENIUM_DEFAULT_TIMEOUT for one wait. Timeout(0)
// evaluates the condition once.
func Timeout(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		o.timeout = d
		o.timeoutSet = true
	}
}

// Message replaces the default failure message of a wait.
func Message(msg string) WaitOption {
	return func(o *waitOptions) {
		o.message = msg
	}
}

// Within restricts selector and text waits to the subtree of scope.
func Within(scope Finder) WaitOption {
	return func(o *waitOptions) {
		o.scope = scope
	}
}

func (f *Fixture) waitOptions(t testing.TB, defaultMessage string, opts []WaitOption) waitOptions {
	t.Helper()
	o := waitOptions{message: defaultMessage}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.timeoutSet {
		cfg, err := f.Config()
		if err != nil {
			t.Fatalf("Loading selenium configuration: %v", err)
		}
		o.timeout = cfg.Timeout()
		o.timeoutSet = true
	}
	if o.scope == nil {
		o.scope = f.driver
	}
	return o
}

// Await fails t unless pred(subject) becomes true within the timeout. It is
// the generic form behind every Fixture wait method.
func Await[S any](t testing.TB, f *Fixture, subject S, pred Predicate[S], opts ...WaitOption) {
	t.Helper()
	wd := f.session(t)
	o := f.waitOptions(t, "condition not met", opts)
	if err := WaitFor(wd, subject, pred, o.timeout, o.message); err != nil {
		t.Fatal(err)
	}
}

// WaitFor fails t unless pred becomes true for the browser session within
// the timeout.
func (f *Fixture) WaitFor(t testing.TB, pred Predicate[selenium.WebDriver], opts ...WaitOption) {
	t.Helper()
	Await[selenium.WebDriver](t, f, f.session(t), pred, opts...)
}

// WaitForElement fails t unless pred becomes true for el within the timeout.
func (f *Fixture) WaitForElement(t testing.TB, el selenium.WebElement, pred Predicate[selenium.WebElement], opts ...WaitOption) {
	t.Helper()
	Await[selenium.WebElement](t, f, el, pred, opts...)
}

// WaitForCSSSelector waits until at least one element matches selector and
// returns the matches.
func (f *Fixture) WaitForCSSSelector(t testing.TB, selector string, opts ...WaitOption) []selenium.WebElement {
	t.Helper()
	o := f.waitOptions(t, fmt.Sprintf("CSS selector %q not found", selector), opts)
	var found []selenium.WebElement
	Await[Finder](t, f, o.scope, func(scope Finder) (bool, error) {
		els, err := scope.FindElements(selenium.ByCSSSelector, selector)
		if err != nil {
			return false, err
		}
		found = els
		return len(els) > 0, nil
	}, o.apply()...)
	return found
}

// WaitForCSSSelectorNotFound waits until no element matches selector.
func (f *Fixture) WaitForCSSSelectorNotFound(t testing.TB, selector string, opts ...WaitOption) {
	t.Helper()
	o := f.waitOptions(t, fmt.Sprintf("CSS selector %q still found", selector), opts)
	Await[Finder](t, f, o.scope, func(scope Finder) (bool, error) {
		els, err := scope.FindElements(selenium.ByCSSSelector, selector)
		if IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return len(els) == 0, nil
	}, o.apply()...)
}

// WaitForEnabled waits until el is enabled.
func (f *Fixture) WaitForEnabled(t testing.TB, el selenium.WebElement, opts ...WaitOption) {
	t.Helper()
	f.waitForState(t, el, selenium.WebElement.IsEnabled, true, "element never became enabled", opts)
}

// WaitForDisabled waits until el is disabled.
func (f *Fixture) WaitForDisabled(t testing.TB, el selenium.WebElement, opts ...WaitOption) {
	t.Helper()
	f.waitForState(t, el, selenium.WebElement.IsEnabled, false, "element never became disabled", opts)
}

// WaitForDisplayed waits until el is displayed.
func (f *Fixture) WaitForDisplayed(t testing.TB, el selenium.WebElement, opts ...WaitOption) {
	t.Helper()
	f.waitForState(t, el, selenium.WebElement.IsDisplayed, true, "element never became displayed", opts)
}

// WaitForNotDisplayed waits until el is hidden.
func (f *Fixture) WaitForNotDisplayed(t testing.TB, el selenium.WebElement, opts ...WaitOption) {
	t.Helper()
	f.waitForState(t, el, selenium.WebElement.IsDisplayed, false, "element never became hidden", opts)
}

func (f *Fixture) waitForState(t testing.TB, el selenium.WebElement, state func(selenium.WebElement) (bool, error), want bool, msg string, opts []WaitOption) {
	t.Helper()
	o := f.waitOptions(t, msg, opts)
	Await[selenium.WebElement](t, f, el, func(el selenium.WebElement) (bool, error) {
		got, err := state(el)
		if err != nil {
			return false, err
		}
		return got == want, nil
	}, o.apply()...)
}

// WaitForText waits until text appears in the page source, or in the text of
// the Within element when one is given.
func (f *Fixture) WaitForText(t testing.TB, text string, opts ...WaitOption) {
	t.Helper()
	o := f.waitOptions(t, fmt.Sprintf("text %q not found", text), opts)
	Await[Finder](t, f, o.scope, func(scope Finder) (bool, error) {
		var (
			content string
			err     error
		)
		if el, ok := scope.(selenium.WebElement); ok {
			content, err = el.Text()
		} else {
			content, err = f.driver.PageSource()
		}
		if err != nil {
			return false, err
		}
		return strings.Contains(content, text), nil
	}, o.apply()...)
}

// WaitForTitle waits until the page title equals title.
func (f *Fixture) WaitForTitle(t testing.TB, title string, opts ...WaitOption) {
	t.Helper()
	f.waitForTitle(t, fmt.Sprintf("title is not %q", title), func(got string) bool {
		return got == title
	}, opts)
}

// WaitForTitleContains waits until the page title contains substr.
func (f *Fixture) WaitForTitleContains(t testing.TB, substr string, opts ...WaitOption) {
	t.Helper()
	f.waitForTitle(t, fmt.Sprintf("title does not contain %q", substr), func(got string) bool {
		return strings.Contains(got, substr)
	}, opts)
}

func (f *Fixture) waitForTitle(t testing.TB, msg string, match func(string) bool, opts []WaitOption) {
	t.Helper()
	o := f.waitOptions(t, msg, opts)
	f.WaitFor(t, func(wd selenium.WebDriver) (bool, error) {
		title, err := wd.Title()
		if err != nil {
			return false, err
		}
		return match(title), nil
	}, o.apply()...)
}

// FailIfCSSSelectorFound fails t with message if selector matches an element
// within scope right now. It does not wait.
func (f *Fixture) FailIfCSSSelectorFound(t testing.TB, scope Finder, selector, message string) {
	t.Helper()
	_, outcome, err := Lookup(scope, selector)
	if err != nil {
		t.Fatalf("Looking up CSS selector %q: %v", selector, err)
	}
	if outcome == Found {
		t.Fatal(message)
	}
}

// apply turns resolved options back into options, so that a helper can
// resolve once and pass the result to Await.
func (o waitOptions) apply() []WaitOption {
	return []WaitOption{Timeout(o.timeout), Message(o.message), Within(o.scope)}
}
