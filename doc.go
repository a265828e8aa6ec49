/*
Package seleniumhelpers makes Selenium end-to-end tests of an http.Handler
short to write.

A Fixture serves the handler on a local live server, opens one browser
session through github.com/tebeka/selenium and offers helpers that wait for
elements, text, titles and element state, failing the calling test with a
descriptive message when the wait times out.

Which browser is driven, and how, is decided by settings resolved from the
environment first, then from framework-level Settings, then from defaults:

	SELENIUM_BROWSER          browser name, default "Chrome"
	SELENIUM_USE_RC           request a remote session from SELENIUM_REMOTE_URL
	SELENIUM_DEFAULT_TIMEOUT  wait timeout in seconds, default 4
	SKIP_SELENIUMTESTS        skip every fixture

The remaining SELENIUM_* settings choose the driver binary, headless mode, an
Xvfb frame buffer and a SOCKS5 proxy for the live server. SAUCE_USERNAME and
SAUCE_ACCESS_KEY send remote sessions to Sauce Labs, through a Sauce Connect
tunnel when SAUCE_CONNECT_PATH is set. The seleniumhelpers command prints the
resolved configuration and downloads driver binaries.

Example usage:

	func TestLogin(t *testing.T) {
		f := seleniumhelpers.Start(t, app.NewRouter())

		f.GetPath(t, "/login")
		f.WaitForTitleContains(t, "Sign in")
		button := f.WaitForCSSSelector(t, "form button[type=submit]")[0]
		f.WaitForEnabled(t, button)
		if err := button.Click(); err != nil {
			t.Fatal(err)
		}
		f.WaitForText(t, "Welcome back", seleniumhelpers.Timeout(10*time.Second))
		f.FailIfCSSSelectorFound(t, f.Driver(), ".error", "login showed an error")
	}

The fixture is released when the test completes. Suites that share one
browser across many tests can embed suite.Suite from the suite subpackage.
*/
package seleniumhelpers
