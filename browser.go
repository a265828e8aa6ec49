package seleniumhelpers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tebeka/selenium"
)

// Browser enumerates the browsers SelectDriver can drive without a remote
// hub, plus the reserved headless GhostDriver endpoint.
type Browser int

const (
	Chrome Browser = iota + 1
	Firefox
	Edge
	// GhostDriver is a PhantomJS GhostDriver listening on GhostDriverURL.
	GhostDriver
)

// GhostDriverName is the reserved SELENIUM_BROWSER value selecting GhostDriver.
const GhostDriverName = "ghostdriver"

// GhostDriverURL is where a locally started GhostDriver listens.
const GhostDriverURL = "http://127.0.0.1:8080/wd/hub"

var browserNames = map[Browser]string{
	Chrome:      "Chrome",
	Firefox:     "Firefox",
	Edge:        "Edge",
	GhostDriver: GhostDriverName,
}

// driverBinaries are the executables implementing each local browser.
var driverBinaries = map[Browser]string{
	Chrome:  "chromedriver",
	Firefox: "geckodriver",
	Edge:    "msedgedriver",
}

func (b Browser) String() string {
	if n, ok := browserNames[b]; ok {
		return n
	}
	return fmt.Sprintf("Browser(%d)", int(b))
}

// DriverBinary returns the name of the WebDriver executable for b, or "" if
// b is not backed by a local executable.
func (b Browser) DriverBinary() string {
	return driverBinaries[b]
}

// ParseBrowser maps a SELENIUM_BROWSER value to a Browser. Names are matched
// exactly, as they are the names of the drivers ("Chrome", "Firefox", "Edge")
// or the reserved "ghostdriver".
func ParseBrowser(name string) (Browser, error) {
	for b, n := range browserNames {
		if n == name {
			return b, nil
		}
	}
	return 0, &DriverNotFoundError{Name: name}
}

// BrowserNames returns the names accepted by ParseBrowser, sorted.
func BrowserNames() []string {
	var names []string
	for _, n := range browserNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// capabilityRegistry holds the desired capabilities for remote sessions,
// keyed by uppercased browser name.
var capabilityRegistry = map[string]selenium.Capabilities{
	"ANDROID":          {"browserName": "android", "version": "", "platform": "ANDROID"},
	"CHROME":           {"browserName": "chrome", "version": "", "platform": "ANY"},
	"EDGE":             {"browserName": "MicrosoftEdge", "version": "", "platform": "WINDOWS"},
	"FIREFOX":          {"browserName": "firefox", "acceptInsecureCerts": true},
	"HTMLUNIT":         {"browserName": "htmlunit", "version": "", "platform": "ANY"},
	"HTMLUNITWITHJS":   {"browserName": "htmlunit", "version": "firefox", "platform": "ANY", "javascriptEnabled": true},
	"INTERNETEXPLORER": {"browserName": "internet explorer", "version": "", "platform": "WINDOWS"},
	"IPAD":             {"browserName": "iPad", "version": "", "platform": "MAC"},
	"IPHONE":           {"browserName": "iPhone", "version": "", "platform": "MAC"},
	"OPERA":            {"browserName": "opera", "version": "", "platform": "ANY"},
	"PHANTOMJS":        {"browserName": "phantomjs", "version": "", "platform": "ANY", "javascriptEnabled": true},
	"SAFARI":           {"browserName": "safari", "version": "", "platform": "MAC"},
}

// RemoteBrowserNames returns the keys of the remote capability registry,
// sorted.
func RemoteBrowserNames() []string {
	var names []string
	for n := range capabilityRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RemoteCapabilities returns a copy of the registered capabilities for name,
// which is matched case-insensitively.
func RemoteCapabilities(name string) (selenium.Capabilities, error) {
	caps, ok := capabilityRegistry[strings.ToUpper(name)]
	if !ok {
		return nil, &ConfigurationError{
			Setting: "SELENIUM_BROWSER",
			Value:   name,
			Choices: RemoteBrowserNames(),
		}
	}
	out := make(selenium.Capabilities, len(caps))
	for k, v := range caps {
		out[k] = v
	}
	return out, nil
}
