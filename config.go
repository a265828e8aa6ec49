package seleniumhelpers

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tebeka/selenium"
	"gopkg.in/yaml.v3"
)

// Defaults for the settings that have one.
const (
	DefaultBrowser        = "Chrome"
	DefaultTimeoutSeconds = 4
	DefaultRemoteURL      = "http://127.0.0.1:4444/wd/hub"
	DefaultVendorDir      = "vendor"
)

// Config holds every setting that influences driver selection and waiting.
//
// Each field is resolved from its environment variable first, then from the
// framework-level Settings, then from the built-in default. Use LoadConfig to
// obtain one; the zero value is not meaningful.
type Config struct {
	// Browser names the browser to drive. In remote (RC) mode it is looked
	// up, uppercased, in the capability registry. Otherwise it must name a
	// local driver (see ParseBrowser) or be "ghostdriver".
	Browser string `envconfig:"SELENIUM_BROWSER" yaml:"SELENIUM_BROWSER"`
	// UseRC requests a remote session built from the capability registry.
	UseRC bool `envconfig:"SELENIUM_USE_RC" yaml:"SELENIUM_USE_RC"`
	// DefaultTimeout is the wait timeout, in seconds, used when a helper is
	// not given one explicitly.
	DefaultTimeout int `envconfig:"SELENIUM_DEFAULT_TIMEOUT" yaml:"SELENIUM_DEFAULT_TIMEOUT"`
	// Skip disables every fixture: Start skips the calling test.
	Skip bool `envconfig:"SKIP_SELENIUMTESTS" yaml:"SKIP_SELENIUMTESTS"`

	// RemoteURL is the WebDriver hub used in RC mode.
	RemoteURL string `envconfig:"SELENIUM_REMOTE_URL" yaml:"SELENIUM_REMOTE_URL"`
	// DriverPath, if set, is the local driver binary to run.
	DriverPath string `envconfig:"SELENIUM_DRIVER_PATH" yaml:"SELENIUM_DRIVER_PATH"`
	// VendorDir is searched for driver binaries not found on PATH.
	VendorDir string `envconfig:"SELENIUM_VENDOR_DIR" yaml:"SELENIUM_VENDOR_DIR"`
	// BrowserBinary overrides the browser executable the driver launches.
	BrowserBinary string `envconfig:"SELENIUM_BROWSER_BINARY" yaml:"SELENIUM_BROWSER_BINARY"`
	Headless      bool   `envconfig:"SELENIUM_HEADLESS" yaml:"SELENIUM_HEADLESS"`
	// FrameBuffer starts an Xvfb server for the local driver.
	FrameBuffer bool `envconfig:"SELENIUM_FRAME_BUFFER" yaml:"SELENIUM_FRAME_BUFFER"`
	// Display is an existing X display ("N" or "N.M") for the local driver.
	Display string `envconfig:"SELENIUM_DISPLAY" yaml:"SELENIUM_DISPLAY"`
	// LiveServerProxy is the listen address of a SOCKS5 proxy that routes
	// every browser connection to the live server. Empty disables it.
	LiveServerProxy string `envconfig:"SELENIUM_LIVE_SERVER_PROXY" yaml:"SELENIUM_LIVE_SERVER_PROXY"`
	Debug           bool   `envconfig:"SELENIUM_DEBUG" yaml:"SELENIUM_DEBUG"`

	SauceUsername  string `envconfig:"SAUCE_USERNAME" yaml:"SAUCE_USERNAME"`
	SauceAccessKey string `envconfig:"SAUCE_ACCESS_KEY" yaml:"SAUCE_ACCESS_KEY"`
	// SauceConnectPath is the Sauce Connect Proxy binary. When set, Sauce
	// sessions go through a tunnel started for each session, so the remote
	// browser can reach the live server.
	SauceConnectPath string `envconfig:"SAUCE_CONNECT_PATH" yaml:"SAUCE_CONNECT_PATH"`

	// Proxy is added to the session capabilities when non-nil. It is set by
	// the fixture, not by configuration.
	Proxy *selenium.Proxy `ignored:"true" yaml:"-"`
}

// Timeout returns DefaultTimeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.DefaultTimeout) * time.Second
}

// Sauce reports whether Sauce Labs credentials are configured.
func (c Config) Sauce() bool {
	return c.SauceUsername != "" && c.SauceAccessKey != ""
}

func defaultConfig() Config {
	return Config{
		Browser:        DefaultBrowser,
		DefaultTimeout: DefaultTimeoutSeconds,
		RemoteURL:      DefaultRemoteURL,
		VendorDir:      DefaultVendorDir,
	}
}

// Settings is the framework-level configuration layer. Keys are the
// environment variable names (SELENIUM_BROWSER, ...); values are typed, so a
// boolean setting must hold a bool. Keys that name no setting are ignored.
type Settings map[string]interface{}

// LoadSettings reads Settings from a YAML mapping.
func LoadSettings(path string) (Settings, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := Settings{}
	if err := yaml.Unmarshal(buf, &s); err != nil {
		return nil, fmt.Errorf("parsing settings %q: %w", path, err)
	}
	return s, nil
}

func (s Settings) apply(c interface{}) error {
	if len(s) == 0 {
		return nil
	}
	buf, err := yaml.Marshal(map[string]interface{}(s))
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return fmt.Errorf("applying settings: %w", err)
	}
	return nil
}

// LoadConfig resolves a Config: environment variables override settings,
// which override the defaults. Nothing is cached; call it again to observe
// changes to the environment.
func LoadConfig(settings Settings) (Config, error) {
	cfg := defaultConfig()
	if err := settings.apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.DefaultTimeout <= 0 {
		return Config{}, fmt.Errorf("SELENIUM_DEFAULT_TIMEOUT must be a positive number of seconds, got %d", cfg.DefaultTimeout)
	}
	if cfg.Display != "" && !isDisplay(cfg.Display) {
		return Config{}, fmt.Errorf("SELENIUM_DISPLAY %q must be of the format 'x' or 'x.y' where x and y are integers", cfg.Display)
	}
	return cfg, nil
}

type skipConfig struct {
	Skip bool `envconfig:"SKIP_SELENIUMTESTS" yaml:"SKIP_SELENIUMTESTS"`
}

// SkipRequested resolves SKIP_SELENIUMTESTS alone, so that a malformed
// unrelated setting cannot prevent skipping. A malformed skip value reads as
// false; LoadConfig reports it.
func SkipRequested(settings Settings) bool {
	var c skipConfig
	if err := settings.apply(&c); err != nil {
		c.Skip = false
	}
	if err := envconfig.Process("", &c); err != nil {
		return false
	}
	return c.Skip
}
