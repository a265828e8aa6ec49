package seleniumhelpers

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/sauce"
)

var newRemote = selenium.NewRemote

// startSauceConnect starts a Sauce Connect tunnel and returns the WebDriver
// URL prefix that goes through it.
var startSauceConnect = func(cfg Config, port int) (stopper, string, error) {
	sc := &sauce.Connect{
		Path:                cfg.SauceConnectPath,
		UserName:            cfg.SauceUsername,
		AccessKey:           cfg.SauceAccessKey,
		SeleniumPort:        port,
		QuitProcessUponExit: true,
		ExtraVerbose:        cfg.Debug,
	}
	if err := sc.Start(); err != nil {
		return nil, "", err
	}
	return sc, sc.Addr(), nil
}

type stopper interface {
	Stop() error
}

// edgeOptionsKey is where msedgedriver expects its Chromium options.
const edgeOptionsKey = "ms:edgeOptions"

// Driver is a live WebDriver session together with the local processes that
// back it. It must be released with Quit.
type Driver struct {
	selenium.WebDriver

	// Name is the SELENIUM_BROWSER value the session was created for.
	Name string
	// Addr is the WebDriver URL prefix the session talks to.
	Addr string

	service *selenium.Service
	tunnel  stopper
}

// NewDriver wraps an existing session. Quit only ends the session.
func NewDriver(wd selenium.WebDriver, name string) *Driver {
	return &Driver{WebDriver: wd, Name: name}
}

// Quit ends the session and stops the local driver service or Sauce Connect
// tunnel, if any.
func (d *Driver) Quit() error {
	err := d.WebDriver.Quit()
	if d.tunnel != nil {
		log.Debug().Str("browser", d.Name).Msg("stopping Sauce Connect")
		if serr := d.tunnel.Stop(); serr != nil && err == nil {
			err = serr
		}
		d.tunnel = nil
	}
	if d.service != nil {
		log.Debug().Str("browser", d.Name).Msg("stopping local WebDriver service")
		if serr := d.service.Stop(); serr != nil && err == nil {
			err = serr
		}
		d.service = nil
	}
	return err
}

// SelectDriver opens a new browser session as configured by cfg.
//
// With cfg.UseRC set, cfg.Browser is looked up (uppercased) in the remote
// capability registry and a session is requested from cfg.RemoteURL, or from
// Sauce Labs when credentials are configured. An unknown name yields a
// *ConfigurationError listing the registry. The reserved name "ghostdriver"
// connects to GhostDriverURL. Any other name must be a local browser, whose
// driver binary is started on a free port; unknown names and missing
// binaries yield a *DriverNotFoundError.
//
// Every call starts a new session.
func SelectDriver(cfg Config) (*Driver, error) {
	if cfg.Debug {
		selenium.SetDebug(true)
	}
	switch {
	case cfg.UseRC:
		return remoteDriver(cfg)
	case cfg.Browser == GhostDriverName:
		caps := selenium.Capabilities{
			"takesScreenshot":   false,
			"javascriptEnabled": true,
		}
		addProxy(caps, cfg)
		log.Debug().Str("addr", GhostDriverURL).Msg("connecting to GhostDriver")
		wd, err := newRemote(caps, GhostDriverURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to GhostDriver at %s: %w", GhostDriverURL, err)
		}
		return &Driver{WebDriver: wd, Name: cfg.Browser, Addr: GhostDriverURL}, nil
	}
	return localDriver(cfg)
}

func remoteDriver(cfg Config) (*Driver, error) {
	caps, err := RemoteCapabilities(cfg.Browser)
	if err != nil {
		return nil, err
	}
	addr := cfg.RemoteURL
	var tunnel stopper
	if cfg.Sauce() {
		addr = sauce.Addr(cfg.SauceUsername, cfg.SauceAccessKey)
		if err := addSauce(caps); err != nil {
			return nil, err
		}
		if cfg.SauceConnectPath != "" {
			port, err := pickUnusedPort()
			if err != nil {
				return nil, fmt.Errorf("picking a port for Sauce Connect: %w", err)
			}
			tunnel, addr, err = startSauceConnect(cfg, port)
			if err != nil {
				return nil, fmt.Errorf("starting Sauce Connect: %w", err)
			}
		}
	}
	addProxy(caps, cfg)
	log.Debug().Str("browser", cfg.Browser).Bool("sauce", cfg.Sauce()).Msg("requesting remote session")
	wd, err := newRemote(caps, addr)
	if err != nil {
		if tunnel != nil {
			if serr := tunnel.Stop(); serr != nil {
				log.Warn().Err(serr).Msg("stopping Sauce Connect after failed session")
			}
		}
		return nil, fmt.Errorf("requesting %s session: %w", cfg.Browser, err)
	}
	return &Driver{WebDriver: wd, Name: cfg.Browser, Addr: addr, tunnel: tunnel}, nil
}

func addSauce(caps selenium.Capabilities) error {
	sc := &sauce.Capabilities{}
	if b, ok := caps["browserName"].(string); ok {
		sc.Browser = b
	}
	if p, ok := caps["platform"].(string); ok && p != "ANY" {
		sc.Platform = p
	}
	m, err := sc.ToMap()
	if err != nil {
		return fmt.Errorf("encoding Sauce capabilities: %w", err)
	}
	for k, v := range m {
		caps[k] = v
	}
	return nil
}

func addProxy(caps selenium.Capabilities, cfg Config) {
	if cfg.Proxy != nil {
		caps.AddProxy(*cfg.Proxy)
	}
}

func localCapabilities(b Browser, cfg Config) selenium.Capabilities {
	switch b {
	case Firefox:
		fc := firefox.Capabilities{Binary: cfg.BrowserBinary}
		if cfg.Headless {
			fc.Args = append(fc.Args, "-headless")
		}
		caps := selenium.Capabilities{"browserName": "firefox"}
		caps.AddFirefox(fc)
		return caps
	case Edge:
		caps := selenium.Capabilities{"browserName": "MicrosoftEdge"}
		caps[edgeOptionsKey] = chromiumOptions(cfg)
		return caps
	default:
		caps := selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(chromiumOptions(cfg))
		return caps
	}
}

func chromiumOptions(cfg Config) chrome.Capabilities {
	cc := chrome.Capabilities{Path: cfg.BrowserBinary, W3C: true}
	if cfg.Headless {
		cc.Args = append(cc.Args, "--headless", "--no-sandbox")
	}
	return cc
}

func localDriver(cfg Config) (*Driver, error) {
	b, err := ParseBrowser(cfg.Browser)
	if err != nil {
		return nil, err
	}
	if b.DriverBinary() == "" {
		return nil, &DriverNotFoundError{Name: cfg.Browser}
	}
	path, err := FindDriver(b, cfg)
	if err != nil {
		return nil, err
	}
	opts, err := serviceOptions(cfg)
	if err != nil {
		return nil, err
	}
	port, err := pickUnusedPort()
	if err != nil {
		return nil, fmt.Errorf("picking a port for %s: %w", path, err)
	}

	log.Debug().Str("browser", b.String()).Str("driver", path).Int("port", port).Msg("starting local WebDriver service")
	svc, addr, err := startService(b, path, port, opts...)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}

	caps := localCapabilities(b, cfg)
	addProxy(caps, cfg)
	wd, err := newRemote(caps, addr)
	if err != nil {
		if svc != nil {
			if serr := svc.Stop(); serr != nil {
				log.Warn().Err(serr).Str("driver", path).Msg("stopping WebDriver service after failed session")
			}
		}
		return nil, fmt.Errorf("opening %s session: %w", strings.ToLower(b.String()), err)
	}
	return &Driver{WebDriver: wd, Name: cfg.Browser, Addr: addr, service: svc}, nil
}
