package seleniumhelpers

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tebeka/selenium"
)

var lookPath = exec.LookPath

// startService launches the local WebDriver server for b and returns the
// URL prefix clients should use.
var startService = func(b Browser, path string, port int, opts ...selenium.ServiceOption) (*selenium.Service, string, error) {
	switch b {
	case Chrome, Edge:
		// msedgedriver accepts the chromedriver command line.
		s, err := selenium.NewChromeDriverService(path, port, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("http://127.0.0.1:%d/wd/hub", port), nil
	case Firefox:
		s, err := selenium.NewGeckoDriverService(path, port, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("http://127.0.0.1:%d", port), nil
	}
	return nil, "", fmt.Errorf("browser %s has no local service", b)
}

// isDisplay validates that the given disp is in the format "x" or "x.y", where
// x and y are both integers.
func isDisplay(disp string) bool {
	ds := strings.Split(disp, ".")
	if len(ds) > 2 {
		return false
	}

	for _, d := range ds {
		if _, err := strconv.Atoi(d); err != nil {
			return false
		}
	}
	return true
}

// FindDriver locates the driver binary for b: cfg.DriverPath if set, then
// PATH, then the newest matching file in cfg.VendorDir.
func FindDriver(b Browser, cfg Config) (string, error) {
	binary := b.DriverBinary()
	if cfg.DriverPath != "" {
		if _, err := os.Stat(cfg.DriverPath); err != nil {
			return "", &DriverNotFoundError{Name: cfg.Browser, Binary: cfg.DriverPath}
		}
		return cfg.DriverPath, nil
	}
	if p, err := lookPath(binary); err == nil {
		return p, nil
	}
	if cfg.VendorDir != "" {
		if p := findBestPath(filepath.Join(cfg.VendorDir, binary+"*"), true); p != "" {
			return p, nil
		}
	}
	return "", &DriverNotFoundError{Name: cfg.Browser, Binary: binary}
}

// findBestPath returns the last regular file matching glob in lexical order,
// which for versioned file names is the newest. If binary is set, only
// executable files are considered.
func findBestPath(glob string, binary bool) string {
	matches, err := filepath.Glob(glob)
	if err != nil {
		log.Warn().Err(err).Str("glob", glob).Msg("bad driver glob")
		return ""
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	for i := len(matches) - 1; i >= 0; i-- {
		path := matches[i]
		fi, err := os.Stat(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot stat driver candidate")
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		if binary && fi.Mode().Perm()&0111 == 0 {
			continue
		}
		return path
	}
	return ""
}

func pickUnusedPort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}

// serviceOptions translates the display-related settings into options for
// the local WebDriver service.
func serviceOptions(cfg Config) ([]selenium.ServiceOption, error) {
	var opts []selenium.ServiceOption
	if cfg.FrameBuffer && cfg.Display != "" {
		return nil, fmt.Errorf("SELENIUM_FRAME_BUFFER and SELENIUM_DISPLAY are mutually exclusive")
	}
	if cfg.FrameBuffer {
		opts = append(opts, selenium.StartFrameBuffer())
	}
	if cfg.Display != "" {
		opts = append(opts, selenium.Display(cfg.Display, os.Getenv("XAUTHORITY")))
	}
	if cfg.Debug {
		opts = append(opts, selenium.Output(log.Logger.With().Str("component", "webdriver").Logger()))
	}
	return opts, nil
}
