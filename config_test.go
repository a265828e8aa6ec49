package seleniumhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"SELENIUM_BROWSER",
	"SELENIUM_USE_RC",
	"SELENIUM_DEFAULT_TIMEOUT",
	"SKIP_SELENIUMTESTS",
	"SELENIUM_REMOTE_URL",
	"SELENIUM_DRIVER_PATH",
	"SELENIUM_VENDOR_DIR",
	"SELENIUM_BROWSER_BINARY",
	"SELENIUM_HEADLESS",
	"SELENIUM_FRAME_BUFFER",
	"SELENIUM_DISPLAY",
	"SELENIUM_LIVE_SERVER_PROXY",
	"SELENIUM_DEBUG",
	"SAUCE_USERNAME",
	"SAUCE_ACCESS_KEY",
	"SAUCE_CONNECT_PATH",
}

// clearConfigEnv unsets every configuration variable for the duration of t.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	want := Config{
		Browser:        "Chrome",
		DefaultTimeout: 4,
		RemoteURL:      DefaultRemoteURL,
		VendorDir:      "vendor",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig(nil) returned diff (-want/+got):\n%s", diff)
	}
	assert.Equal(t, 4*time.Second, cfg.Timeout())
	assert.False(t, cfg.Sauce())
}

func TestLoadConfigPrecedence(t *testing.T) {
	settings := Settings{
		"SELENIUM_BROWSER":         "Firefox",
		"SELENIUM_DEFAULT_TIMEOUT": 10,
		"SELENIUM_USE_RC":          true,
		"SKIP_SELENIUMTESTS":       true,
		"NOT_A_SETTING":            "ignored",
	}

	tests := []struct {
		desc string
		env  map[string]string
		want func(*Config)
	}{
		{
			desc: "settings override defaults",
			want: func(c *Config) {
				c.Browser = "Firefox"
				c.DefaultTimeout = 10
				c.UseRC = true
				c.Skip = true
			},
		},
		{
			desc: "environment overrides settings",
			env: map[string]string{
				"SELENIUM_BROWSER":         "Edge",
				"SELENIUM_DEFAULT_TIMEOUT": "2",
				"SELENIUM_USE_RC":          "false",
				"SKIP_SELENIUMTESTS":       "0",
			},
			want: func(c *Config) {
				c.Browser = "Edge"
				c.DefaultTimeout = 2
			},
		},
		{
			desc: "environment overrides only what it sets",
			env: map[string]string{
				"SELENIUM_BROWSER": "Chrome",
			},
			want: func(c *Config) {
				c.Browser = "Chrome"
				c.DefaultTimeout = 10
				c.UseRC = true
				c.Skip = true
			},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range test.env {
				t.Setenv(k, v)
			}

			got, err := LoadConfig(settings)
			require.NoError(t, err)

			want := defaultConfig()
			test.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("LoadConfig returned diff (-want/+got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		desc     string
		env      map[string]string
		settings Settings
	}{
		{
			desc: "zero timeout",
			env:  map[string]string{"SELENIUM_DEFAULT_TIMEOUT": "0"},
		},
		{
			desc: "negative timeout in settings",
			settings: Settings{
				"SELENIUM_DEFAULT_TIMEOUT": -1,
			},
		},
		{
			desc: "timeout not a number",
			env:  map[string]string{"SELENIUM_DEFAULT_TIMEOUT": "soon"},
		},
		{
			desc: "empty boolean",
			env:  map[string]string{"SELENIUM_USE_RC": ""},
		},
		{
			desc: "boolean setting given as text",
			settings: Settings{
				"SKIP_SELENIUMTESTS": "maybe",
			},
		},
		{
			desc: "bad display",
			env:  map[string]string{"SELENIUM_DISPLAY": "1.2.3"},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(test.settings); err == nil {
				t.Errorf("LoadConfig returned nil error")
			}
		})
	}
}

func TestLoadConfigIsNotCached(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SELENIUM_DEFAULT_TIMEOUT", "1")
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Timeout())

	t.Setenv("SELENIUM_DEFAULT_TIMEOUT", "7")
	cfg, err = LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.Timeout())
}

func TestLoadSettings(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "selenium.yaml")
	data := `
SELENIUM_BROWSER: Firefox
SELENIUM_DEFAULT_TIMEOUT: 12
SELENIUM_HEADLESS: true
SAUCE_USERNAME: alice
SAUCE_ACCESS_KEY: secret
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	cfg, err := LoadConfig(settings)
	require.NoError(t, err)

	assert.Equal(t, "Firefox", cfg.Browser)
	assert.Equal(t, 12*time.Second, cfg.Timeout())
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.Sauce())
}

func TestLoadSettingsErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadSettings(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("LoadSettings of a missing file returned nil error")
	}

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- not\n- a mapping\n"), 0644))
	if _, err := LoadSettings(bad); err == nil {
		t.Errorf("LoadSettings of a YAML sequence returned nil error")
	}
}

func TestSkipRequested(t *testing.T) {
	tests := []struct {
		desc     string
		env      map[string]string
		settings Settings
		want     bool
	}{
		{desc: "unset"},
		{desc: "env", env: map[string]string{"SKIP_SELENIUMTESTS": "true"}, want: true},
		{desc: "settings", settings: Settings{"SKIP_SELENIUMTESTS": true}, want: true},
		{
			desc:     "env overrides settings",
			env:      map[string]string{"SKIP_SELENIUMTESTS": "false"},
			settings: Settings{"SKIP_SELENIUMTESTS": true},
		},
		{
			desc: "other settings invalid",
			env:  map[string]string{"SKIP_SELENIUMTESTS": "1", "SELENIUM_DEFAULT_TIMEOUT": "abc"},
			want: true,
		},
		{desc: "skip value malformed", env: map[string]string{"SKIP_SELENIUMTESTS": "maybe"}},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, test.want, SkipRequested(test.settings))
		})
	}
}
