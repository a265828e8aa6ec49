package seleniumhelpers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tebeka/selenium"
)

// noSuchElement is the error code WebDriver servers return when a lookup
// matches nothing. Legacy (pre-W3C) servers use the same string as the
// message prefix.
const noSuchElement = "no such element"

// ConfigurationError reports a setting whose value is not one of the
// accepted choices.
type ConfigurationError struct {
	// Setting is the name of the offending setting, e.g. SELENIUM_BROWSER.
	Setting string
	// Value is the rejected value.
	Value string
	// Choices lists every accepted value.
	Choices []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %q; valid choices: %s", e.Setting, e.Value, strings.Join(e.Choices, ", "))
}

// DriverNotFoundError reports a browser name with no local driver, or a
// driver whose binary could not be located.
type DriverNotFoundError struct {
	// Name is the requested browser name.
	Name string
	// Binary is the driver executable that was searched for. It is empty
	// when the name itself is unknown.
	Binary string
}

func (e *DriverNotFoundError) Error() string {
	if e.Binary == "" {
		return fmt.Sprintf("no local WebDriver named %q (known: %s)", e.Name, strings.Join(BrowserNames(), ", "))
	}
	return fmt.Sprintf("WebDriver binary %q for browser %q not found", e.Binary, e.Name)
}

// WaitTimeoutError is returned by WaitFor when the predicate never held.
type WaitTimeoutError struct {
	Timeout time.Duration
	Message string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("waitFor timed out after %g seconds. Error message: %s", e.Timeout.Seconds(), e.Message)
}

// IsNotFound reports whether err is the WebDriver "no such element" error,
// in either its W3C or its legacy form.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var serr *selenium.Error
	if errors.As(err, &serr) {
		return serr.Err == noSuchElement
	}
	return strings.HasPrefix(err.Error(), noSuchElement)
}

// IsTimeout reports whether err is a *WaitTimeoutError.
func IsTimeout(err error) bool {
	var terr *WaitTimeoutError
	return errors.As(err, &terr)
}
