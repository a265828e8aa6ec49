package seleniumhelpers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tebeka/selenium"
)

// PollInterval is how often WaitFor re-evaluates its predicate.
const PollInterval = 100 * time.Millisecond

// Predicate reports whether an awaited condition holds for subject.
type Predicate[S any] func(subject S) (bool, error)

// WaitFor polls pred(subject) through the driver's explicit wait until it
// returns true or timeout elapses.
//
// A predicate error for which IsNotFound holds counts as "not yet". Any
// other predicate error stops the wait and is returned wrapped. If the
// timeout elapses, the result is a *WaitTimeoutError carrying message.
func WaitFor[S any](wd selenium.WebDriver, subject S, pred Predicate[S], timeout time.Duration, message string) error {
	var predErr error
	cond := func(selenium.WebDriver) (bool, error) {
		ok, err := pred(subject)
		if err != nil {
			if IsNotFound(err) {
				return false, nil
			}
			predErr = err
			return false, err
		}
		return ok, nil
	}

	log.Debug().Dur("timeout", timeout).Str("message", message).Msg("waiting")
	err := wd.WaitWithTimeoutAndInterval(cond, timeout, PollInterval)
	switch {
	case err == nil:
		return nil
	case predErr != nil:
		return fmt.Errorf("waitFor predicate failed: %w", predErr)
	default:
		log.Debug().Err(err).Str("message", message).Msg("wait timed out")
		return &WaitTimeoutError{Timeout: timeout, Message: message}
	}
}

// Finder is implemented by both selenium.WebDriver and selenium.WebElement.
type Finder interface {
	FindElement(by, value string) (selenium.WebElement, error)
	FindElements(by, value string) ([]selenium.WebElement, error)
}

// Outcome is the result of an immediate lookup.
type Outcome int

const (
	NotFound Outcome = iota
	Found
)

func (o Outcome) String() string {
	if o == Found {
		return "Found"
	}
	return "NotFound"
}

// Lookup finds the first element matching the CSS selector within scope
// without waiting. A "no such element" reply is reported as NotFound, not as
// an error.
func Lookup(scope Finder, selector string) (selenium.WebElement, Outcome, error) {
	el, err := scope.FindElement(selenium.ByCSSSelector, selector)
	switch {
	case err == nil:
		return el, Found, nil
	case IsNotFound(err):
		return nil, NotFound, nil
	default:
		return nil, NotFound, err
	}
}
