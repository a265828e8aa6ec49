// Package seleniumtest provides in-process stand-ins for a WebDriver session
// and for testing.TB, so that code built on github.com/tebeka/selenium can be
// exercised without a browser.
//
// Driver and Element embed the selenium interfaces; calling a method they do
// not implement panics.
package seleniumtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/tebeka/selenium"
)

// NoSuchElement returns the error a W3C server reports for an empty lookup.
func NoSuchElement(selector string) error {
	return &selenium.Error{
		Err:      "no such element",
		Message:  fmt.Sprintf("Unable to locate element: %s", selector),
		HTTPCode: 404,
	}
}

// Page is a static DOM: a title, a source and the elements matching each CSS
// selector. It is safe to mutate while a wait is polling it.
type Page struct {
	mu       sync.Mutex
	title    string
	source   string
	elements map[string][]*Element
}

// NewPage returns a page with the given title and source.
func NewPage(title, source string) *Page {
	return &Page{title: title, source: source, elements: map[string][]*Element{}}
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

func (p *Page) SetSource(source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
}

// Add makes selector match els, in addition to earlier matches.
func (p *Page) Add(selector string, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
}

// Remove makes selector match nothing.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

func (p *Page) find(selector string) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Element(nil), p.elements[selector]...)
}

// Driver is a fake selenium.WebDriver serving a single Page.
type Driver struct {
	selenium.WebDriver

	Page *Page

	mu      sync.Mutex
	url     string
	quits   int
	scripts []string
	// ScriptErr, if set, is returned by ExecuteScript.
	ScriptErr error
	// TitleErr, if set, is returned by Title.
	TitleErr error
}

// NewDriver returns a driver showing page.
func NewDriver(page *Page) *Driver {
	return &Driver{Page: page}
}

func (d *Driver) Get(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	return nil
}

func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) Title() (string, error) {
	if d.TitleErr != nil {
		return "", d.TitleErr
	}
	d.Page.mu.Lock()
	defer d.Page.mu.Unlock()
	return d.Page.title, nil
}

func (d *Driver) PageSource() (string, error) {
	d.Page.mu.Lock()
	defer d.Page.mu.Unlock()
	return d.Page.source, nil
}

func (d *Driver) FindElement(by, value string) (selenium.WebElement, error) {
	if by != selenium.ByCSSSelector {
		return nil, fmt.Errorf("fake driver only supports %q lookups, got %q", selenium.ByCSSSelector, by)
	}
	els := d.Page.find(value)
	if len(els) == 0 {
		return nil, NoSuchElement(value)
	}
	return els[0], nil
}

func (d *Driver) FindElements(by, value string) ([]selenium.WebElement, error) {
	if by != selenium.ByCSSSelector {
		return nil, fmt.Errorf("fake driver only supports %q lookups, got %q", selenium.ByCSSSelector, by)
	}
	return webElements(d.Page.find(value)), nil
}

// ExecuteScript records script. The only script it evaluates is reading
// arguments[0].innerHTML of an *Element.
func (d *Driver) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	d.mu.Lock()
	d.scripts = append(d.scripts, script)
	d.mu.Unlock()
	if d.ScriptErr != nil {
		return nil, d.ScriptErr
	}
	if script == "return arguments[0].innerHTML" && len(args) == 1 {
		if el, ok := args[0].(*Element); ok {
			return el.InnerHTML(), nil
		}
	}
	return nil, nil
}

// Scripts returns every script passed to ExecuteScript.
func (d *Driver) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scripts...)
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return nil
}

// Quits reports how many times Quit was called.
func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

// WaitWithTimeoutAndInterval polls condition the way the remote client does:
// a condition error ends the wait, and the timeout is checked after each
// unsuccessful evaluation.
func (d *Driver) WaitWithTimeoutAndInterval(condition selenium.Condition, timeout, interval time.Duration) error {
	start := time.Now()
	for {
		done, err := condition(d)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if elapsed := time.Since(start); elapsed > timeout {
			return fmt.Errorf("timeout after %v", elapsed)
		}
		time.Sleep(interval)
	}
}

func (d *Driver) WaitWithTimeout(condition selenium.Condition, timeout time.Duration) error {
	return d.WaitWithTimeoutAndInterval(condition, timeout, 100*time.Millisecond)
}

func (d *Driver) Wait(condition selenium.Condition) error {
	return d.WaitWithTimeout(condition, 60*time.Second)
}

// Element is a fake selenium.WebElement. New elements are enabled and
// displayed.
type Element struct {
	selenium.WebElement

	mu        sync.Mutex
	text      string
	innerHTML string
	enabled   bool
	displayed bool
	children  map[string][]*Element
	// Err, if set, is returned by every state query.
	Err error
}

// NewElement returns an enabled, displayed element with the given text.
func NewElement(text string) *Element {
	return &Element{
		text:      text,
		innerHTML: text,
		enabled:   true,
		displayed: true,
		children:  map[string][]*Element{},
	}
}

func (e *Element) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

func (e *Element) SetInnerHTML(html string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.innerHTML = html
}

func (e *Element) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

func (e *Element) SetDisplayed(displayed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.displayed = displayed
}

// Add makes selector match els within e.
func (e *Element) Add(selector string, els ...*Element) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children[selector] = append(e.children[selector], els...)
}

// Remove makes selector match nothing within e.
func (e *Element) Remove(selector string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.children, selector)
}

func (e *Element) InnerHTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.innerHTML
}

func (e *Element) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return "", e.Err
	}
	return e.text, nil
}

func (e *Element) IsEnabled() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return false, e.Err
	}
	return e.enabled, nil
}

func (e *Element) IsDisplayed() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return false, e.Err
	}
	return e.displayed, nil
}

func (e *Element) FindElement(by, value string) (selenium.WebElement, error) {
	els, err := e.find(by, value)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, NoSuchElement(value)
	}
	return els[0], nil
}

func (e *Element) FindElements(by, value string) ([]selenium.WebElement, error) {
	els, err := e.find(by, value)
	if err != nil {
		return nil, err
	}
	return webElements(els), nil
}

func (e *Element) find(by, value string) ([]*Element, error) {
	if by != selenium.ByCSSSelector {
		return nil, fmt.Errorf("fake element only supports %q lookups, got %q", selenium.ByCSSSelector, by)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Element(nil), e.children[value]...), nil
}

func webElements(els []*Element) []selenium.WebElement {
	out := make([]selenium.WebElement, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out
}
