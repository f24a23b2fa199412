package capture

import (
	"context"
	"time"
)

// The capture pipeline never speaks the portal's wire protocol directly.
// Everything goes through these surfaces, implemented by the browser
// automation engine in internal/browser and mocked in tests.

// Dialog is an intercepted native browser dialog (alert or confirm).
type Dialog interface {
	Message() string
	Accept() error
	Dismiss() error
}

// Context is one rendering context: the top document or an embedded frame.
// Has is a bounded, non-waiting existence check; WaitFor blocks up to the
// given timeout for the selector to appear.
type Context interface {
	Has(selector string) (bool, error)
	Fill(selector, value string) error
	Press(selector, key string) error
	Click(selector string) error
	WaitFor(selector string, timeout time.Duration) error
	Eval(script string, args ...interface{}) error
}

// Frame is an embedded rendering context. Frame handles are not stable
// across navigation: after any WaitForLoad the caller must re-resolve the
// frame by name instead of reusing the handle.
type Frame interface {
	Context
	Name() string
	URL() string
	WaitForLoad(timeout time.Duration) error
}

// Popup is a separate top-level window spawned from a page.
type Popup interface {
	WaitFor(selector string, timeout time.Duration) error
	ScreenshotElement(selector, path string) error
	Close() error
}

// Page is the top-level controllable browsing surface bound to one session.
type Page interface {
	Context

	Navigate(url string, timeout time.Duration) error
	// WaitForIdle waits, best effort, for in-flight navigation and network
	// activity to settle.
	WaitForIdle(timeout time.Duration) error
	URL() string

	// SelectText focuses the field and selects its current content so
	// subsequent key events replace it.
	SelectText(selector string) error
	// TypeKeys emits real key events into the focused element. The portal's
	// own scripts listen for keydown/keyup to enable its submit control, so
	// direct value assignment does not work.
	TypeKeys(text string) error
	SelectOption(selector, value string) error

	Frames() []Frame
	FrameByName(name string) (Frame, bool)

	// SetDialogHandler installs the single active native-dialog listener.
	// While no handler is set, dialogs are dismissed so the page cannot
	// deadlock on an unanswered prompt.
	SetDialogHandler(fn func(Dialog))
	ClearDialogHandler()

	// PopupEvents delivers windows as they are spawned from this page.
	PopupEvents() <-chan Popup
	// Windows returns every window spawned from this page so far, in
	// creation order.
	Windows() []Popup

	Close() error
}

// Engine opens fresh browsing sessions. One page is opened per batch and
// closed unconditionally at batch end.
type Engine interface {
	NewPage(ctx context.Context) (Page, error)
}
