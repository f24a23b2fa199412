// internal/browser/page.go
package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

// typeDelayMs paces synthetic key events so the portal's per-key handlers
// fire in order.
const typeDelayMs = 50

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

// page adapts a playwright.Page (and its owning context) to capture.Page.
type page struct {
	pw      playwright.Page
	bctx    playwright.BrowserContext
	logger  *zap.Logger
	onClose func()

	closeOnce sync.Once

	dialogMu sync.Mutex
	onDialog func(capture.Dialog)

	popupMu sync.Mutex
	windows []capture.Popup
	popupCh chan capture.Popup
}

func newPage(pw playwright.Page, bctx playwright.BrowserContext, logger *zap.Logger) *page {
	p := &page{
		pw:      pw,
		bctx:    bctx,
		logger:  logger.Named("page"),
		popupCh: make(chan capture.Popup, 4),
	}

	// One native listener for the page's lifetime; the active handler is
	// swapped in and out per capture. Without a handler the dialog is
	// dismissed immediately so the page never blocks on an open prompt.
	pw.OnDialog(func(d playwright.Dialog) {
		p.dialogMu.Lock()
		handler := p.onDialog
		p.dialogMu.Unlock()
		if handler == nil {
			p.logger.Debug("dismissing unhandled dialog", zap.String("message", d.Message()))
			if err := d.Dismiss(); err != nil {
				p.logger.Debug("failed to dismiss dialog", zap.Error(err))
			}
			return
		}
		handler(dialog{d})
	})

	pw.OnPopup(func(w playwright.Page) {
		win := &popupWindow{pw: w, logger: p.logger}
		p.popupMu.Lock()
		p.windows = append(p.windows, win)
		p.popupMu.Unlock()
		select {
		case p.popupCh <- win:
		default:
			// A stale event nobody consumed; enumeration still sees it.
		}
	})

	return p
}

func (p *page) Navigate(url string, timeout time.Duration) error {
	_, err := p.pw.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(ms(timeout)),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *page) WaitForIdle(timeout time.Duration) error {
	return p.pw.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (p *page) URL() string { return p.pw.URL() }

func (p *page) Has(selector string) (bool, error) {
	handle, err := p.pw.QuerySelector(selector)
	if err != nil || handle == nil {
		return false, err
	}
	return handle.IsVisible()
}

func (p *page) Fill(selector, value string) error {
	return p.pw.Fill(selector, value)
}

func (p *page) Press(selector, key string) error {
	return p.pw.Press(selector, key)
}

func (p *page) Click(selector string) error {
	return p.pw.Click(selector)
}

func (p *page) WaitFor(selector string, timeout time.Duration) error {
	_, err := p.pw.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	return err
}

func (p *page) Eval(script string, args ...interface{}) error {
	_, err := p.pw.Evaluate(script, args...)
	return err
}

// SelectText triple-clicks the field, which focuses it and selects its
// current content so the next key events replace it.
func (p *page) SelectText(selector string) error {
	return p.pw.Click(selector, playwright.PageClickOptions{
		ClickCount: playwright.Int(3),
	})
}

func (p *page) TypeKeys(text string) error {
	return p.pw.Keyboard().Type(text, playwright.KeyboardTypeOptions{
		Delay: playwright.Float(typeDelayMs),
	})
}

func (p *page) SelectOption(selector, value string) error {
	_, err := p.pw.SelectOption(selector, playwright.SelectOptionValues{
		Values: playwright.StringSlice(value),
	})
	return err
}

func (p *page) Frames() []capture.Frame {
	raw := p.pw.Frames()
	frames := make([]capture.Frame, 0, len(raw))
	for _, f := range raw {
		frames = append(frames, &frame{fr: f})
	}
	return frames
}

func (p *page) FrameByName(name string) (capture.Frame, bool) {
	for _, f := range p.pw.Frames() {
		if f.Name() == name {
			return &frame{fr: f}, true
		}
	}
	return nil, false
}

func (p *page) SetDialogHandler(fn func(capture.Dialog)) {
	p.dialogMu.Lock()
	p.onDialog = fn
	p.dialogMu.Unlock()
}

func (p *page) ClearDialogHandler() {
	p.dialogMu.Lock()
	p.onDialog = nil
	p.dialogMu.Unlock()
}

func (p *page) PopupEvents() <-chan capture.Popup {
	return p.popupCh
}

func (p *page) Windows() []capture.Popup {
	p.popupMu.Lock()
	defer p.popupMu.Unlock()
	out := make([]capture.Popup, len(p.windows))
	copy(out, p.windows)
	return out
}

// Close tears down the page and its isolated browser context.
func (p *page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := p.pw.Close(); cerr != nil {
			err = fmt.Errorf("failed to close page: %w", cerr)
		}
		if cerr := p.bctx.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close browser context: %w", cerr)
		}
		if p.onClose != nil {
			p.onClose()
		}
	})
	return err
}

// dialog adapts playwright.Dialog.
type dialog struct {
	d playwright.Dialog
}

func (d dialog) Message() string { return d.d.Message() }
func (d dialog) Accept() error   { return d.d.Accept() }
func (d dialog) Dismiss() error  { return d.d.Dismiss() }

// frame adapts playwright.Frame.
type frame struct {
	fr playwright.Frame
}

func (f *frame) Name() string { return f.fr.Name() }
func (f *frame) URL() string  { return f.fr.URL() }

func (f *frame) WaitForLoad(timeout time.Duration) error {
	return f.fr.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (f *frame) Has(selector string) (bool, error) {
	handle, err := f.fr.QuerySelector(selector)
	if err != nil || handle == nil {
		return false, err
	}
	return handle.IsVisible()
}

func (f *frame) Fill(selector, value string) error {
	return f.fr.Fill(selector, value)
}

func (f *frame) Press(selector, key string) error {
	return f.fr.Press(selector, key)
}

func (f *frame) Click(selector string) error {
	return f.fr.Click(selector)
}

func (f *frame) WaitFor(selector string, timeout time.Duration) error {
	_, err := f.fr.WaitForSelector(selector, playwright.FrameWaitForSelectorOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	return err
}

func (f *frame) Eval(script string, args ...interface{}) error {
	_, err := f.fr.Evaluate(script, args...)
	return err
}

// popupWindow adapts a spawned top-level window.
type popupWindow struct {
	pw     playwright.Page
	logger *zap.Logger
}

func (w *popupWindow) WaitFor(selector string, timeout time.Duration) error {
	_, err := w.pw.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	return err
}

func (w *popupWindow) ScreenshotElement(selector, path string) error {
	handle, err := w.pw.QuerySelector(selector)
	if err != nil {
		return fmt.Errorf("failed to locate %s: %w", selector, err)
	}
	if handle == nil {
		return fmt.Errorf("element %s not found in popup", selector)
	}
	if _, err := handle.Screenshot(playwright.ElementHandleScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		return fmt.Errorf("element screenshot failed: %w", err)
	}
	return nil
}

func (w *popupWindow) Close() error {
	return w.pw.Close()
}
