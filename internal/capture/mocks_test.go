package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Shared in-memory fakes for the browsing surfaces. Behavior is driven by
// struct fields so each test configures only what it needs.

type fakeDialog struct {
	msg       string
	accepted  bool
	dismissed bool
}

func (d *fakeDialog) Message() string { return d.msg }
func (d *fakeDialog) Accept() error   { d.accepted = true; return nil }
func (d *fakeDialog) Dismiss() error  { d.dismissed = true; return nil }

type fakePopup struct {
	waitErr       error
	screenshotErr error

	mu             sync.Mutex
	screenshotPath string
	closed         bool
}

func (p *fakePopup) WaitFor(selector string, timeout time.Duration) error {
	return p.waitErr
}

func (p *fakePopup) ScreenshotElement(selector, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.screenshotErr != nil {
		return p.screenshotErr
	}
	p.screenshotPath = path
	return nil
}

func (p *fakePopup) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeFrame struct {
	name string
	url  string

	has     map[string]bool
	waitErr map[string]error
	loadErr error
	evalErr error

	// onEval runs on every Eval call, after the error check. Tests use it to
	// simulate the portal reacting to the print trigger.
	onEval func(script string, args []interface{})

	mu      sync.Mutex
	filled  map[string]string
	pressed []string
	clicked []string
	evals   []string
}

func newFakeFrame(name string) *fakeFrame {
	return &fakeFrame{
		name:    name,
		has:     make(map[string]bool),
		waitErr: make(map[string]error),
		filled:  make(map[string]string),
	}
}

func (f *fakeFrame) Name() string { return f.name }
func (f *fakeFrame) URL() string  { return f.url }

func (f *fakeFrame) WaitForLoad(timeout time.Duration) error { return f.loadErr }

func (f *fakeFrame) Has(selector string) (bool, error) { return f.has[selector], nil }

func (f *fakeFrame) Fill(selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled[selector] = value
	return nil
}

func (f *fakeFrame) Press(selector, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, selector+":"+key)
	return nil
}

func (f *fakeFrame) Click(selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeFrame) WaitFor(selector string, timeout time.Duration) error {
	return f.waitErr[selector]
}

func (f *fakeFrame) Eval(script string, args ...interface{}) error {
	if f.evalErr != nil {
		return f.evalErr
	}
	f.mu.Lock()
	f.evals = append(f.evals, script)
	f.mu.Unlock()
	if f.onEval != nil {
		f.onEval(script, args)
	}
	return nil
}

type fakePage struct {
	has     map[string]bool
	waitErr map[string]error
	navErr  error
	url     string
	frames  []Frame

	mu         sync.Mutex
	navigated  []string
	filled     map[string]string
	pressed    []string
	clicked    []string
	typed      []string
	selTexts   []string
	selOptions map[string]string
	evals      []string
	closed     bool

	handler func(Dialog)
	popupCh chan Popup
	windows []Popup
}

func newFakePage() *fakePage {
	return &fakePage{
		has:        make(map[string]bool),
		waitErr:    make(map[string]error),
		filled:     make(map[string]string),
		selOptions: make(map[string]string),
		popupCh:    make(chan Popup, 4),
	}
}

func (p *fakePage) Navigate(url string, timeout time.Duration) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) WaitForIdle(timeout time.Duration) error { return nil }

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Has(selector string) (bool, error) { return p.has[selector], nil }

func (p *fakePage) Fill(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Press(selector, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed = append(p.pressed, selector+":"+key)
	return nil
}

func (p *fakePage) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) WaitFor(selector string, timeout time.Duration) error {
	return p.waitErr[selector]
}

func (p *fakePage) Eval(script string, args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, script)
	return nil
}

func (p *fakePage) SelectText(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selTexts = append(p.selTexts, selector)
	return nil
}

func (p *fakePage) TypeKeys(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, text)
	return nil
}

func (p *fakePage) SelectOption(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selOptions[selector] = value
	return nil
}

func (p *fakePage) Frames() []Frame { return p.frames }

func (p *fakePage) FrameByName(name string) (Frame, bool) {
	for _, f := range p.frames {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

func (p *fakePage) SetDialogHandler(fn func(Dialog)) { p.handler = fn }
func (p *fakePage) ClearDialogHandler()              { p.handler = nil }

func (p *fakePage) PopupEvents() <-chan Popup { return p.popupCh }

func (p *fakePage) Windows() []Popup {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Popup, len(p.windows))
	copy(out, p.windows)
	return out
}

// spawnPopup simulates the portal opening a new window.
func (p *fakePage) spawnPopup(win Popup) {
	p.mu.Lock()
	p.windows = append(p.windows, win)
	p.mu.Unlock()
	select {
	case p.popupCh <- win:
	default:
	}
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeEngine struct {
	page Page
	err  error
}

func (e *fakeEngine) NewPage(ctx context.Context) (Page, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.page, nil
}

type fakeStore struct {
	existing map[string]bool
	dir      string
}

func newFakeStore(dir string) *fakeStore {
	return &fakeStore{existing: make(map[string]bool), dir: dir}
}

func (s *fakeStore) Exists(d Date) bool     { return s.existing[d.Display()] }
func (s *fakeStore) Filename(d Date) string { return "하이패스(" + d.Display() + ").png" }
func (s *fakeStore) Path(d Date) string     { return s.dir + "/" + s.Filename(d) }

var errBoom = errors.New("boom")
