package capture

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DialogArbiter classifies the portal's native dialogs during one date's
// capture attempt. The portal raises two dialogs from the same gesture: a
// "no data" alert when the date has no records, and a "confirm print" prompt
// when it does. The first is dismissed and latched as a no-data signal; every
// other dialog is accepted, which is what lets the receipt pop-up open.
type DialogArbiter struct {
	log     *zap.Logger
	pattern string

	mu       sync.Mutex
	attached bool
	noData   bool
	signal   chan struct{}
}

// NewDialogArbiter builds an arbiter matching dialogs whose message contains
// the given locale-specific no-data phrase.
func NewDialogArbiter(pattern string, log *zap.Logger) *DialogArbiter {
	return &DialogArbiter{
		log:     log.Named("dialog"),
		pattern: pattern,
		signal:  make(chan struct{}, 1),
	}
}

// Attach installs the arbiter as the page's dialog listener and clears any
// state left over from a previous date.
func (a *DialogArbiter) Attach(p Page) {
	a.mu.Lock()
	a.attached = true
	a.mu.Unlock()
	a.Reset()
	p.SetDialogHandler(a.handle)
}

// Detach removes the listener so no signal can leak into the next date.
func (a *DialogArbiter) Detach(p Page) {
	p.ClearDialogHandler()
	a.mu.Lock()
	a.attached = false
	a.mu.Unlock()
}

// Reset clears the no-data latch. It must be called immediately before the
// print-triggering click so a stale signal from an earlier phase of the same
// date (a session-timeout warning, say) cannot be misattributed to the print
// action.
func (a *DialogArbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noData = false
	select {
	case <-a.signal:
	default:
	}
}

// NoData reports whether a no-data dialog was observed since the last Reset.
func (a *DialogArbiter) NoData() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.noData
}

// Signal fires once when a no-data dialog is observed, letting callers race
// it against a popup event instead of sleeping blindly.
func (a *DialogArbiter) Signal() <-chan struct{} { return a.signal }

func (a *DialogArbiter) handle(d Dialog) {
	a.mu.Lock()
	attached := a.attached
	a.mu.Unlock()
	if !attached {
		// Late event after Detach; answer it but record nothing.
		if err := d.Dismiss(); err != nil {
			a.log.Debug("failed to dismiss stray dialog", zap.Error(err))
		}
		return
	}

	msg := d.Message()
	if strings.Contains(msg, a.pattern) {
		a.log.Debug("no-data dialog observed", zap.String("message", msg))
		if err := d.Dismiss(); err != nil {
			a.log.Warn("failed to dismiss no-data dialog", zap.Error(err))
		}
		a.mu.Lock()
		a.noData = true
		a.mu.Unlock()
		select {
		case a.signal <- struct{}{}:
		default:
		}
		return
	}

	// Anything else is treated as the confirm-print prompt and accepted.
	a.log.Debug("accepting dialog", zap.String("message", msg))
	if err := d.Accept(); err != nil {
		a.log.Warn("failed to accept dialog", zap.Error(err))
	}
}
