package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Portal selectors and the results frame name, as rendered by the lookup page.
const (
	selStartDateView = "#sDate_view"
	selEndDateView   = "#eDate_view"
	selLookupButton  = "#lookupBtn a"
	selPrintAll      = "#billAll"
	selPopupContent  = ".popup_content"

	resultsFrameName = "if_main_post"
)

// Outcome messages shown to the operator, in the portal's locale.
const (
	msgCaptured = "캡처 완료"
	msgNoData   = "통행 기록 없음"
	msgExists   = "이미 존재함"
)

// Timeouts bounds every suspension point of one date's capture so an
// unresponsive portal page can never hang a batch. A timeout is the failure
// of its step, not a crash.
type Timeouts struct {
	Navigation   time.Duration // page loads (login page, lookup page)
	PostLogin    time.Duration // redirect settling after the login submit
	LoginField   time.Duration // credential inputs becoming enabled
	LoginButton  time.Duration // submit control becoming enabled
	Lookup       time.Duration // lookup control appearing
	ResultsFrame time.Duration // results frame reaching loaded state
	HasData      time.Duration // print control appearing in the results frame
	Settle       time.Duration // dialog-or-popup race after the print click
	PopupContent time.Duration // receipt content appearing inside the popup
}

// DefaultTimeouts mirrors the bounds the portal is known to need in practice.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:   30 * time.Second,
		PostLogin:    15 * time.Second,
		LoginField:   10 * time.Second,
		LoginButton:  5 * time.Second,
		Lookup:       5 * time.Second,
		ResultsFrame: 12 * time.Second,
		HasData:      3 * time.Second,
		Settle:       4 * time.Second,
		PopupContent: 10 * time.Second,
	}
}

// Result is the tagged terminal state of one date's state machine run.
// No-data paths are first-class results here, not errors.
type Result struct {
	Status   Status
	Message  string
	Filename string
}

func errorResult(step string, err error) Result {
	se := &StepError{Step: step, Err: err}
	return Result{Status: StatusError, Message: se.Error()}
}

func emptyResult() Result {
	return Result{Status: StatusEmpty, Message: msgNoData}
}

// Machine runs the per-date capture protocol: locate the form, set the date,
// submit the lookup, race the ambiguous dialog/popup aftermath of the print
// click, and extract the receipt screenshot.
type Machine struct {
	page     Page
	arbiter  *DialogArbiter
	popups   *PopupResolver
	timeouts Timeouts
	log      *zap.Logger
}

// NewMachine wires a state machine for one date's attempt. The arbiter must
// already be attached to the page.
func NewMachine(page Page, arbiter *DialogArbiter, popups *PopupResolver, timeouts Timeouts, log *zap.Logger) *Machine {
	return &Machine{
		page:     page,
		arbiter:  arbiter,
		popups:   popups,
		timeouts: timeouts,
		log:      log.Named("machine"),
	}
}

// setHiddenDatesScript writes the compact date into the portal's hidden query
// fields and fires change events so its client-side validation accepts them.
const setHiddenDatesScript = `([start, end]) => {
	const set = (id, value) => {
		const el = document.querySelector(id);
		if (!el) return;
		el.value = value;
		el.dispatchEvent(new Event('change', { bubbles: true }));
	};
	set('#sDate', start);
	set('#eDate', end);
}`

// triggerPrintScript scrolls the print control into view and clicks it from
// script. A synthetic pointer click is not reliable here: the control sits in
// a reloading frame and the portal binds its handler to the raw click event.
const triggerPrintScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) throw new Error('print control not found: ' + sel);
	el.scrollIntoView();
	el.click();
}`

// Run drives one date to a terminal state. Every failure outside the
// deliberate empty classifications comes back as an error result with the
// underlying message preserved.
func (m *Machine) Run(ctx context.Context, date Date, artifactPath string) Result {
	log := m.log.With(zap.String("date", date.Display()))

	// LOCATE_FORM
	form := LocateForm(m.page, selStartDateView)

	// SET_DATE: both ends of the single-day range get the same date, in the
	// display form for the visible fields and the compact form for the
	// hidden query fields.
	if err := m.setDates(form, date); err != nil {
		return errorResult("set date", err)
	}

	// SUBMIT_LOOKUP
	if err := form.WaitFor(selLookupButton, m.timeouts.Lookup); err != nil {
		return errorResult("lookup control", err)
	}
	if err := form.Click(selLookupButton); err != nil {
		return errorResult("submit lookup", err)
	}

	// AWAIT_RESULTS_FRAME: the lookup reloads the named frame. A missing
	// frame is an error; a load-state timeout on an existing frame is
	// tolerated because the frame often reports busy while already rendered.
	frame, ok := m.page.FrameByName(resultsFrameName)
	if !ok {
		return errorResult("results frame", fmt.Errorf("frame %q not found", resultsFrameName))
	}
	if err := frame.WaitForLoad(m.timeouts.ResultsFrame); err != nil {
		log.Debug("results frame load wait elapsed", zap.Error(err))
	}
	// The reload may have replaced the underlying document; never trust a
	// frame handle across a navigation boundary.
	frame, ok = m.page.FrameByName(resultsFrameName)
	if !ok {
		return errorResult("results frame", fmt.Errorf("frame %q gone after reload", resultsFrameName))
	}

	// CHECK_HAS_DATA: absence of the print control means no receipt data
	// for this date, not a failure.
	if err := frame.WaitFor(selPrintAll, m.timeouts.HasData); err != nil {
		log.Debug("no print control, treating as empty")
		return emptyResult()
	}

	// TRIGGER_PRINT: clear any stale no-data latch first so it cannot be
	// misattributed to this click, then record the window baseline.
	m.arbiter.Reset()
	m.drainPopupEvents()
	baseline := m.popups.Baseline()
	if err := frame.Eval(triggerPrintScript, selPrintAll); err != nil {
		return errorResult("trigger print", err)
	}

	// RESOLVE_OUTCOME: the portal gives no completion event for the print
	// click, so race the no-data dialog signal against the popup event under
	// one shared settle timeout.
	popup, res, terminal := m.awaitPrintEffect(ctx, baseline, log)
	if terminal {
		return res
	}

	// CAPTURE: screenshot exactly the receipt element, never the whole
	// window, then close the popup.
	if err := popup.WaitFor(selPopupContent, m.timeouts.PopupContent); err != nil {
		log.Debug("popup opened without receipt content, treating as empty")
		if cerr := popup.Close(); cerr != nil {
			log.Debug("failed to close popup", zap.Error(cerr))
		}
		return emptyResult()
	}
	if err := popup.ScreenshotElement(selPopupContent, artifactPath); err != nil {
		if cerr := popup.Close(); cerr != nil {
			log.Debug("failed to close popup", zap.Error(cerr))
		}
		return errorResult("screenshot", err)
	}
	if err := popup.Close(); err != nil {
		log.Debug("failed to close popup", zap.Error(err))
	}

	return Result{
		Status:   StatusSuccess,
		Message:  msgCaptured,
		Filename: filepath.Base(artifactPath),
	}
}

func (m *Machine) setDates(form Context, date Date) error {
	display := date.Display()
	for _, sel := range []string{selStartDateView, selEndDateView} {
		if err := form.Fill(sel, display); err != nil {
			return err
		}
		if err := form.Press(sel, "Enter"); err != nil {
			return err
		}
	}
	compact := date.Compact()
	return form.Eval(setHiddenDatesScript, []string{compact, compact})
}

// awaitPrintEffect resolves the dialog/popup race. It returns either the
// popup to capture, or a terminal result (empty on no-data or no-popup,
// error on cancellation).
func (m *Machine) awaitPrintEffect(ctx context.Context, baseline int, log *zap.Logger) (Popup, Result, bool) {
	timer := time.NewTimer(m.timeouts.Settle)
	defer timer.Stop()

	select {
	case <-m.arbiter.Signal():
		log.Debug("no-data dialog won the settle race")
		return nil, emptyResult(), true
	case p := <-m.popups.Events():
		return p, Result{}, false
	case <-timer.C:
		// The dialog may have fired between the latch and the signal read.
		if m.arbiter.NoData() {
			return nil, emptyResult(), true
		}
		// A popup can exist without its event having been observed yet;
		// fall back to enumerating the page's windows.
		if p, ok := m.popups.Resolve(baseline); ok {
			return p, Result{}, false
		}
		// Empty data and a transiently undetectable popup look identical
		// from here; classify conservatively as no data.
		log.Debug("settle window elapsed with no dialog and no popup")
		return nil, emptyResult(), true
	case <-ctx.Done():
		return nil, errorResult("await print effect", ctx.Err()), true
	}
}

// drainPopupEvents discards popup notifications left over from earlier
// phases so the settle race only sees windows created by the print click.
func (m *Machine) drainPopupEvents() {
	for {
		select {
		case <-m.popups.Events():
		default:
			return
		}
	}
}
