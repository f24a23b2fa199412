package capture

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Login page selectors. The credential inputs start disabled until the page's
// own scripts finish booting.
const (
	selLoginUser   = "#per_user_id"
	selLoginPass   = "#per_passwd"
	selLoginSubmit = "#per_login"

	selAccountSelect = "#ecd_no"

	// loginPageMarker appears in the login page URL; seeing it after the
	// submit means the login did not go through.
	loginPageMarker = "lginpg"
)

// transientPopupSelectors close the promotional overlays the portal sometimes
// shows on the login page. First visible match wins.
var transientPopupSelectors = []string{
	"text=취소",
	`button:has-text("취소")`,
	`[onclick*="close"]`,
	".popup_close",
	".close_btn",
}

// URLs are the two portal entry points the session needs.
type URLs struct {
	Login  string
	Lookup string
}

// DefaultURLs points at the production portal.
func DefaultURLs() URLs {
	return URLs{
		Login:  "https://www.hipass.co.kr/comm/lginpg.do",
		Lookup: "https://www.hipass.co.kr/usepculr/InitUsePculrTabSearch.do",
	}
}

// DefaultNoDataPhrase is the portal's locale-specific no-data alert text.
const DefaultNoDataPhrase = "조회된 데이터가 없습니다"

// OrchestratorConfig carries the read-only inputs fixed at session start.
type OrchestratorConfig struct {
	Credentials  Credentials
	URLs         URLs
	Timeouts     Timeouts
	NoDataPhrase string
	// Cooldown is the fixed inter-date pause that keeps the batch under the
	// portal's abuse defenses.
	Cooldown time.Duration
}

// dateMachine is what the orchestrator drives per date; swapped in tests.
type dateMachine interface {
	Run(ctx context.Context, date Date, artifactPath string) Result
}

// Orchestrator owns one authenticated browsing session and drives the date
// capture state machine across an ordered batch, isolating per-date failures
// and recovering session state between dates without re-login.
type Orchestrator struct {
	engine Engine
	store  ArtifactStore
	cfg    OrchestratorConfig
	limit  *rate.Limiter
	log    *zap.Logger

	newMachine func(page Page, arbiter *DialogArbiter, popups *PopupResolver) dateMachine
}

// NewOrchestrator builds an orchestrator. Zero config fields fall back to
// the portal defaults.
func NewOrchestrator(engine Engine, store ArtifactStore, cfg OrchestratorConfig, log *zap.Logger) *Orchestrator {
	if cfg.URLs == (URLs{}) {
		cfg.URLs = DefaultURLs()
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.NoDataPhrase == "" {
		cfg.NoDataPhrase = DefaultNoDataPhrase
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	o := &Orchestrator{
		engine: engine,
		store:  store,
		cfg:    cfg,
		limit:  rate.NewLimiter(rate.Every(cfg.Cooldown), 1),
		log:    log.Named("orchestrator"),
	}
	o.newMachine = func(page Page, arbiter *DialogArbiter, popups *PopupResolver) dateMachine {
		return NewMachine(page, arbiter, popups, o.cfg.Timeouts, o.log)
	}
	return o
}

// RunBatch processes the dates strictly in order over one authenticated
// session. It always returns exactly one outcome per requested date, except
// when login itself fails, in which case a single error outcome summarizes
// the batch. The session is closed unconditionally at batch end.
func (o *Orchestrator) RunBatch(ctx context.Context, dates []Date, progress ProgressFunc) []Outcome {
	outcomes := make([]Outcome, 0, len(dates))
	if len(dates) == 0 {
		return outcomes
	}

	page, err := o.engine.NewPage(ctx)
	if err != nil {
		return append(outcomes, o.loginFailureOutcome(dates[0], err))
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			o.log.Warn("failed to close browsing session", zap.Error(cerr))
		}
	}()

	if err := o.login(page); err != nil {
		o.log.Error("login failed, aborting batch", zap.Error(err))
		return append(outcomes, o.loginFailureOutcome(dates[0], err))
	}
	if err := o.navigateToLookup(page); err != nil {
		o.log.Error("lookup navigation failed, aborting batch", zap.Error(err))
		return append(outcomes, o.loginFailureOutcome(dates[0], err))
	}

	arbiter := NewDialogArbiter(o.cfg.NoDataPhrase, o.log)
	popups := NewPopupResolver(page)
	total := len(dates)

	for i, date := range dates {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{
				Date:      date.Display(),
				Status:    StatusError,
				Message:   ctx.Err().Error(),
				Timestamp: time.Now(),
			})
			continue
		}

		// Idempotent resume: an existing artifact means this date is done
		// and the browser is not touched at all.
		if o.store.Exists(date) {
			o.log.Info("artifact exists, skipping", zap.String("date", date.Display()))
			outcomes = append(outcomes, Outcome{
				Date:      date.Display(),
				Status:    StatusSkipped,
				Message:   msgExists,
				Timestamp: time.Now(),
			})
			continue
		}

		arbiter.Attach(page)
		res := o.newMachine(page, arbiter, popups).Run(ctx, date, o.store.Path(date))
		arbiter.Detach(page)

		o.log.Info("date processed",
			zap.String("date", date.Display()),
			zap.String("status", string(res.Status)),
			zap.String("message", res.Message),
		)
		outcomes = append(outcomes, Outcome{
			Date:      date.Display(),
			Status:    res.Status,
			Message:   res.Message,
			Timestamp: time.Now(),
		})

		if res.Status == StatusError {
			// Cheap recovery: point the session back at the lookup page so
			// the next date starts from a known location. A failure here is
			// swallowed; the next date's machine fails fast if the session
			// is truly broken.
			if err := o.navigateToLookup(page); err != nil {
				o.log.Debug("recovery navigation failed", zap.Error(err))
			}
		}

		if progress != nil {
			progress(i+1, total, date.Display())
		}
		if i < total-1 {
			if err := o.limit.Wait(ctx); err != nil {
				o.log.Debug("cooldown interrupted", zap.Error(err))
			}
		}
	}

	return outcomes
}

// RunSingle captures exactly one date through the same login → navigate →
// state machine → close sequence, for ad hoc and manual use.
func (o *Orchestrator) RunSingle(ctx context.Context, date Date, progress ProgressFunc) []Outcome {
	return o.RunBatch(ctx, []Date{date}, progress)
}

func (o *Orchestrator) loginFailureOutcome(first Date, err error) Outcome {
	return Outcome{
		Date:      first.Display(),
		Status:    StatusError,
		Message:   "로그인 실패: " + err.Error(),
		Timestamp: time.Now(),
	}
}

// login authenticates the session. The credentials are typed through key
// events because the portal enables its submit control from keyup handlers;
// filling the value attribute directly leaves the button dead.
func (o *Orchestrator) login(page Page) error {
	t := o.cfg.Timeouts

	if err := page.Navigate(o.cfg.URLs.Login, t.Navigation); err != nil {
		return &LoginError{Err: err}
	}
	if err := page.WaitForIdle(8 * time.Second); err != nil {
		o.log.Debug("login page did not reach idle", zap.Error(err))
	}
	o.dismissTransientPopups(page)

	if err := page.WaitFor(selLoginUser+":not([disabled])", t.LoginField); err != nil {
		return &LoginError{Err: err}
	}
	if err := page.WaitFor(selLoginPass+":not([disabled])", t.LoginField); err != nil {
		return &LoginError{Err: err}
	}

	if err := o.typeCredential(page, selLoginUser, o.cfg.Credentials.UserID); err != nil {
		return &LoginError{Err: err}
	}
	if err := o.typeCredential(page, selLoginPass, o.cfg.Credentials.Password); err != nil {
		return &LoginError{Err: err}
	}

	// The button may not use the disabled attribute at all; proceed anyway.
	if err := page.WaitFor(selLoginSubmit+":not([disabled])", t.LoginButton); err != nil {
		o.log.Debug("login button never reported enabled", zap.Error(err))
	}
	if err := page.Click(selLoginSubmit); err != nil {
		return &LoginError{Err: err}
	}
	if err := page.WaitForIdle(t.PostLogin); err != nil {
		o.log.Debug("post-login redirect did not reach idle", zap.Error(err))
	}

	if strings.Contains(page.URL(), loginPageMarker) {
		return &LoginError{
			URL: page.URL(),
			Err: errors.New("still on login page (check credentials or security challenge)"),
		}
	}
	return nil
}

func (o *Orchestrator) typeCredential(page Page, selector, value string) error {
	if err := page.SelectText(selector); err != nil {
		return err
	}
	return page.TypeKeys(value)
}

// navigateToLookup opens the usage lookup page and pre-selects the account
// context when one is configured.
func (o *Orchestrator) navigateToLookup(page Page) error {
	if err := page.Navigate(o.cfg.URLs.Lookup, o.cfg.Timeouts.Navigation); err != nil {
		return err
	}
	if err := page.WaitForIdle(10 * time.Second); err != nil {
		o.log.Debug("lookup page did not reach idle", zap.Error(err))
	}
	if sel := o.cfg.Credentials.AccountSelector; sel != "" {
		if err := page.SelectOption(selAccountSelect, sel); err != nil {
			o.log.Debug("account pre-select failed", zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) dismissTransientPopups(page Page) {
	for _, sel := range transientPopupSelectors {
		ok, err := page.Has(sel)
		if err != nil || !ok {
			continue
		}
		if err := page.Click(sel); err == nil {
			o.log.Debug("closed transient popup", zap.String("selector", sel))
			return
		}
	}
}
