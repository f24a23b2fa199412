package capture

// PopupResolver detects the receipt window spawned by the print action.
// It can be consumed two ways: Events() for racing a popup against the
// dialog arbiter's no-data signal, and Baseline/Resolve for a settle-time
// enumeration of the page's windows.
type PopupResolver struct {
	page Page
}

// NewPopupResolver binds a resolver to the page whose windows it watches.
func NewPopupResolver(page Page) *PopupResolver {
	return &PopupResolver{page: page}
}

// Events delivers windows as they are created.
func (r *PopupResolver) Events() <-chan Popup { return r.page.PopupEvents() }

// Baseline records how many windows exist before the triggering action, so
// Resolve can tell new windows from pre-existing ones.
func (r *PopupResolver) Baseline() int { return len(r.page.Windows()) }

// Resolve reports whether any window was created after the baseline was
// taken. When more than one exists the most recently created wins.
func (r *PopupResolver) Resolve(baseline int) (Popup, bool) {
	wins := r.page.Windows()
	if len(wins) <= baseline {
		return nil, false
	}
	return wins[len(wins)-1], true
}
