package capture

// LocateForm returns the rendering context that currently hosts the marker
// field. The portal sometimes embeds the date-search form in an iframe and
// sometimes renders it on the top document, so every downstream operation
// goes through this lookup instead of assuming a location.
//
// Lookup failures on individual frames count as "not found", never as fatal;
// when no context contains the marker the top page is returned as a fallback
// and the caller's next wait will surface the real problem.
func LocateForm(p Page, marker string) Context {
	if ok, err := p.Has(marker); err == nil && ok {
		return p
	}
	for _, f := range p.Frames() {
		if f.URL() == "about:blank" {
			continue
		}
		if ok, err := f.Has(marker); err == nil && ok {
			return f
		}
	}
	return p
}
