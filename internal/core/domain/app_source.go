package domain

// AppSource identifies the front-end product a registration or OAuth flow
// belongs to.
type AppSource string

const (
	AppTimetablely AppSource = "timetablely"
	AppDocxIQ      AppSource = "docxiq"
	AppLinkShyft   AppSource = "linkshyft"
	AppTickly      AppSource = "tickly"
	AppNgTax       AppSource = "ngtax"
)

// AppSources lists every supported app-source. Registries keyed by AppSource
// iterate this slice so a new product cannot be added without a decision
// for each of them.
var AppSources = []AppSource{
	AppTimetablely,
	AppDocxIQ,
	AppLinkShyft,
	AppTickly,
	AppNgTax,
}

// ParseAppSource returns the AppSource named by s, or false when s is not a
// supported product.
func ParseAppSource(s string) (AppSource, bool) {
	for _, app := range AppSources {
		if string(app) == s {
			return app, true
		}
	}
	return "", false
}

// Valid reports whether a is one of the supported app-sources.
func (a AppSource) Valid() bool {
	_, ok := ParseAppSource(string(a))
	return ok
}

// PathSegment is the URL prefix under which the product's scoped routes are
// mounted. ngtax has historically been served from /ng-tax.
func (a AppSource) PathSegment() string {
	if a == AppNgTax {
		return "ng-tax"
	}
	return string(a)
}
