// Package classify infers the semantic category of a code snippet via keyword
// matching with a fixed priority order.
package classify

import (
	"math"
	"strings"
)

// Category labels the semantic role of a code snippet or lesson.
type Category string

const (
	CategoryAuth          Category = "auth"
	CategoryNavigation    Category = "navigation"
	CategoryAssertion     Category = "assertion"
	CategoryData          Category = "data"
	CategoryTiming        Category = "timing"
	CategorySelector      Category = "selector"
	CategoryUIInteraction Category = "ui-interaction"

	// CategoryQuirk marks an app-specific behavioral oddity. Legal for
	// lessons, never assigned by the classifier and never legal for
	// extracted components.
	CategoryQuirk Category = "quirk"
)

// Priority is the classification order. The first category whose keyword
// list matches the input wins, so auth beats ui-interaction even when both
// would match.
var Priority = []Category{
	CategoryAuth,
	CategoryNavigation,
	CategoryAssertion,
	CategoryData,
	CategoryTiming,
	CategorySelector,
	CategoryUIInteraction,
}

// keywords per category. Matching is case-insensitive substring containment.
var keywords = map[Category][]string{
	CategoryAuth: {
		"login", "logout", "password", "session", "token", "signin",
		"sign-in", "credential", "authenticate", "oauth", "sso",
	},
	CategoryNavigation: {
		"goto", "navigate", "href", "redirect", "url", "route", "reload",
		"goback", "goforward", "breadcrumb",
	},
	CategoryAssertion: {
		"expect", "assert", "tobe", "tohave", "toequal", "tocontain",
		"should", "verify", "tobevisible", "matches",
	},
	CategoryData: {
		"fixture", "seed", "payload", "testdata", "faker", "dataset",
		"factory", "mock", "stub",
	},
	// "waitfor" rather than "wait": a bare "wait" substring would match
	// inside "await" and swallow every async snippet.
	CategoryTiming: {
		"waitfor", "timeout", "sleep", "delay", "debounce", "poll", "retry",
	},
	CategorySelector: {
		"locator", "getby", "queryselector", "xpath", "data-testid",
		"selector", "aria-", "nth-child",
	},
	CategoryUIInteraction: {
		"click", "type", "fill", "press", "hover", "drag", "scroll",
		"select", "check", "upload", "focus",
	},
}

// Classify returns the category of the snippet. Categories are checked in
// Priority order; the first with a keyword match wins. Falls back to
// ui-interaction when nothing matches.
func Classify(code string) Category {
	lower := strings.ToLower(code)
	for _, cat := range Priority {
		for _, kw := range keywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return CategoryUIInteraction
}

// ClassifyWithConfidence scores every category by keyword match count and
// returns the best, with confidence min(matches / min(len(keywords), 5), 1)
// rounded to two decimals. Ties keep the earlier category in Priority order.
func ClassifyWithConfidence(code string) (Category, float64) {
	lower := strings.ToLower(code)

	best := CategoryUIInteraction
	bestCount := 0
	for _, cat := range Priority {
		count := 0
		for _, kw := range keywords[cat] {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			best = cat
			bestCount = count
		}
	}

	if bestCount == 0 {
		return CategoryUIInteraction, 0
	}

	denom := len(keywords[best])
	if denom > 5 {
		denom = 5
	}
	conf := float64(bestCount) / float64(denom)
	if conf > 1 {
		conf = 1
	}
	return best, math.Round(conf*100) / 100
}
