// Package intent maps free text to a help intent with fixed keyword tables.
// Both the slot-filling agent and the routing step go through Match so the
// vocabulary and its precedence live in one place.
package intent

import (
	"strings"

	"github.com/appliance-router/server/internal/agent/model"
)

// Rule binds a help intent to the keywords that select it.
type Rule struct {
	Intent   model.HelpIntent
	Keywords []string
	// Details is the fixed elaboration reported when this rule wins.
	Details string
}

// Rules is evaluated in order; the first rule with a matching keyword wins.
type Rules []Rule

// SelectionRules recognize a user's pick from the services menu.
var SelectionRules = Rules{
	{Intent: model.HelpManual, Keywords: []string{"manual", "guide"}, Details: "General product manual and care guide"},
	{Intent: model.HelpParts, Keywords: []string{"part"}, Details: "Part information and replacement"},
	{Intent: model.HelpSymptoms, Keywords: []string{"problem", "symptom", "issue", "error"}, Details: "Troubleshooting and problem resolution"},
	{Intent: model.HelpInstallation, Keywords: []string{"install", "setup"}, Details: "Installation and setup instructions"},
}

// PartsRules back up the routing step when the oracle label is unusable.
var PartsRules = Rules{
	{Intent: model.HelpParts, Keywords: []string{"part", "filter", "shelf", "drawer", "bin", "replacement"}},
}

// Match returns the first rule whose keyword occurs in text, compared case-insensitively.
func Match(text string, rules Rules) (Rule, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return Rule{}, false
	}
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// DefaultDetails returns the fixed elaboration used when no details were extracted.
func DefaultDetails(h model.HelpIntent) string {
	for _, r := range SelectionRules {
		if r.Intent == h {
			return r.Details
		}
	}
	return ""
}

// Resolve normalizes an extracted help value: an exact label wins, otherwise the
// selection keywords are tried so "the product manual" still resolves to manual.
func Resolve(raw string) (model.HelpIntent, bool) {
	if h, ok := model.ParseHelpIntent(raw); ok {
		return h, true
	}
	if r, ok := Match(raw, SelectionRules); ok {
		return r.Intent, true
	}
	return model.HelpNone, false
}
