package model

import "strings"

// Category is the appliance family a dialogue cycle is bound to.
type Category string

const (
	// CategoryNone marks a session that has not been classified in the current cycle.
	CategoryNone         Category = "none"
	CategoryRefrigerator Category = "refrigerator"
	CategoryDishwasher   Category = "dishwasher"
	// CategoryOther is the classifier verdict for off-domain queries. It is never bound to a session.
	CategoryOther Category = "other"
)

// String returns the string representation of the category.
func (c Category) String() string {
	if c == "" {
		return string(CategoryNone)
	}
	return string(c)
}

// IsAppliance reports whether c names one of the supported appliances.
func (c Category) IsAppliance() bool {
	return c == CategoryRefrigerator || c == CategoryDishwasher
}

// Appliances lists the supported appliance categories in presentation order.
var Appliances = []Category{CategoryRefrigerator, CategoryDishwasher}

// HelpIntent is the kind of help requested for an identified appliance. It doubles
// as the handler key of a routing decision.
type HelpIntent string

const (
	HelpNone         HelpIntent = ""
	HelpManual       HelpIntent = "manual"
	HelpParts        HelpIntent = "parts"
	HelpSymptoms     HelpIntent = "symptoms"
	HelpInstallation HelpIntent = "installation"
)

// HelpIntents is the closed label set, in services-menu order.
var HelpIntents = []HelpIntent{HelpManual, HelpParts, HelpSymptoms, HelpInstallation}

// String returns the string representation of the help intent.
func (h HelpIntent) String() string {
	return string(h)
}

// Valid reports whether h is one of the four handler keys.
func (h HelpIntent) Valid() bool {
	for _, v := range HelpIntents {
		if h == v {
			return true
		}
	}
	return false
}

// ParseHelpIntent matches s (trimmed, case-insensitive) against the closed label set.
func ParseHelpIntent(s string) (HelpIntent, bool) {
	h := HelpIntent(strings.ToLower(strings.TrimSpace(s)))
	if !h.Valid() {
		return HelpNone, false
	}
	return h, true
}
