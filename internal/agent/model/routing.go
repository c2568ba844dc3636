package model

// ExtractionResult is the parsed form of one slot-extraction reply from the oracle.
// Absent labels leave the corresponding Has* flag false.
type ExtractionResult struct {
	Identifier    string
	HasIdentifier bool
	HelpIntent    string
	HasHelpIntent bool
	Details       string
	HasDetails    bool

	// Freeform is the reply text when no label was found (usually a clarifying question).
	Freeform        string
	ParsingMetadata map[string]any
}

// SlotCompletion is the payload reported by the slot-filling agent once both
// identifier and help intent are known.
type SlotCompletion struct {
	Identifier string
	HelpIntent HelpIntent
	// HelpText is the help request as extracted, before normalization.
	HelpText string
	Details  string
	Category Category
}

// DecisionSource records which tier of the routing fallback chain picked the handler.
type DecisionSource string

const (
	DecisionOracle  DecisionSource = "oracle"
	DecisionKeyword DecisionSource = "keyword"
	DecisionDefault DecisionSource = "default"
)

// RoutingContext is passed opaquely to the external handler.
type RoutingContext struct {
	BaseURL    string   `json:"base_url"`
	Identifier string   `json:"identifier"`
	HelpIntent string   `json:"help_intent"`
	Details    string   `json:"details"`
	Category   Category `json:"appliance_category"`
}

// RoutingDecision maps a completed slot set to one handler.
type RoutingDecision struct {
	HandlerKey HelpIntent
	Source     DecisionSource
	Context    RoutingContext
}

// HandlerResult is what an external help handler returns.
type HandlerResult struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
}
