package nodes

// Node keys of the turn graph.
const (
	NodeSessionLoader = "session_loader"
	NodeClassifier    = "classifier"
	NodeSlotFiller    = "slot_filler"
	NodeRouter        = "router"
	NodeFallback      = "fallback"
	NodeDispatcher    = "dispatcher"
	NodeReply         = "reply"
)
