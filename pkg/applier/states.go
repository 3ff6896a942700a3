package applier

// State is a position in the shipment pipeline
type State string

const (
	StateStarted        State = "STARTED"
	StateRouted         State = "ROUTED"
	StateAuthorized     State = "AUTHORIZED"
	StateFetched        State = "FETCHED"
	StateMerged         State = "MERGED"
	StateWrittenCore    State = "WRITTEN_CORE"
	StateWrittenAddress State = "WRITTEN_ADDRESS"
	StateItemsApplied   State = "ITEMS_APPLIED"
	StateProcessed      State = "PROCESSED"
	StateFailed         State = "FAILED"
)

func (s State) String() string {
	return string(s)
}
