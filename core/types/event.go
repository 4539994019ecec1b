package types

// Event is the generic attribute form every structured distributor event
// renders to for indexers and auditors.
type Event struct {
	Type       string
	Attributes map[string]string
}
