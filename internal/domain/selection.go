package domain

// SelectionItem is one node picked by the host for a run, debug or cancel request.
type SelectionItem struct {
	ID       string `json:"id"`
	Excluded bool   `json:"excluded,omitempty"`
}
