package domain

// Message is a failure message attached to a case.
type Message struct {
	Text        string `json:"text"`
	Fatal       bool   `json:"fatal,omitempty"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"` // 0-based
	HasLocation bool   `json:"has_location,omitempty"`
}
