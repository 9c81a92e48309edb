package types

// Request and response bodies of the backend HTTP/JSON contract.

type UpdateSegmentRequest struct {
	Index int     `json:"index" validate:"gte=0"`
	Start float64 `json:"start_time" validate:"gte=0"`
	End   float64 `json:"end_time" validate:"gtefield=Start"`
	Text  string  `json:"text"`
}

type AddSegmentRequest struct {
	Start         float64 `json:"start_time" validate:"gte=0"`
	End           float64 `json:"end_time" validate:"gtefield=Start"`
	Text          string  `json:"text"`
	SelectedIndex int     `json:"selected_index" validate:"gte=-1"`
}

type RemoveSegmentRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

type RetranscribeRequest struct {
	Index  int    `json:"index" validate:"gte=0"`
	Prompt string `json:"prompt,omitempty"`
}

// Envelope is the union of every JSON response shape the backend returns.
type Envelope struct {
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Transcription *Transcription `json:"transcription,omitempty"`
	IsSorted      *bool          `json:"is_sorted,omitempty"`
	Segment       *Segment       `json:"segment,omitempty"`
}

// Replacement is an authoritative list returned after a structural change.
type Replacement struct {
	Transcription Transcription
	// IsSorted is set when the response carried its own flag.
	IsSorted *bool
}
