package types

// Segment is a time-bounded slice of a transcript. Times are seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End-Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Transcription is the editing-session state shared with the backend.
// Text is derived from Segments and is never edited on its own.
type Transcription struct {
	SourceID string    `json:"youtube_id"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	IsSorted bool      `json:"is_sorted"`
}

// Clone returns a deep copy so callers can't alias the segment slice.
func (t Transcription) Clone() Transcription {
	out := t
	out.Segments = append([]Segment(nil), t.Segments...)
	return out
}

// Field names a segment boundary.
type Field string

const (
	FieldStart Field = "start"
	FieldEnd   Field = "end"
)

// Format is a download/export format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatTXT Format = "txt"
	FormatCSV Format = "csv"
)

// Filename is the fixed name a download is saved under.
func (f Format) Filename() string { return "transcript." + string(f) }

func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatSRT, FormatTXT, FormatCSV:
		return Format(s), true
	default:
		return "", false
	}
}

// CachedSession is what the backend remembers about the last transcription.
type CachedSession struct {
	Transcription *Transcription `json:"transcription,omitempty"`
	SourceURL     string         `json:"youtube_url,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
}

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	Transcription Transcription
	// Active is the selected index or -1.
	Active         int
	SourceDuration float64
	Retranscribing []int
}
