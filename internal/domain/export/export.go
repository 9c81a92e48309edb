package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/tredit/internal/types"
)

// Render produces the downloadable body for f.
func Render(tr types.Transcription, f types.Format) ([]byte, error) {
	switch f {
	case types.FormatSRT:
		return []byte(SRT(tr)), nil
	case types.FormatTXT:
		return []byte(tr.Text), nil
	case types.FormatCSV:
		return CSV(tr)
	default:
		return nil, fmt.Errorf("unknown export format %q", f)
	}
}

// SRT renders numbered cues in list order.
func SRT(tr types.Transcription) string {
	var b strings.Builder
	for i, s := range tr.Segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("\n")
		b.WriteString(srtTime(dur(s.Start)))
		b.WriteString(" --> ")
		b.WriteString(srtTime(dur(s.End)))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

func CSV(tr types.Transcription) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Start Time", "End Time", "Text"}); err != nil {
		return nil, err
	}
	for _, s := range tr.Segments {
		row := []string{
			strconv.FormatFloat(s.Start, 'f', -1, 64),
			strconv.FormatFloat(s.End, 'f', -1, 64),
			strings.TrimSpace(s.Text),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	milli := int(d / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hs, ms, s, milli)
}

func dur(sec float64) time.Duration { return time.Duration(math.Round(sec * float64(time.Second))) }
