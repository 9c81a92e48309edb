package ports

import (
	"context"

	"github.com/forPelevin/tredit/internal/types"
)

// Backend is the remote transcription service that owns persistence.
type Backend interface {
	Transcribe(ctx context.Context, sourceURL, prompt string) (types.Transcription, error)
	// CachedSession returns found=false when the backend has nothing cached.
	CachedSession(ctx context.Context) (types.CachedSession, bool, error)
	UpdateSegment(ctx context.Context, req types.UpdateSegmentRequest) error
	AddSegment(ctx context.Context, req types.AddSegmentRequest) (types.Replacement, error)
	RemoveSegment(ctx context.Context, index int) (types.Replacement, error)
	SortSegments(ctx context.Context) (types.Replacement, error)
	RetranscribeSegment(ctx context.Context, req types.RetranscribeRequest) (types.Segment, error)
	Download(ctx context.Context, f types.Format) ([]byte, error)
}

type PlayerState int

const (
	PlayerUnstarted PlayerState = iota
	PlayerPlaying
	PlayerPaused
	PlayerEnded
)

func (s PlayerState) String() string {
	switch s {
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	case PlayerEnded:
		return "ended"
	default:
		return "unstarted"
	}
}

// Player is the media player widget playing the source video.
type Player interface {
	Seek(sec float64)
	Play()
	Pause()
	CurrentTime() float64
	// Duration returns 0 when the player doesn't know it yet.
	Duration() float64
	Destroy()
	// OnStateChange registers the single state-change listener.
	OnStateChange(fn func(PlayerState))
}

// Notifier surfaces failures of background work to the user.
type Notifier interface {
	Alert(err error)
}

// View is a rendering of the current session state.
type View interface {
	Render(snap types.Snapshot)
}

// Transcriber turns a source into segments. Used by the dev backend.
type Transcriber interface {
	Transcribe(ctx context.Context, sourceURL, prompt string) (types.Transcription, float64, error)
	TranscribeRange(ctx context.Context, sourceURL string, start, end float64, prompt string) (types.Segment, error)
}
